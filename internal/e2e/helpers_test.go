package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"cubedeploy/internal/deployer"
	"cubedeploy/internal/httpapi"
	"cubedeploy/internal/journal"
	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator/fake"
	"cubedeploy/internal/registry"
)

const (
	widget = "cube(`Widget`, {\n  sql: `SELECT * FROM widgets`,\n  measures: { count: { type: `count` } }\n});\n"
	gadget = "cube(`Gadget`, {\n  sql_table: `gadgets`,\n  dimensions: {}\n});\n"
)

type env struct {
	srv   *httptest.Server
	orch  *fake.Orchestrator
	store *modelset.Store
	dir   string
}

// createSeedDir writes name.js files into a fresh directory.
func createSeedDir(t *testing.T, models map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range models {
		p := filepath.Join(dir, name+".js")
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatalf("write seed %s: %v", p, err)
		}
	}
	return dir
}

// newServer wires the real store, journal and deployer to a fake cluster,
// seeded from seedDir when it is not empty.
func newServer(t *testing.T, seedDir string) env {
	t.Helper()
	dir := t.TempDir()
	store := modelset.NewStore(
		filepath.Join(dir, "cube-models.yaml"),
		modelset.Meta{Name: "cube-models", Namespace: "default", Ext: "js"},
		zerolog.Nop(),
	)
	if seedDir != "" {
		set, _, err := registry.LoadDir(seedDir, "js")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := store.Merge(set); err != nil {
			t.Fatalf("merge: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Watch(ctx, ready)
	}()
	<-ready
	t.Cleanup(func() { cancel(); <-done })

	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	orch := fake.New()
	d := deployer.New(deployer.Config{Store: store, Orchestrator: orch, Journal: j})
	srv := httptest.NewServer(httpapi.NewMux(d))
	t.Cleanup(srv.Close)
	return env{srv: srv, orch: orch, store: store, dir: dir}
}

func httpDo(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	out, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, out
}

func mustJSON[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("json: %v; body=%s", err, b)
	}
	return v
}
