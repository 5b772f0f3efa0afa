package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"cubedeploy/internal/journal"
	"cubedeploy/internal/modelset"
	"cubedeploy/internal/orchestrator"
	"cubedeploy/internal/orchestrator/fake"
	"cubedeploy/pkg/types"
)

const widget = "cube(`Widget`,{sql:`SELECT 1`,dimensions:{},measures:{count:{type:`count`}}})"

type fixture struct {
	d     *Deployer
	orch  *fake.Orchestrator
	store *modelset.Store
	j     *journal.Journal
	pub   *MemoryPublisher
}

func newFixture(t *testing.T, mounts ...orchestrator.Mount) fixture {
	t.Helper()
	store := modelset.NewStore(
		filepath.Join(t.TempDir(), "cube-models.yaml"),
		modelset.Meta{Name: "cube-models", Namespace: "default", Ext: "js"},
		zerolog.Nop(),
	)
	j, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	orch := fake.New(mounts...)
	pub := NewMemoryPublisher()
	d := New(Config{Store: store, Orchestrator: orch, Journal: j, Publisher: pub})
	return fixture{d: d, orch: orch, store: store, j: j, pub: pub}
}

func stepLabels(steps []types.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Step)
	}
	return out
}

func assertLabels(t *testing.T, got []types.Step, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(stepLabels(got), want) {
		t.Fatalf("steps = %v, want %v", stepLabels(got), want)
	}
}

func TestNewDefaults(t *testing.T) {
	d := New(Config{})
	if d.rolloutTimeout != defaultRolloutTimeout {
		t.Fatalf("rolloutTimeout = %v", d.rolloutTimeout)
	}
	if d.logLines != defaultLogLines {
		t.Fatalf("logLines = %d", d.logLines)
	}
	if d.mountDir != defaultMountDir || d.volume != defaultVolumeName {
		t.Fatalf("mountDir=%q volume=%q", d.mountDir, d.volume)
	}
}

func TestDeploy_NewModelRegistersMount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.d.Deploy(ctx, "Widget", widget)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	assertLabels(t, res.Steps, StepApply, StepRestart, StepMount, StepStatus)
	for _, s := range res.Steps {
		if !s.OK {
			t.Fatalf("step %s not ok: %q", s.Step, s.Output)
		}
	}
	if res.RolloutPending {
		t.Fatalf("unexpected rollout pending")
	}
	want := []string{fake.OpApply, fake.OpRestart, fake.OpMounts, fake.OpAddMount, fake.OpWaitRollout}
	if got := f.orch.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if got := f.orch.MountPaths(); !reflect.DeepEqual(got, []string{"/cube/conf/model/Widget.js"}) {
		t.Fatalf("mounts = %v", got)
	}
	text, err := f.d.Get(ctx, "Widget")
	if err != nil || text != widget {
		t.Fatalf("Get = %q, %v", text, err)
	}
}

func TestDeploy_RedeploySkipsMount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.d.Deploy(ctx, "Widget", widget); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	f.orch.ResetCalls()

	changed := strings.Replace(widget, "SELECT 1", "SELECT 2", 1)
	res, err := f.d.Deploy(ctx, "Widget", changed)
	if err != nil {
		t.Fatalf("redeploy: %v", err)
	}
	assertLabels(t, res.Steps, StepApply, StepRestart, StepStatus)
	for _, c := range f.orch.Calls() {
		if c == fake.OpAddMount {
			t.Fatalf("mount registered twice: %v", f.orch.Calls())
		}
	}
	set, err := f.d.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if set["Widget"] != changed {
		t.Fatalf("List returned stale text %q", set["Widget"])
	}
}

func TestDeploy_RolloutTimeoutIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.orch.RolloutPending = true
	ctx := context.Background()

	res, err := f.d.Deploy(ctx, "Widget", widget)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if !res.RolloutPending {
		t.Fatalf("expected RolloutPending")
	}
	last := res.Steps[len(res.Steps)-1]
	if last.Step != StepStatus || last.OK || last.Output == "" {
		t.Fatalf("status step = %+v", last)
	}
	run, err := f.j.Get(ctx, res.RunID)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if run.Status != types.RunSucceeded || run.LastStep != StepStatus {
		t.Fatalf("run = %+v", run)
	}
}

func TestDeploy_RolloutFailureIsExternal(t *testing.T) {
	f := newFixture(t)
	f.orch.Fail(fake.OpWaitRollout, fake.CommandFailure(`error: deployments.apps "cube" not found`))
	res, err := f.d.Deploy(context.Background(), "Widget", widget)
	if !IsExternal(err) {
		t.Fatalf("expected external error, got %v", err)
	}
	assertLabels(t, res.Steps, StepApply, StepRestart, StepMount, StepStatus)
}

func TestDeploy_ApplyFailureLeavesManifestWritten(t *testing.T) {
	f := newFixture(t)
	f.orch.Fail(fake.OpApply, fake.CommandFailure("error: unable to recognize \"cube-models.yaml\""))
	ctx := context.Background()

	res, err := f.d.Deploy(ctx, "Widget", widget)
	if !IsExternal(err) {
		t.Fatalf("expected external error, got %v", err)
	}
	if err.Error() != "error: unable to recognize \"cube-models.yaml\"" {
		t.Fatalf("error text not verbatim: %q", err.Error())
	}
	var ee *ExternalError
	if !errors.As(err, &ee) || ee.Step != StepApply {
		t.Fatalf("step = %+v", ee)
	}
	assertLabels(t, res.Steps, StepApply)
	if res.Steps[0].OK {
		t.Fatalf("apply step reported ok")
	}
	if got := f.orch.Calls(); !reflect.DeepEqual(got, []string{fake.OpApply}) {
		t.Fatalf("later steps ran: %v", got)
	}
	// no rollback
	if _, err := f.d.Get(ctx, "Widget"); err != nil {
		t.Fatalf("model rolled back: %v", err)
	}
	run, err := f.j.Get(ctx, res.RunID)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if run.Status != types.RunFailed || run.LastStep != stagePersist {
		t.Fatalf("run = %+v", run)
	}
}

func TestResume_ContinuesAfterLastStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orch.Fail(fake.OpAddMount, fake.CommandFailure("error: the server rejected our request"))
	res, err := f.d.Deploy(ctx, "Widget", widget)
	if err == nil {
		t.Fatalf("expected failure")
	}
	f.orch.Fail(fake.OpAddMount, nil)
	f.orch.ResetCalls()

	resumed, err := f.d.Resume(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.RunID != res.RunID {
		t.Fatalf("run id changed: %d != %d", resumed.RunID, res.RunID)
	}
	assertLabels(t, resumed.Steps, StepMount, StepStatus)
	want := []string{fake.OpMounts, fake.OpAddMount, fake.OpWaitRollout}
	if got := f.orch.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	run, _ := f.j.Get(ctx, res.RunID)
	if run.Status != types.RunSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}

	if _, err := f.d.Resume(ctx, res.RunID); !IsValidation(err) {
		t.Fatalf("resuming a succeeded run: %v", err)
	}
	if _, err := f.d.Resume(ctx, 999); !IsNotFound(err) {
		t.Fatalf("resuming unknown run: %v", err)
	}
}

func TestResume_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.d.Deploy(ctx, "Widget", widget); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	f.orch.Fail(fake.OpRestart, fake.CommandFailure("error: connection refused"))
	res, err := f.d.Delete(ctx, "Widget")
	if !IsExternal(err) {
		t.Fatalf("expected external error, got %v", err)
	}
	assertLabels(t, res.Steps, StepApply, StepUnmount, StepRestart)
	f.orch.Fail(fake.OpRestart, nil)

	resumed, err := f.d.Resume(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	assertLabels(t, resumed.Steps, StepRestart)
}

func TestResume_AfterCrashMidRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// a previous process stored the model and died before applying it
	if _, err := f.store.Put("Widget", widget); err != nil {
		t.Fatalf("Put: %v", err)
	}
	id, err := f.j.Begin(ctx, journal.OpDeploy, "Widget")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.j.Step(ctx, id, stagePersist); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if _, err := f.d.Resume(ctx, id); !IsValidation(err) {
		t.Fatalf("resuming a running run: %v", err)
	}

	n, err := f.d.MarkInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MarkInterrupted = %d, %v", n, err)
	}
	run, _ := f.j.Get(ctx, id)
	if run.Status != types.RunFailed || run.Error != journal.InterruptedError {
		t.Fatalf("run = %+v", run)
	}

	resumed, err := f.d.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	assertLabels(t, resumed.Steps, StepApply, StepRestart, StepMount, StepStatus)
	run, _ = f.j.Get(ctx, id)
	if run.Status != types.RunSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
}

func TestMarkInterrupted_WithoutJournal(t *testing.T) {
	d := New(Config{Orchestrator: fake.New()})
	if n, err := d.MarkInterrupted(context.Background()); n != 0 || err != nil {
		t.Fatalf("MarkInterrupted = %d, %v", n, err)
	}
}

func TestResume_WithoutJournal(t *testing.T) {
	d := New(Config{Orchestrator: fake.New()})
	if _, err := d.Resume(context.Background(), 1); !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestDelete_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.d.Deploy(ctx, "Widget", widget); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.d.Delete(ctx, "Widget"); err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
	}
	set, err := f.d.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, ok := set["Widget"]; ok {
		t.Fatalf("Widget still listed")
	}
	if _, err := f.d.Get(ctx, "Widget"); !IsNotFound(err) {
		t.Fatalf("Get after delete: %v", err)
	}
}

func TestDelete_WithoutMountSkipsUnmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.Put("Widget", widget); err != nil {
		t.Fatalf("Put: %v", err)
	}
	res, err := f.d.Delete(ctx, "Widget")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertLabels(t, res.Steps, StepApply, StepRestart)
	for _, c := range f.orch.Calls() {
		if c == fake.OpRemoveMount {
			t.Fatalf("unmount called: %v", f.orch.Calls())
		}
	}
	set, _ := f.d.List(ctx)
	if len(set) != 0 {
		t.Fatalf("set = %v", set)
	}
}

func TestDelete_RemovesOnlyItsOwnMount(t *testing.T) {
	f := newFixture(t,
		orchestrator.Mount{Volume: "cube-models", MountPath: "/cube/conf/model/Gadget.js", SubPath: "Gadget.js"},
		orchestrator.Mount{Volume: "cube-models", MountPath: "/cube/conf/model/Widget.js", SubPath: "Widget.js"},
		orchestrator.Mount{Volume: "cube-models", MountPath: "/cube/conf/model/Sprocket.js", SubPath: "Sprocket.js"},
	)
	res, err := f.d.Delete(context.Background(), "Widget")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertLabels(t, res.Steps, StepApply, StepUnmount, StepRestart)
	want := []string{"/cube/conf/model/Gadget.js", "/cube/conf/model/Sprocket.js"}
	if got := f.orch.MountPaths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("mounts = %v, want %v", got, want)
	}
}

func TestManifestSizeTracksModelCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := []struct {
		deploy bool
		name   string
	}{
		{true, "A"}, {true, "B"}, {true, "A"}, {false, "C"}, {true, "C"}, {false, "A"}, {false, "A"}, {true, "D"},
	}
	for _, op := range ops {
		var err error
		if op.deploy {
			_, err = f.d.Deploy(ctx, op.name, strings.ReplaceAll(widget, "Widget", op.name))
		} else {
			_, err = f.d.Delete(ctx, op.name)
		}
		if err != nil {
			t.Fatalf("%+v: %v", op, err)
		}
		raw, err := os.ReadFile(f.store.Path())
		if err != nil {
			t.Fatalf("read manifest: %v", err)
		}
		_, doc, err := modelset.Decode(raw, "js")
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		set, _ := f.d.List(ctx)
		if len(doc.Data) != len(set) {
			t.Fatalf("after %+v: document has %d keys, set has %d", op, len(doc.Data), len(set))
		}
	}
	set, _ := f.d.List(ctx)
	if got := set.Names(); !reflect.DeepEqual(got, []string{"B", "C", "D"}) {
		t.Fatalf("names = %v", got)
	}
}

func TestDeploy_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct{ name, text string }{
		{"../etc/passwd", widget},
		{"", widget},
		{"Widget", "not a model"},
		{"Widget", "cube(`Widget`, { sql: `select 1` "},
	}
	for _, c := range cases {
		if _, err := f.d.Deploy(ctx, c.name, c.text); !IsValidation(err) {
			t.Fatalf("Deploy(%q, %q): expected validation error, got %v", c.name, c.text, err)
		}
	}
	if calls := f.orch.Calls(); len(calls) != 0 {
		t.Fatalf("orchestrator called: %v", calls)
	}
	if _, err := f.d.Delete(ctx, "a/b"); !IsValidation(err) {
		t.Fatalf("Delete with bad name: %v", err)
	}
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	err := f.d.Validate("Widget", "not a model")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "must contain a cube() or view() definition") {
		t.Fatalf("message = %q", err.Error())
	}
	if code, ok := ValidationCode(err); !ok || code != "InvalidSyntax" {
		t.Fatalf("code = %q", code)
	}
	if err := f.d.Validate("", widget); err != nil {
		t.Fatalf("Validate without name: %v", err)
	}
	if err := f.d.Validate("Widget", "cube(`Widget`, { measures: {} })"); !IsValidation(err) {
		t.Fatalf("missing sql accepted")
	}
}

func TestGetAndListAgreeAfterOutOfBandEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.d.Deploy(ctx, "Widget", widget); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	b, err := modelset.Encode(modelset.Set{"Gadget": "cube(`Gadget`, {sql: `select 1`})"}, f.store.Meta())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(f.store.Path(), b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.d.Get(ctx, "Widget"); !IsNotFound(err) {
		t.Fatalf("Get(Widget) after edit: %v", err)
	}
	if _, err := f.d.Get(ctx, "Gadget"); err != nil {
		t.Fatalf("Get(Gadget): %v", err)
	}
	set, _ := f.d.List(ctx)
	if len(set) != 1 {
		t.Fatalf("List = %v", set)
	}
}

func TestConcurrentDeploysDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("M%d", i)
			if _, err := f.d.Deploy(ctx, name, strings.ReplaceAll(widget, "Widget", name)); err != nil {
				t.Errorf("Deploy %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()
	set, err := f.d.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(set) != 8 {
		t.Fatalf("lost updates: %v", set.Names())
	}
	if got := len(f.orch.MountPaths()); got != 8 {
		t.Fatalf("mounts = %d", got)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	if _, err := f.d.Deploy(context.Background(), "Widget", widget); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	names := f.pub.Names()
	if names[0] != EventRunStarted || names[len(names)-1] != EventRunFinished {
		t.Fatalf("events = %v", names)
	}
	done := 0
	for _, n := range names {
		if n == EventStepDone {
			done++
		}
	}
	// persist + four external steps
	if done != 5 {
		t.Fatalf("step_done events = %d", done)
	}
}

func TestStepMetrics(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(stepsTotal.WithLabelValues(StepMount, "ok"))
	if _, err := f.d.Deploy(context.Background(), "Widget", widget); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if got := testutil.ToFloat64(stepsTotal.WithLabelValues(StepMount, "ok")); got != before+1 {
		t.Fatalf("mount ok counter = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(modelsGauge); got != 1 {
		t.Fatalf("models gauge = %v", got)
	}
}

func TestRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.d.Deploy(ctx, "Widget", widget)
	_, _ = f.d.Delete(ctx, "Widget")
	runs, err := f.d.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].Op != journal.OpDelete || runs[1].Op != journal.OpDeploy {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestClusterPassthroughs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orch.StatusValue = types.ClusterStatus{Namespace: "default", Deployment: "cube", Replicas: 1}
	f.orch.ProbeOutput = `"1"`
	lines := make([]string, 80)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	f.orch.LogLines = lines

	st, err := f.d.ClusterStatus(ctx)
	if err != nil || st.Deployment != "cube" || st.Pods == nil {
		t.Fatalf("ClusterStatus = %+v, %v", st, err)
	}
	logs, err := f.d.ClusterLogs(ctx)
	if err != nil || len(logs) != 50 || logs[49] != "line 79" {
		t.Fatalf("ClusterLogs = %d lines, %v", len(logs), err)
	}
	out, err := f.d.TestConnection(ctx)
	if err != nil || out != `"1"` {
		t.Fatalf("TestConnection = %q, %v", out, err)
	}

	f.orch.Fail(fake.OpProbe, fake.CommandFailure("Query failed: connection refused"))
	if _, err := f.d.TestConnection(ctx); !IsExternal(err) || err.Error() != "Query failed: connection refused" {
		t.Fatalf("probe failure: %v", err)
	}
	f.orch.Fail(fake.OpStatus, orchestrator.ErrUnavailable("kubectl not found"))
	if _, err := f.d.ClusterStatus(ctx); !IsDependencyUnavailable(err) {
		t.Fatalf("status unavailable: %v", err)
	}
}

func TestDeploy_HonorsRolloutTimeoutSetting(t *testing.T) {
	f := newFixture(t)
	d := New(Config{Store: f.store, Orchestrator: f.orch, RolloutTimeout: 3 * time.Second})
	if d.rolloutTimeout != 3*time.Second {
		t.Fatalf("rolloutTimeout = %v", d.rolloutTimeout)
	}
	res, err := d.Deploy(context.Background(), "Widget", widget)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if res.RunID != 0 {
		t.Fatalf("run id without journal = %d", res.RunID)
	}
}
