//go:build !swagger

package httpapi

import (
	"net/http"
	"testing"
)

func TestMountSwagger_NoOp(t *testing.T) {
	w := do(t, NewMux(&mockService{}), http.MethodGet, "/swagger/index.html", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
