package httphandler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

func Test_backendList(t *testing.T) {
	tests := []struct {
		name     string
		backends []string
		want     map[string]string
	}{
		{"none", nil, map[string]string{}},
		{"mem", []string{"mem://media", "mem://backup/forms"}, map[string]string{
			"media":  "mem://media",
			"backup": "mem://backup/forms",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := serve(serveMux(newTestManager(t, tt.backends...)), http.MethodGet, "/", nil)
			if rw.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rw.Code)
			}
			var out schema.BackendListResponse
			if err := json.NewDecoder(rw.Body).Decode(&out); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(out.Body) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, out.Body)
			}
			for name, url := range tt.want {
				if out.Body[name] != url {
					t.Errorf("backend %q: expected %q, got %q", name, url, out.Body[name])
				}
			}
		})
	}
}

func Test_backendList_methodNotAllowed(t *testing.T) {
	rw := serve(serveMux(newTestManager(t)), http.MethodPost, "/", nil)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rw.Code)
	}
}
