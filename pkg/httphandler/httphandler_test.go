package httphandler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	// Packages
	httphandler "github.com/mutablelogic/go-formdata/pkg/httphandler"
	manager "github.com/mutablelogic/go-formdata/pkg/manager"
)

// serveMux registers every route on a new mux
func serveMux(mgr *manager.Manager) *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range httphandler.Routes() {
		path, handler, _ := route(mgr)
		mux.HandleFunc(path, handler)
	}
	return mux
}

// newTestManager returns a manager with a backend for each URL
func newTestManager(t *testing.T, backends ...string) *manager.Manager {
	t.Helper()
	opts := make([]manager.Opt, 0, len(backends))
	for _, url := range backends {
		opts = append(opts, manager.WithBackend(context.Background(), url))
	}
	mgr, err := manager.New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// newFileMux returns a mux serving one file:// backend, and its directory
func newFileMux(t *testing.T, name string) (*http.ServeMux, *manager.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	mgr := newTestManager(t, "file://"+name+dir)
	return serveMux(mgr), mgr, dir
}

// serve a request, with header given as name, value pairs
func serve(mux http.Handler, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	return rw
}
