package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	// Packages
	httpclient "github.com/mutablelogic/go-formdata/pkg/httpclient"
	httphandler "github.com/mutablelogic/go-formdata/pkg/httphandler"
	manager "github.com/mutablelogic/go-formdata/pkg/manager"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
)

// muxRouter registers handlers on a ServeMux, without middleware
type muxRouter struct {
	*http.ServeMux
}

func (r muxRouter) RegisterFunc(path string, handler http.HandlerFunc, _ bool, _ *openapi.PathItem) error {
	r.HandleFunc(path, handler)
	return nil
}

// newTestServer serves the API for the backends, and returns a client
// for it. The server is closed when the test ends.
func newTestServer(t *testing.T, backends ...string) *httpclient.Client {
	t.Helper()
	opts := make([]manager.Opt, 0, len(backends))
	for _, url := range backends {
		opts = append(opts, manager.WithBackend(context.Background(), url))
	}
	mgr, err := manager.New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	router := muxRouter{http.NewServeMux()}
	if err := httphandler.RegisterHandlers(mgr, router); err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := httpclient.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestGetObject_missingBackend(t *testing.T) {
	c := newTestServer(t)
	if _, err := c.GetObject(context.Background(), "nothing", schema.GetObjectRequest{Path: "/a"}); err == nil {
		t.Error("expected an error for a missing backend")
	}
}
