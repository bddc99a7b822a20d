// Package httphandler serves the formdata REST API: the list of backends,
// form uploads into a backend, and reads of the stored parts.
package httphandler

import (
	"errors"
	"net/http"

	// Packages
	manager "github.com/mutablelogic/go-formdata/pkg/manager"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Router registers a handler and its OpenAPI description at a path
type Router interface {
	RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error
}

// Route returns the path, handler and description of one route
type Route func(*manager.Manager) (string, http.HandlerFunc, *openapi.PathItem)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Routes returns every route, most specific last
func Routes() []Route {
	return []Route{BackendListHandler, ObjectListHandler, ObjectHandler}
}

// RegisterHandlers registers every route with middleware on the router
func RegisterHandlers(mgr *manager.Manager, router Router) error {
	var result error
	for _, route := range Routes() {
		path, handler, spec := route(mgr)
		result = errors.Join(result, router.RegisterFunc(path, handler, true, spec))
	}
	return result
}
