package httphandler

import (
	"net/http"

	// Packages
	manager "github.com/mutablelogic/go-formdata/pkg/manager"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /{name}
// GET lists the stored parts of a backend, filtered by the path and
// recursive query parameters. POST parses a multipart form with persisted
// parts written at the backend root.
func ObjectListHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/{name}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = formUpload(w, r, mgr)
			case http.MethodGet:
				if req, err := listRequest(r); err != nil {
					_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
				} else if list, err := mgr.ListObjects(r.Context(), r.PathValue("name"), req); err != nil {
					_ = httpresponse.Error(w, err)
				} else {
					_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), list)
				}
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List stored parts, optionally under a path prefix",
			},
			Post: &openapi.Operation{
				Description: formDescription,
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func listRequest(r *http.Request) (schema.ListObjectsRequest, error) {
	var req schema.ListObjectsRequest
	if err := httprequest.Query(r.URL.Query(), &req); err != nil {
		return req, err
	}
	req.Path = types.NormalisePath(req.Path)
	return req, nil
}
