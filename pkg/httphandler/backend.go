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
	lo "github.com/samber/lo"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /{$}
// GET returns the URL of every backend, keyed by name. Credentials are
// never included in the URL.
func BackendListHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/{$}", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.BackendListResponse{
				Body: lo.SliceToMap(mgr.Backends(), func(name string) (string, string) {
					return name, mgr.Backend(name).URL().String()
				}),
			})
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List the storage backends which accept form uploads",
			},
		})
}
