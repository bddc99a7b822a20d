package httphandler

import (
	"bufio"
	"errors"
	"io"
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

// Path: /{name}/{path...}
// POST parses a multipart form with persisted parts written under the path.
// GET downloads a stored part, HEAD returns its metadata and DELETE
// removes it.
func ObjectHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/{name}/{path...}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				_ = formUpload(w, r, mgr)
			case http.MethodGet, http.MethodHead:
				_ = objectRead(w, r, mgr)
			case http.MethodDelete:
				_ = objectDelete(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: formDescription,
			},
			Get: &openapi.Operation{
				Description: "Download a stored part",
			},
			Head: &openapi.Operation{
				Description: "Get stored part metadata, in the X-Object-Meta header",
			},
			Delete: &openapi.Operation{
				Description: "Delete a stored part",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// objectRead writes the headers of a stored part and, for GET, its content
func objectRead(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	name, path := r.PathValue("name"), types.NormalisePath(r.PathValue("path"))
	if r.Method == http.MethodHead {
		obj, err := mgr.GetObject(r.Context(), name, schema.GetObjectRequest{Path: path})
		if err != nil {
			return httpresponse.Error(w, err)
		}
		return respond(w, r, obj, contentType(obj, ""), nil)
	}

	reader, obj, err := mgr.ReadObject(r.Context(), name, schema.ReadObjectRequest{
		GetObjectRequest: schema.GetObjectRequest{Path: path},
	})
	if err != nil {
		return httpresponse.Error(w, err)
	}
	defer reader.Close()

	// Sniff the content type from the start of the content
	body := bufio.NewReaderSize(reader, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return httpresponse.Error(w, err)
	}
	return respond(w, r, obj, contentType(obj, http.DetectContentType(head)), body)
}

// respond writes the object headers, then the status for the request
// preconditions and the body when there is one
func respond(w http.ResponseWriter, r *http.Request, obj *schema.Object, ctype string, body io.Reader) error {
	writeHeaders(w, obj, ctype)
	if status := precondition(r, obj); status != 0 {
		w.WriteHeader(status)
		return nil
	}
	w.WriteHeader(http.StatusOK)
	if body == nil {
		return nil
	}
	_, err := io.Copy(w, body)
	return err
}

func objectDelete(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	obj, err := mgr.DeleteObject(r.Context(), r.PathValue("name"), schema.DeleteObjectRequest{
		Path: types.NormalisePath(r.PathValue("path")),
	})
	if err != nil {
		return httpresponse.Error(w, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), obj)
}
