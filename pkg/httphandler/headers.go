package httphandler

import (
	"encoding/json"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// sniffLen is the number of bytes read to detect a content type
const sniffLen = 512

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// contentType returns the stored type of obj unless it is missing or
// generic, then the sniffed type, then the type for the filename extension
func contentType(obj *schema.Object, sniffed string) string {
	for _, ctype := range []string{obj.ContentType, sniffed} {
		if ctype != "" && ctype != types.ContentTypeBinary {
			return ctype
		}
	}
	if ctype := mime.TypeByExtension(path.Ext(obj.FileName())); ctype != "" {
		return ctype
	}
	return types.ContentTypeBinary
}

func writeHeaders(w http.ResponseWriter, obj *schema.Object, ctype string) {
	h := w.Header()
	h.Set(types.ContentTypeHeader, ctype)
	h.Set(types.ContentPathHeader, obj.Path)
	h.Set(types.ContentLengthHeader, strconv.FormatInt(max(obj.Size, 0), 10))
	h.Set(types.ContentModifiedHeader, obj.ModTime.UTC().Format(http.TimeFormat))
	if name := obj.FileName(); name != "/" && name != "." {
		if cd := mime.FormatMediaType("inline", map[string]string{"filename": name}); cd != "" {
			h.Set(types.ContentDispositonHeader, cd)
		}
	}
	if obj.ETag != "" {
		h.Set(types.ContentHashHeader, obj.ETag)
	}
	if data, err := json.Marshal(obj); err == nil {
		h.Set(schema.ObjectMetaHeader, string(data))
	}
}

// precondition returns 412 or 304 when the conditional headers of r stop
// the request, or zero when it should be served. If-Match and
// If-None-Match take precedence over the date headers.
func precondition(r *http.Request, obj *schema.Object) int {
	modtime := obj.ModTime.Truncate(time.Second)
	if tags := r.Header.Get("If-Match"); tags != "" {
		if !etagMatch(tags, obj.ETag, true) {
			return http.StatusPreconditionFailed
		}
	} else if since, ok := headerTime(r, "If-Unmodified-Since"); ok && modtime.After(since) {
		return http.StatusPreconditionFailed
	}
	if tags := r.Header.Get("If-None-Match"); tags != "" {
		if etagMatch(tags, obj.ETag, false) {
			return http.StatusNotModified
		}
	} else if since, ok := headerTime(r, "If-Modified-Since"); ok && !modtime.After(since) {
		return http.StatusNotModified
	}
	return 0
}

func headerTime(r *http.Request, key string) (time.Time, bool) {
	value := r.Header.Get(key)
	if value == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(value)
	return t, err == nil
}

// etagMatch returns true when etag is in tags, a comma-separated list of
// entity tags or "*". A strong comparison never matches a weak tag. An
// object without an etag matches nothing.
func etagMatch(tags, etag string, strong bool) bool {
	if etag == "" || (strong && strings.HasPrefix(etag, "W/")) {
		return false
	}
	opaque := strings.Trim(strings.TrimPrefix(etag, "W/"), `"`)
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		if weak, ok := strings.CutPrefix(tag, "W/"); ok {
			if strong {
				continue
			}
			tag = weak
		}
		if strings.Trim(tag, `"`) == opaque {
			return true
		}
	}
	return false
}
