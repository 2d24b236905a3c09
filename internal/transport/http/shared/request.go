package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpieval/internal/transport/http/api"
	"kpieval/internal/transport/http/middleware"
)

// DecodeJSON decodes the body into dst and writes a 400 on failure. An empty
// body is accepted when allowEmpty is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
		return false
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
	return false
}

// PathID parses a positive integer URL parameter and writes a 404 when it is
// not one; malformed ids cannot name an existing row.
func PathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(w, http.StatusNotFound, "not_found", name+" not found", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}
