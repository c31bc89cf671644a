package httpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vellumapp/platform/internal/errs"
)

// decodeJSON decodes a JSON request body into the destination struct.
// The reader will be closed after decoding.
func decodeJSON(r io.ReadCloser, dest any) error {
	defer r.Close()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// writeError reports err as a JSON body with the status errs.Kind.HTTPStatus
// maps it to. An error kind that isn't user-visible (a replayed webhook, an
// internal transient-store failure) still gets a status code here, but the
// message is kept generic rather than leaking internal detail.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	message := err.Error()
	if !kind.UserVisible() {
		message = "request could not be processed"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(kind),
		"message": message,
	})
}
