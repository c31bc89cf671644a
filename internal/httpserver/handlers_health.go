package httpserver

import "net/http"

// health is a liveness probe: if this handler runs at all, the process is
// up. It does not check downstream dependencies (the store, the bus) since
// those already have their own restart-on-failure supervision.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
