package http

import "net/http"

// Readiness reports whether the first snapshot has been loaded.
type Readiness interface {
	Loaded() bool
}

type healthResponse struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
}

func Health(ready Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loaded := ready.Loaded()
		status, code := "ok", http.StatusOK
		if !loaded {
			status, code = "loading", http.StatusServiceUnavailable
		}
		writeJSON(w, code, healthResponse{Status: status, Loaded: loaded})
	}
}
