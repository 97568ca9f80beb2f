// Package httpapi exposes the coordinator over HTTP: saga execution,
// status lookup, forced compensation, metrics, health, and event-log
// statistics.
//
// It is grounded in http/basic's JSON envelope and net/http.ServeMux
// wiring (response.go, http_server.go), simplified from that file's
// full IHttpServer/route-group/middleware-chain abstraction down to a
// single mux: a coordination API has a handful of fixed routes, not an
// arbitrary plugin surface, so the extra abstraction buys nothing here.
package httpapi

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Code: 0, Message: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Code: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
