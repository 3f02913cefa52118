package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter wires the handler into the route table.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ai/query", h.Query).Methods(http.MethodPost)
	api.HandleFunc("/ai/generate", h.Generate).Methods(http.MethodPost)
	api.HandleFunc("/ai/generate/stream", h.GenerateStream).Methods(http.MethodPost)
	api.HandleFunc("/documents", h.Ingest).Methods(http.MethodPost)
	api.HandleFunc("/vectors/{id}", h.DeleteVector).Methods(http.MethodDelete)

	return r
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
