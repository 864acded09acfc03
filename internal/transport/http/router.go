package http

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

// NewRouter mounts the JSON API, the play WebSocket and the health check behind CORS.
func NewRouter(api *APIHandler, ws *WSHandler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/createQuizSet", api.CreateQuizSet).Methods(http.MethodPost)
	r.HandleFunc("/api/fetchQuizSet/{quizSetKey}", api.FetchQuizSet).Methods(http.MethodGet)
	r.HandleFunc("/api/saveQuizSetData", api.SaveQuizSetData).Methods(http.MethodPost)
	r.HandleFunc("/api/subscribe", api.Subscribe).Methods(http.MethodPost)
	r.HandleFunc("/api/snap", api.Snap).Methods(http.MethodPost)
	r.HandleFunc("/api/buildPage", api.BuildPage).Methods(http.MethodPost)
	r.HandleFunc("/ws", ws.ServeWS)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})(r)
}
