package handlers

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the HTTP handler of the chat application. staticFS is served under /static/ and
// allowedOrigins configures CORS for the JSON and form endpoints.
func (m Main) Routes(staticFS fs.FS, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(m.logger))
	r.Use(chimw.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", m.HandleHome)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/sse", m.HandleSSE)
	r.Get("/state", m.HandleState)
	r.Post("/messages", m.HandleMessages)
	r.Post("/draft", m.HandleDraft)
	r.Post("/session/end", m.HandleSessionEnd)

	r.Route("/speech", func(r chi.Router) {
		r.Post("/start", m.HandleSpeechStart)
		r.Post("/transcript", m.HandleSpeechTranscript)
		r.Post("/error", m.HandleSpeechError)
		r.Post("/audio", m.HandleSpeechAudio)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
