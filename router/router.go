package router

import (
	"net/http"

	noteHandler "mdnotes/internal/note"
	"mdnotes/internal/note/service"
	"mdnotes/middleware"
	"mdnotes/socket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	CORSAllowedOrigin string
	MaxUploadBytes    int64
	Gatherer          prometheus.Gatherer
}

func Setup(noteService *service.NoteService, hub *socket.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, opts.CORSAllowedOrigin)
	})

	// REST API
	h := noteHandler.NewNoteHandler(noteService, opts.MaxUploadBytes)

	mux.HandleFunc("/api/notes/upload", h.UploadNote)
	mux.HandleFunc("/api/notes", h.ListNotes)
	mux.HandleFunc("/api/notes/export", h.ExportNotes)
	mux.HandleFunc("/api/notes/get", h.GetNote)
	mux.HandleFunc("/api/notes/html", h.GetNoteHTML)
	mux.HandleFunc("/api/notes/raw", h.GetNoteRaw)
	mux.HandleFunc("/api/notes/grammar", h.CheckNoteGrammar)
	mux.HandleFunc("/api/grammar/live", h.CheckGrammarLive)
	mux.HandleFunc("/api/grammar/remote", h.CheckGrammarRemote)
	mux.HandleFunc("/api/grammar/correct", h.CorrectText)

	// Operations
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	return middleware.LoggingMiddleware(middleware.CORSMiddleware(opts.CORSAllowedOrigin)(mux))
}
