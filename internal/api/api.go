// Package api serves the note editor's HTTP surface: note CRUD, image
// attachments, assistant actions, the theme preference and the dictation
// WebSocket.
//
// All request and response bodies are JSON except image uploads
// (multipart/form-data, field "files") and dictation audio (binary WebSocket
// frames). Errors are reported as {"error": "..."} with a status derived from
// the domain error.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/dictanote/internal/assist"
	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/health"
	"github.com/MrWong99/dictanote/internal/notes"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/internal/speech"
	"github.com/MrWong99/dictanote/internal/theme"
)

// maxJSONBody bounds JSON request bodies. Note content lives in
// them, images do not.
const maxJSONBody = 4 << 20

// NoteService is the subset of notes.Service the API calls.
type NoteService interface {
	Create(ctx context.Context) (*notes.Note, error)
	List(ctx context.Context) ([]notes.Note, error)
	Get(ctx context.Context, id string) (*notes.Note, error)
	Update(ctx context.Context, id, title, content string, images []notes.Image) (*notes.Note, error)
	Delete(ctx context.Context, id string) error
	AttachImages(ctx context.Context, id string, files []notes.Upload) (*notes.Note, error)
	RemoveImage(ctx context.Context, id, imageID string) (*notes.Note, error)
}

// Assistant runs model actions on notes.
type Assistant interface {
	Run(ctx context.Context, action assist.Action, noteID string) (*assist.Result, error)
	ApplyBeautified(ctx context.Context, noteID string) (*notes.Note, error)
	Forget(noteID string)
}

// Themes reads and writes the theme preference.
type Themes interface {
	Get(ctx context.Context) (theme.Theme, error)
	Set(ctx context.Context, t theme.Theme) error
	View(t theme.Theme) theme.View
}

// DictationClient is the browser side of a dictation session.
type DictationClient interface {
	speech.AudioSource
	dictation.Reporter
	dictation.Observer
	ShowContent(content string, cursor int)
}

// DictationSession is one open dictation on one note.
type DictationSession interface {
	Start(mode dictation.Mode) error
	Stop()
	SetCursor(pos int)
	// SampleRate is the PCM rate the recognizer expects, in Hz.
	SampleRate() int
	Status() dictation.Status
	Done() <-chan struct{}
	Close()
}

// DictationHub opens dictation sessions and keeps them in line with edits
// made through the REST routes.
type DictationHub interface {
	Open(ctx context.Context, noteID string, c DictationClient) (DictationSession, error)
	// NoteChanged reports an edit the client already shows.
	NoteChanged(n *notes.Note)
	// NoteReplaced reports a server-side rewrite the client must be sent.
	NoteReplaced(n *notes.Note)
	NoteDeleted(id string)
}

// Config holds the dependencies of a [Server]. Notes, Assist and Themes are
// required.
type Config struct {
	Notes     NoteService
	Assist    Assistant
	Themes    Themes
	Dictation DictationHub

	// Health, if set, serves /healthz and /readyz.
	Health *health.Handler

	// Metrics, if set, wraps every route in observe.Middleware.
	Metrics *observe.Metrics

	// MetricsHandler, if set, is served at /metrics.
	MetricsHandler http.Handler

	// AllowedOrigins are extra origin patterns accepted for the dictation
	// WebSocket.
	AllowedOrigins []string
}

// Server routes API requests.
type Server struct {
	notes     NoteService
	assist    Assistant
	themes    Themes
	dictation DictationHub
	origins   []string

	handler http.Handler
}

// New builds the router.
func New(cfg Config) *Server {
	s := &Server{
		notes:     cfg.Notes,
		assist:    cfg.Assist,
		themes:    cfg.Themes,
		dictation: cfg.Dictation,
		origins:   cfg.AllowedOrigins,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notes", s.listNotes)
	mux.HandleFunc("POST /api/notes", s.createNote)
	mux.HandleFunc("GET /api/notes/{id}", s.getNote)
	mux.HandleFunc("PUT /api/notes/{id}", s.updateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.deleteNote)
	mux.HandleFunc("POST /api/notes/{id}/images", s.attachImages)
	mux.HandleFunc("DELETE /api/notes/{id}/images/{imageID}", s.removeImage)
	mux.HandleFunc("POST /api/notes/{id}/assist/{action}", s.runAssist)
	mux.HandleFunc("POST /api/notes/{id}/assist/beautify/apply", s.applyBeautified)
	mux.HandleFunc("GET /api/theme", s.getTheme)
	mux.HandleFunc("PUT /api/theme", s.setTheme)
	if s.dictation != nil {
		mux.HandleFunc("GET /api/notes/{id}/dictation", s.dictate)
	}
	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	var h http.Handler = mux
	if cfg.Metrics != nil {
		h = observe.Middleware(cfg.Metrics)(mux)
	}
	s.handler = h
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("api: write response", "err", err)
	}
}

// writeError maps err onto a status and a user-facing message. Unexpected
// errors are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("api: request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	var (
		genErr   *assist.GenerateError
		emptyErr *assist.EmptyContentError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.Is(err, notes.ErrNotFound):
		return http.StatusNotFound, "Note not found"
	case errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity, emptyErr.Error()
	case errors.Is(err, notes.ErrNotImage):
		return http.StatusBadRequest, notes.ErrNotImage.Error()
	case errors.Is(err, notes.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, notes.ErrImageTooLarge.Error()
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, assist.ErrUnknownAction):
		return http.StatusNotFound, "Unknown action"
	case errors.Is(err, assist.ErrNothingToApply):
		return http.StatusConflict, assist.ErrNothingToApply.Error()
	case errors.As(err, &genErr):
		if errors.Is(err, assist.ErrNoProvider) {
			return http.StatusServiceUnavailable, genErr.Error()
		}
		return http.StatusBadGateway, genErr.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

var errBadRequest = errors.New("bad request")

// badRequest wraps msg so classify reports it verbatim with 400.
func badRequest(msg string) error { return &requestError{msg: msg} }

type requestError struct{ msg string }

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("Invalid JSON body")
	}
	return nil
}
