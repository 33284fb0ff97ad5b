package api

import (
	"net/http"

	"github.com/MrWong99/dictanote/internal/theme"
)

func (s *Server) getTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.themes.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.themes.View(t))
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) setTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := theme.Parse(req.Theme)
	if err != nil {
		writeError(w, r, badRequest("Unknown theme "+req.Theme))
		return
	}
	if err := s.themes.Set(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.themes.View(t))
}
