package api

import (
	"net/http"

	"github.com/MrWong99/dictanote/internal/assist"
)

func (s *Server) runAssist(w http.ResponseWriter, r *http.Request) {
	action, err := assist.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.assist.Run(r.Context(), action, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// applyBeautified replaces the note with its last beautify result. The
// client learns the new content from the response; an open dictation
// session is sent it as well.
func (s *Server) applyBeautified(w http.ResponseWriter, r *http.Request) {
	n, err := s.assist.ApplyBeautified(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.dictation != nil {
		s.dictation.NoteReplaced(n)
	}
	writeJSON(w, http.StatusOK, n)
}
