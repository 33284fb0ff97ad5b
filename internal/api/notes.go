package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/MrWong99/dictanote/internal/notes"
)

// maxUploadBody bounds one multipart request. Individual files are
// still checked against notes.MaxImageSize.
const maxUploadBody = 64 << 20

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []notes.Note{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	n, err := s.notes.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	n, err := s.notes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// updateRequest carries the editable fields of a note. Omitted fields keep
// their stored value.
type updateRequest struct {
	Title   *string        `json:"title"`
	Content *string        `json:"content"`
	Images  *[]notes.Image `json:"images"`
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cur, err := s.notes.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	title, content, images := cur.Title, cur.Content, cur.Images
	if req.Title != nil {
		title = *req.Title
	}
	if req.Content != nil {
		content = *req.Content
	}
	if req.Images != nil {
		images = *req.Images
	}

	n, err := s.notes.Update(r.Context(), id, title, content, images)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.noteChanged(n)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.notes.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.assist.Forget(id)
	if s.dictation != nil {
		s.dictation.NoteDeleted(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) attachImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest("Invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, badRequest("No files uploaded"))
		return
	}
	uploads := make([]notes.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		uploads = append(uploads, up)
	}

	n, err := s.notes.AttachImages(r.Context(), r.PathValue("id"), uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.noteChanged(n)
	writeJSON(w, http.StatusOK, n)
}

// readUpload reads one multipart file, stopping just past the image limit so
// oversize files are still rejected as too large.
func readUpload(fh *multipart.FileHeader) (notes.Upload, error) {
	up := notes.Upload{FileName: fh.Filename, ContentType: fh.Header.Get("Content-Type")}
	f, err := fh.Open()
	if err != nil {
		return up, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, notes.MaxImageSize+1))
	if err != nil {
		return up, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	up.Data = data
	return up, nil
}

func (s *Server) removeImage(w http.ResponseWriter, r *http.Request) {
	n, err := s.notes.RemoveImage(r.Context(), r.PathValue("id"), r.PathValue("imageID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.noteChanged(n)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) noteChanged(n *notes.Note) {
	if s.dictation != nil {
		s.dictation.NoteChanged(n)
	}
}
