package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"message-board/internal/board"
	"message-board/internal/uploads"
)

// wireMessage is the element type of the GET /messages array.
type wireMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func toWire(m board.Message, _ int) wireMessage {
	return wireMessage{Type: string(m.Kind), Content: m.Content}
}

// handleIndex serves the client page verbatim from disk on every request.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := os.ReadFile(s.staticPage)
	if err != nil {
		s.requestLogger(r).Error("page_read_failed", zap.String("path", s.staticPage), zap.Error(err))
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// handleSend handles POST /send. An empty or missing "message" field is
// accepted and ignored.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if msg := r.PostFormValue("message"); msg != "" {
		s.board.Append(board.KindText, msg)
		s.metrics.messagePosted(board.KindText)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload handles POST /upload. The image message is appended only
// after the file has been stored in full; a request without a file part
// is a no-op.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	stored, err := s.receiveFile(w, r)
	if errors.Is(err, errNoFile) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		code, msg := s.uploadFailure(r, err)
		http.Error(w, msg, code)
		return
	}

	s.board.Append(board.KindImage, stored.Name)
	s.metrics.messagePosted(board.KindImage)
	w.WriteHeader(http.StatusNoContent)
}

// handleMessages returns the whole board as [{"type","content"}].
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lo.Map(s.board.Snapshot(), toWire))
}

// handleUploadedFile streams a stored upload back to the client.
func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	obj, err := s.uploads.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) || errors.Is(err, uploads.ErrInvalidName) {
			s.metrics.fileFetched("not_found")
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, uploads.ErrCircuitOpen) {
			s.metrics.fileFetched("unavailable")
			http.Error(w, "upload store unavailable", http.StatusServiceUnavailable)
			return
		}
		s.metrics.fileFetched("error")
		s.requestLogger(r).Error("upload_open_failed", zap.String("name", name), zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	contentType, body := uploads.DetectContentType(obj.Body)

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	if !obj.ModTime.IsZero() {
		h.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	// Only raster images render inline; everything else downloads.
	if !isInlineImage(contentType) {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.requestLogger(r).Warn("upload_stream_interrupted", zap.String("name", name), zap.Error(err))
		return
	}
	s.metrics.fileFetched("ok")
}

func isInlineImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "image/svg")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
