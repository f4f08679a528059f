package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"message-board/internal/uploads"
)

var (
	errNoFile       = errors.New("no file part")
	errBadMultipart = errors.New("bad multipart")
)

// uploadTimeout bounds a single file write to the upload store.
const uploadTimeout = 5 * time.Minute

// receiveFile streams the first non-empty "file" part of a multipart body
// into the upload store under its sanitized name. It returns errNoFile when
// the request carries no such part.
func (s *Server) receiveFile(w http.ResponseWriter, r *http.Request) (uploads.Stored, error) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return uploads.Stored{}, errNoFile
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return uploads.Stored{}, errNoFile
		}
		if err != nil {
			return uploads.Stored{}, fmt.Errorf("%w: %w", errBadMultipart, err)
		}

		// Browsers send an empty filename when nothing was selected.
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		name := uploads.SanitizeFilename(part.FileName())

		ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
		stored, err := s.uploads.Put(ctx, name, part)
		cancel()
		_ = part.Close()
		if err != nil {
			return uploads.Stored{}, fmt.Errorf("store %s: %w", name, err)
		}

		s.metrics.uploadStored(stored.Size)
		s.requestLogger(r).Info("upload_stored",
			zap.String("name", stored.Name),
			zap.String("client_name", part.FileName()),
			zap.Int64("bytes", stored.Size),
		)
		return stored, nil
	}
}

// uploadFailure logs a failed upload and maps it to a status and message.
func (s *Server) uploadFailure(r *http.Request, err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.metrics.uploadFailed("too_large")
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, uploads.ErrCircuitOpen):
		s.metrics.uploadFailed("unavailable")
		return http.StatusServiceUnavailable, "upload store unavailable"
	case errors.Is(err, errBadMultipart):
		s.metrics.uploadFailed("bad_request")
		return http.StatusBadRequest, "bad multipart"
	default:
		s.metrics.uploadFailed("storage")
		s.requestLogger(r).Error("upload_failed", zap.Error(err))
		return http.StatusInternalServerError, "upload failed"
	}
}
