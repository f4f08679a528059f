package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"message-board/internal/board"
)

// apiRecentLimit is how many messages GET /api/messages returns.
const apiRecentLimit = 50

// maxAPIBodyBytes caps JSON request bodies.
const maxAPIBodyBytes = 1 << 20

type apiMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type createMessageReq struct {
	Type    string `json:"type" validate:"required,board_kind"`
	Content string `json:"content" validate:"required"`
}

type uploadResp struct {
	Filename string `json:"filename"`
}

type apiError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("board_kind", func(fl validator.FieldLevel) bool {
		return board.Kind(fl.Field().String()).Valid()
	})
	return v
}

func toAPI(m board.Message, _ int) apiMessage {
	return apiMessage{
		ID:        m.ID.String(),
		Type:      string(m.Kind),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// handleAPIListMessages returns the most recent messages, oldest first.
func (s *Server) handleAPIListMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lo.Map(s.board.Recent(apiRecentLimit), toAPI))
}

// handleAPICreateMessage appends a text or image message from a JSON body.
func (s *Server) handleAPICreateMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)

	var req createMessageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "invalid JSON body"})
		return
	}

	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationError(err))
		return
	}

	kind := board.Kind(req.Type)
	msg := s.board.Append(kind, req.Content)
	s.metrics.messagePosted(kind)

	writeJSON(w, http.StatusCreated, toAPI(msg, 0))
}

// handleAPIUpload stores a file without posting a message; the client
// follows up with POST /api/messages referencing the returned filename.
func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	stored, err := s.receiveFile(w, r)
	if errors.Is(err, errNoFile) {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "No file uploaded", Field: "file"})
		return
	}
	if err != nil {
		code, msg := s.uploadFailure(r, err)
		writeJSON(w, code, apiError{Message: msg})
		return
	}

	writeJSON(w, http.StatusCreated, uploadResp{Filename: stored.Name})
}

func validationError(err error) apiError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apiError{Message: err.Error()}
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apiError{Message: fe.Field() + " is required", Field: fe.Field()}
	case "board_kind":
		return apiError{Message: fe.Field() + " must be one of: " + string(board.KindText) + " " + string(board.KindImage), Field: fe.Field()}
	default:
		return apiError{Message: fe.Field() + " is invalid", Field: fe.Field()}
	}
}
