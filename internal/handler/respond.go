package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"yorae/internal/dto"
	"yorae/internal/logger"
	"yorae/internal/service/chat"
	"yorae/internal/service/session"
)

// MaxUploadSize caps an uploaded still.
const MaxUploadSize = 20 << 20

var errEmptyBody = errors.New("request body is empty")

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError maps a service error to its HTTP status.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	resp := dto.ErrorResponse{Error: err.Error()}

	var te *session.TransitionError
	if errors.As(err, &te) {
		resp.Stage = string(te.From)
	}

	writeJSON(w, logger, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNoBeforeImage),
		errors.Is(err, session.ErrStaleSession),
		errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrAcquisition):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrCompositeFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errEmptyBody),
		errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}

// readImage returns the uploaded still: the "image" part of a multipart form
// or the raw request body. An empty body yields (nil, nil).
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errEmptyBody, err)
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
