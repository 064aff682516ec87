package handler

import (
	"fmt"
	"net/http"
	"testing"
	"yorae/internal/model"
	"yorae/internal/service/chat"
	"yorae/internal/service/session"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid transition", &session.TransitionError{From: model.StageHome, Op: "finish cleaning"}, http.StatusConflict},
		{"no before image", session.ErrNoBeforeImage, http.StatusConflict},
		{"stale session", session.ErrStaleSession, http.StatusConflict},
		{"acquisition", fmt.Errorf("%w: no frame", session.ErrAcquisition), http.StatusServiceUnavailable},
		{"composite", fmt.Errorf("%w: decode", session.ErrCompositeFailed), http.StatusUnprocessableEntity},
		{"empty body", errEmptyBody, http.StatusBadRequest},
		{"blank chat message", chat.ErrEmptyMessage, http.StatusBadRequest},
		{"chat busy", chat.ErrBusy, http.StatusConflict},
		{"too large", &http.MaxBytesError{Limit: MaxUploadSize}, http.StatusRequestEntityTooLarge},
		{"unknown", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.expected {
				t.Errorf("statusFor(%v) = %d, expected %d", tt.err, got, tt.expected)
			}
		})
	}
}
