package handler

import (
	"net/http"
	"strconv"
	"yorae/internal/logger"
	"yorae/internal/service/session"

	"github.com/gorilla/mux"
)

// ResultFileName is the download name of the merged image.
const ResultFileName = "yorae_result.jpg"

// GetSessionHandler returns the current stage and session metadata.
func GetSessionHandler(machine *session.Machine, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, machine.Snapshot())
	}
}

// SessionImageHandler serves the before, after or merged image. The merged
// image is sent as a download.
func SessionImageHandler(machine *session.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record := machine.Record()

		var data []byte
		kind := mux.Vars(r)["kind"]
		switch kind {
		case "before":
			data = record.BeforeImage
		case "after":
			data = record.AfterImage
		case "merged":
			data = record.MergedImage
			w.Header().Set("Content-Disposition", `attachment; filename="`+ResultFileName+`"`)
		default:
			http.Error(w, "Unknown image kind", http.StatusBadRequest)
			return
		}

		if len(data) == 0 {
			w.Header().Del("Content-Disposition")
			http.Error(w, "Image not available", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

// TransitionHandler runs a data-free transition and returns the new snapshot.
func TransitionHandler(machine *session.Machine, logger *logger.Logger, transition func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := transition(); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, machine.Snapshot())
	}
}

// DismissCancelHandler keeps the session after a cancel request.
func DismissCancelHandler(machine *session.Machine, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		machine.DismissCancel()
		writeJSON(w, logger, http.StatusOK, machine.Snapshot())
	}
}

// CaptureHandler accepts a still for the current camera stage. An uploaded
// body is used as is; an empty body grabs the latest frame from source.
func CaptureHandler(machine *session.Machine, source session.StillSource, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image, err := readImage(w, r)
		if err != nil {
			logger.Warning("Failed to read uploaded image: %v", err)
			writeError(w, logger, err)
			return
		}

		if image != nil {
			err = machine.Accept(image)
		} else {
			err = machine.Capture(r.Context(), source)
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, machine.Snapshot())
	}
}

// ReplaceBeforeHandler swaps the before photo during cleaning.
func ReplaceBeforeHandler(machine *session.Machine, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image, err := readImage(w, r)
		if err == nil && image == nil {
			err = errEmptyBody
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}

		if err := machine.ReplaceBeforeImage(image); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, machine.Snapshot())
	}
}
