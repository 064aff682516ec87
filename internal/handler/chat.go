package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"yorae/internal/dto"
	"yorae/internal/logger"
	"yorae/internal/model"
	"yorae/internal/service/chat"
	"yorae/internal/service/session"
)

// EnterChatHandler switches to chat mode with a fresh conversation.
func EnterChatHandler(machine *session.Machine, conversation *chat.Conversation, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := machine.EnterChat(); err != nil {
			writeError(w, logger, err)
			return
		}
		conversation.Reset()
		writeJSON(w, logger, http.StatusOK, chatData(conversation))
	}
}

// GetMessagesHandler returns the transcript.
func GetMessagesHandler(conversation *chat.Conversation, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, chatData(conversation))
	}
}

// SendMessageHandler posts a user turn and waits for the model reply. Messages
// are only accepted in chat mode.
func SendMessageHandler(machine *session.Machine, conversation *chat.Conversation, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if stage := machine.Stage(); stage != model.StageChat {
			writeError(w, logger, &session.TransitionError{From: stage, Op: "send chat message"})
			return
		}

		var req dto.ChatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeError(w, logger, fmt.Errorf("%w: %v", errEmptyBody, err))
			return
		}

		if _, err := conversation.Send(r.Context(), req.Text); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, chatData(conversation))
	}
}

func chatData(conversation *chat.Conversation) dto.ChatData {
	return dto.ChatData{
		Messages: conversation.Messages(),
		Busy:     conversation.Busy(),
	}
}
