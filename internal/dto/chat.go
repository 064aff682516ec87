package dto

import "yorae/internal/model"

// ChatRequest is the body of a chat message submission.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatData is the transcript returned to the chat screen.
type ChatData struct {
	Messages []model.ChatMessage `json:"messages"`
	Busy     bool                `json:"busy"`
}
