package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"yorae/internal/logger"
	"yorae/internal/model"
)

const (
	Greeting = "무엇을 도와드릴까요?"
	Apology  = "죄송합니다. 오류가 발생했습니다."
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still pending")
)

// Conversation is the in-memory chat transcript. It is never persisted.
type Conversation struct {
	messages   []model.ChatMessage
	busy       bool
	generation uint64
	mu         sync.Mutex

	client  Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewConversation creates a conversation opened with the greeting.
func NewConversation(client Client, timeout time.Duration, logger *logger.Logger) *Conversation {
	return &Conversation{
		messages: greeting(),
		client:   client,
		timeout:  timeout,
		logger:   logger,
	}
}

func greeting() []model.ChatMessage {
	return []model.ChatMessage{{Role: model.RoleModel, Text: Greeting}}
}

// Reset starts over with only the greeting. A pending reply is discarded.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.messages = greeting()
	c.busy = false
	c.generation++
	c.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Busy reports whether a reply is pending.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Send appends the user's turn, asks the model and appends its reply. Model
// failures append the apology and are not returned as errors.
func (c *Conversation) Send(ctx context.Context, text string) (model.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return model.ChatMessage{}, ErrBusy
	}
	c.messages = append(c.messages, model.ChatMessage{Role: model.RoleUser, Text: text})
	history := outgoing(c.messages)
	gen := c.generation
	c.busy = true
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply := model.ChatMessage{Role: model.RoleModel}
	answer, err := c.client.SendChatTurn(ctx, history)
	if err != nil {
		c.logger.Error("Chat request failed: %v", err)
		reply.Text = Apology
	} else {
		reply.Text = answer
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.logger.Info("Conversation reset while waiting, reply dropped")
		return reply, nil
	}
	c.messages = append(c.messages, reply)
	c.busy = false
	return reply, nil
}

// outgoing copies the transcript without the leading model turns, so the
// request starts with a user turn.
func outgoing(messages []model.ChatMessage) []model.ChatMessage {
	start := 0
	for start < len(messages) && messages[start].Role == model.RoleModel {
		start++
	}

	out := make([]model.ChatMessage, len(messages)-start)
	copy(out, messages[start:])
	return out
}
