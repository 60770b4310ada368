package llm

import (
	"encoding/json"
	"errors"
)

// ErrMissingMessages is returned when an incoming chat body has no messages field.
var ErrMissingMessages = errors.New("missing required field: messages")

// ChatRequest is the body a browser client posts to the gateway.
// Messages are kept as raw JSON so they are forwarded byte for byte.
type ChatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// ParseChatRequest decodes a client body. The body must be a JSON object.
func ParseChatRequest(body []byte) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// MessagesRequest is the body sent to the upstream Messages API.
type MessagesRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  json.RawMessage `json:"messages"`
}

// NewMessagesRequest builds the upstream body from the gateway's fixed model
// settings and the client's messages. A JSON null for messages is forwarded
// as-is; only an absent field is rejected.
func NewMessagesRequest(model string, maxTokens int, req *ChatRequest) (*MessagesRequest, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, ErrMissingMessages
	}

	return &MessagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  req.Messages,
	}, nil
}
