package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NoSource is the reply id when the answer did not use the knowledge base.
const NoSource = -1

const answerTool = "provide_id_and_answer"

// ErrNoAnswer is returned when the model produced neither a tool call nor text.
var ErrNoAnswer = errors.New("assistant: model returned no answer")

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Answer is the model reply and the id of the chunk it relied on.
type Answer struct {
	ID   int64  `json:"id"`
	Text string `json:"answer"`
}

// LLM answers a conversation given the retrieved chunks.
type LLM interface {
	Complete(ctx context.Context, system string, history []Message) (Answer, error)
}

// ChatLLM calls /chat/completions and forces the answer tool.
type ChatLLM struct {
	client *Client
	model  string
}

func NewChatLLM(c *Client, model string) *ChatLLM {
	return &ChatLLM{client: c, model: model}
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Tools      []tool    `json:"tools"`
	ToolChoice tool      `json:"tool_choice"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

var answerParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "description": "ID of the source content used for the answer, -1 if none was used."},
    "answer": {"type": "string", "description": "Text answer for the user's request."}
  },
  "required": ["id", "answer"],
  "additionalProperties": false
}`)

func (l *ChatLLM) Complete(ctx context.Context, system string, history []Message) (Answer, error) {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{Role: "system", Content: system})
	msgs = append(msgs, history...)
	req := chatRequest{
		Model:    l.model,
		Messages: msgs,
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        answerTool,
				Description: "Provide the answer and the ID of the source content if used, otherwise -1.",
				Parameters:  answerParameters,
				Strict:      true,
			},
		}},
		ToolChoice: tool{Type: "function", Function: toolFunction{Name: answerTool}},
	}
	var resp chatResponse
	if err := l.client.post(ctx, "/chat/completions", req, &resp); err != nil {
		return Answer{}, err
	}
	if len(resp.Choices) == 0 {
		return Answer{}, ErrNoAnswer
	}
	m := resp.Choices[0].Message
	for _, call := range m.ToolCalls {
		if call.Function.Name != answerTool {
			continue
		}
		var a Answer
		if err := json.Unmarshal([]byte(call.Function.Arguments), &a); err != nil {
			return Answer{}, fmt.Errorf("assistant: decode tool arguments: %w", err)
		}
		if strings.TrimSpace(a.Text) == "" {
			return Answer{}, ErrNoAnswer
		}
		return a, nil
	}
	if text := strings.TrimSpace(m.Content); text != "" {
		return Answer{ID: NoSource, Text: text}, nil
	}
	return Answer{}, ErrNoAnswer
}
