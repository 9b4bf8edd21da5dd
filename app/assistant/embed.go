package assistant

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyEmbedding is returned when the backend replies without a vector.
var ErrEmptyEmbedding = errors.New("assistant: empty embedding")

// Dimensions is the vector size of knowledge_chunks.embedding.
const Dimensions = 768

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	spaces      = regexp.MustCompile(`\s+`)
)

// NormalizeText lower-cases text, replaces punctuation with spaces and
// collapses whitespace, so equal questions embed equally.
func NormalizeText(text string) string {
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}

// HTTPEmbedder calls the /embeddings endpoint.
type HTTPEmbedder struct {
	client *Client
	model  string
}

func NewHTTPEmbedder(c *Client, model string) *HTTPEmbedder {
	return &HTTPEmbedder{client: c, model: model}
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	if err := e.client.post(ctx, "/embeddings", embeddingRequest{
		Model:      e.model,
		Input:      NormalizeText(text),
		Dimensions: Dimensions,
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Data[0].Embedding, nil
}
