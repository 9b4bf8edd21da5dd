// Package assistant answers free-form questions from the knowledge base:
// the question is embedded, the closest chunks are retrieved and a chat
// model writes the reply, naming the chunk it used.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ewaproduct/ewabot/core/logger"
)

// Service is the retrieval-augmented answerer.
type Service struct {
	embedder Embedder
	searcher Searcher
	llm      LLM
	history  *History
	topK     int
	rules    string
}

// Options tune a Service.
type Options struct {
	TopK  int
	Rules string
}

func NewService(e Embedder, s Searcher, l LLM, h *History, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Service{embedder: e, searcher: s, llm: l, history: h, topK: opts.TopK, rules: opts.Rules}
}

// Answer replies to prompt in the context of the client's recent conversation.
func (s *Service) Answer(ctx context.Context, clientID int64, prompt string) (Answer, error) {
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("assistant: embed: %w", err)
	}
	chunks, err := s.searcher.Search(ctx, vec, s.topK)
	if err != nil {
		return Answer{}, err
	}

	user := Message{Role: "user", Content: prompt}
	turns := append(s.history.Recent(clientID), user)
	ans, err := s.llm.Complete(ctx, s.systemPrompt(chunks), turns)
	if err != nil {
		return Answer{}, fmt.Errorf("assistant: complete: %w", err)
	}
	s.history.Append(clientID, user, Message{Role: "assistant", Content: ans.Text})

	logger.Info(ctx, logger.CompAssistant, "assistant.answer",
		slog.Int64("client_id", clientID),
		slog.Int("chunks", len(chunks)),
		slog.Int64("source_id", ans.ID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return ans, nil
}

// Forget drops the client's conversation history.
func (s *Service) Forget(clientID int64) {
	s.history.Reset(clientID)
}

func (s *Service) systemPrompt(chunks []Chunk) string {
	var b strings.Builder
	if s.rules != "" {
		b.WriteString(strings.TrimSpace(s.rules))
		b.WriteString("\n\n")
	}
	b.WriteString("Answer using the content below when it is relevant and report its id, otherwise report -1.\n")
	b.WriteString("AVAILABLE CONTENT WITH IDs:\n")
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, "id: "+strconv.FormatInt(c.ID, 10)+"; content: "+c.Text)
	}
	b.WriteString(strings.Join(parts, " | "))
	b.WriteString("\nHERE ENDS CONTENT WITH IDs.")
	return b.String()
}
