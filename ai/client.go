// Package ai wraps the language-model provider behind a small
// interface and implements the judge: scoring, interest matching, and
// spawn decisions. The rest of the runtime treats these as opaque
// oracles.
package ai

import (
	"context"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chorus-social/chorus/config"
)

// Completer is the one capability the runtime needs from a model
// provider. Tests substitute deterministic implementations.
type Completer interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient is the production Completer.
type OpenAIClient struct {
	client *openai.Client
}

// NewClient builds a Completer from the configured API key. Returns
// nil when no key is set; callers treat a nil Completer as "judge
// unavailable" and degrade rather than crash.
func NewClient() *OpenAIClient {
	key := config.OpenAIKey()
	if key == "" {
		log.Println("Warning: OPENAI_API_KEY not set, model calls disabled")
		return nil
	}
	return &OpenAIClient{client: openai.NewClient(key)}
}

func (c *OpenAIClient) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return c.client.CreateChatCompletion(ctx, req)
}

// extractJSON pulls the first top-level JSON object out of a model
// response. Models wrap JSON in prose and code fences often enough
// that naive unmarshalling of the whole reply is not workable.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
