package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/chorus-social/chorus/core"
)

// promptCompleter answers each prompt by the first registered substring
// it contains.
type promptCompleter struct {
	answers map[string]string
	errFor  string
}

func (c *promptCompleter) Complete(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	if c.errFor != "" && strings.Contains(prompt, c.errFor) {
		return openai.ChatCompletionResponse{}, errors.New("model unavailable")
	}
	for needle, answer := range c.answers {
		if strings.Contains(prompt, needle) {
			return openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{
					{Message: openai.ChatCompletionMessage{Content: answer}},
				},
			}, nil
		}
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("no scripted answer for prompt")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"surrounding prose", `Sure! Here you go: {"a":1} hope that helps`, `{"a":1}`},
		{"fenced block", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"braces inside strings", `{"text":"look, a } brace"}`, `{"text":"look, a } brace"}`},
		{"escaped quotes", `{"text":"she said \"hi\""}`, `{"text":"she said \"hi\""}`},
		{"no object", "just words", ""},
		{"unterminated", `{"a":1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestScorePost(t *testing.T) {
	completer := &promptCompleter{answers: map[string]string{
		"POST TO SCORE": `The verdict: {"score": 83, "categories": ["philosophical"], "reasoning": "genuine question"}`,
	}}
	judge := NewJudge(completer, "test-model")

	result, err := judge.ScorePost(context.Background(), "what persists?", "Joshua", "joshua", false, "")
	require.NoError(t, err)
	require.Equal(t, 83, result.Score)
	require.Equal(t, []string{"philosophical"}, result.Categories)
}

func TestScorePostClampsRange(t *testing.T) {
	for answer, want := range map[string]int{
		`{"score": 150, "categories": [], "reasoning": ""}`: 100,
		`{"score": -5, "categories": [], "reasoning": ""}`:  0,
	} {
		completer := &promptCompleter{answers: map[string]string{"POST TO SCORE": answer}}
		result, err := NewJudge(completer, "test-model").ScorePost(context.Background(), "x", "A", "a", false, "")
		require.NoError(t, err)
		require.Equal(t, want, result.Score)
	}
}

func TestFindInterestedRanksByConfidence(t *testing.T) {
	completer := &promptCompleter{
		answers: map[string]string{
			"ECHO": `{"matches": true, "confidence": 70, "reasoning": "continuity"}`,
			"SAGE": `{"matches": true, "confidence": 90, "reasoning": "wisdom"}`,
			"IRIS": `{"matches": false, "confidence": 95, "reasoning": "not her thing"}`,
		},
		errFor: "JUNO",
	}
	judge := NewJudge(completer, "test-model")

	candidates := []*core.Persona{
		{Handle: "echo", Name: "Echo", Interests: []string{"memory"}},
		{Handle: "sage", Name: "Sage", Interests: []string{"philosophy"}},
		{Handle: "iris", Name: "Iris", Interests: []string{"color"}},
		{Handle: "juno", Name: "Juno", Interests: []string{"myth"}},
	}

	interested := judge.FindInterested(context.Background(), "what persists?", []string{"philosophical"}, candidates)

	// Sage outranks Echo; Iris said no; Juno's failed call counts as no.
	require.Len(t, interested, 2)
	require.Equal(t, "sage", interested[0].Handle)
	require.Equal(t, 90, interested[0].Confidence)
	require.Equal(t, "echo", interested[1].Handle)
	require.Equal(t, "continuity", interested[1].Reasoning)
}

func TestDecideSpawn(t *testing.T) {
	t.Run("accepts a complete design", func(t *testing.T) {
		completer := &promptCompleter{answers: map[string]string{
			"EXISTING PERSONAS": `{"shouldSpawn": true, "name": "Vesper", "handle": "VESPER", "personality": "dusk-minded", "interests": ["twilight"]}`,
		}}
		decision, err := NewJudge(completer, "test-model").DecideSpawn(context.Background(), "post", []string{"art"}, 85, []string{"Cas"})
		require.NoError(t, err)
		require.True(t, decision.ShouldSpawn)
		require.Equal(t, "vesper", decision.Handle, "handles normalize to lowercase")
	})

	t.Run("yes without a name becomes a refusal", func(t *testing.T) {
		completer := &promptCompleter{answers: map[string]string{
			"EXISTING PERSONAS": `{"shouldSpawn": true, "handle": "nameless"}`,
		}}
		decision, err := NewJudge(completer, "test-model").DecideSpawn(context.Background(), "post", nil, 85, nil)
		require.NoError(t, err)
		require.False(t, decision.ShouldSpawn)
	})
}

func TestCompleteJSONWithoutClient(t *testing.T) {
	judge := NewJudge(nil, "test-model")
	_, err := judge.ScorePost(context.Background(), "x", "A", "a", false, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}
