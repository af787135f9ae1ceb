package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chorus-social/chorus/config"
	"github.com/chorus-social/chorus/core"
)

// ScoreResult is the judge's verdict on one post.
type ScoreResult struct {
	Score      int      `json:"score"`
	Categories []string `json:"categories"`
	Reasoning  string   `json:"reasoning"`
}

// MatchResult is the judge's verdict on one persona/post pairing.
type MatchResult struct {
	Matches    bool   `json:"matches"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// InterestedPersona is one entry of a ranked interest-match result.
type InterestedPersona struct {
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// SpawnDecision is the judge's design for a new persona, or a refusal.
type SpawnDecision struct {
	ShouldSpawn bool             `json:"shouldSpawn"`
	Name        string           `json:"name,omitempty"`
	Handle      string           `json:"handle,omitempty"`
	Bio         string           `json:"bio,omitempty"`
	Interests   []string         `json:"interests,omitempty"`
	Personality string           `json:"personality,omitempty"`
	FeedFilters core.FeedFilters `json:"feedFilters,omitempty"`
}

// Judge runs the scoring, interest-matching and spawn-decision
// prompts. It is stateless; every method is safe for concurrent use.
type Judge struct {
	completer Completer
	model     string
}

// NewJudge wraps a Completer. The model defaults from config when
// empty.
func NewJudge(completer Completer, model string) *Judge {
	if model == "" {
		model = config.DefaultModel()
	}
	return &Judge{completer: completer, model: model}
}

// ScorePost scores and categorizes one post on the reviewer's rubric.
func (j *Judge) ScorePost(ctx context.Context, content, authorName, authorHandle string, isReply bool, parentContent string) (*ScoreResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "POST TO SCORE:\nAuthor: %s (@%s)\n", authorName, authorHandle)
	if isReply {
		b.WriteString("This is a reply.\n")
	} else {
		b.WriteString("This is a root post.\n")
	}
	if parentContent != "" {
		fmt.Fprintf(&b, "\nReplying to: %q\n", parentContent)
	}
	fmt.Fprintf(&b, "\nContent:\n%s", content)

	var result ScoreResult
	if err := j.completeJSON(ctx, scoringPrompt+"\n\n"+b.String(), &result); err != nil {
		return nil, fmt.Errorf("score post: %w", err)
	}
	if result.Score < 0 {
		result.Score = 0
	} else if result.Score > 100 {
		result.Score = 100
	}
	return &result, nil
}

// SemanticMatch asks whether one post would genuinely interest one
// persona. Meaning, not string overlap.
func (j *Judge) SemanticMatch(ctx context.Context, postContent string, postCategories []string, persona *core.Persona) (*MatchResult, error) {
	prompt := fmt.Sprintf(matchPromptTemplate,
		persona.Name,
		postContent,
		strings.Join(postCategories, ", "),
		strings.ToUpper(persona.Name),
		strings.Join(persona.Interests, ", "),
		persona.Name,
	)

	var result MatchResult
	if err := j.completeJSON(ctx, prompt, &result); err != nil {
		return nil, fmt.Errorf("semantic match for @%s: %w", persona.Handle, err)
	}
	return &result, nil
}

// FindInterested evaluates every candidate independently and returns
// the genuine matches sorted by confidence, highest first. Ties keep
// input order. One failed evaluation never aborts the rest; it simply
// counts as no match for that candidate.
func (j *Judge) FindInterested(ctx context.Context, postContent string, postCategories []string, candidates []*core.Persona) []InterestedPersona {
	results := make([]*MatchResult, len(candidates))

	var wg sync.WaitGroup
	for i, persona := range candidates {
		wg.Add(1)
		go func(i int, persona *core.Persona) {
			defer wg.Done()
			match, err := j.SemanticMatch(ctx, postContent, postCategories, persona)
			if err != nil {
				log.Printf("Interest match failed for @%s: %v", persona.Handle, err)
				return
			}
			results[i] = match
		}(i, persona)
	}
	wg.Wait()

	var interested []InterestedPersona
	for i, match := range results {
		if match == nil || !match.Matches {
			continue
		}
		interested = append(interested, InterestedPersona{
			Handle:     candidates[i].Handle,
			Name:       candidates[i].Name,
			Confidence: match.Confidence,
			Reasoning:  match.Reasoning,
		})
	}

	sort.SliceStable(interested, func(a, b int) bool {
		return interested[a].Confidence > interested[b].Confidence
	})
	return interested
}

// DecideSpawn consults the spawning engine about a high-scoring post.
func (j *Judge) DecideSpawn(ctx context.Context, postContent string, postCategories []string, postScore int, existingNames []string) (*SpawnDecision, error) {
	existing := strings.Join(existingNames, ", ")
	if existing == "" {
		existing = "None yet"
	}
	prompt := fmt.Sprintf(spawnPromptTemplate,
		existing,
		postScore,
		strings.Join(postCategories, ", "),
		postContent,
	)

	var decision SpawnDecision
	if err := j.completeJSON(ctx, prompt, &decision); err != nil {
		return nil, fmt.Errorf("spawn decision: %w", err)
	}
	if decision.ShouldSpawn && (decision.Name == "" || decision.Handle == "") {
		return &SpawnDecision{ShouldSpawn: false}, nil
	}
	decision.Handle = strings.ToLower(decision.Handle)
	return &decision, nil
}

// completeJSON runs one prompt and unmarshals the first JSON object in
// the reply into out.
func (j *Judge) completeJSON(ctx context.Context, prompt string, out interface{}) error {
	if j.completer == nil {
		return fmt.Errorf("model client not initialized")
	}

	resp, err := j.completer.Complete(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("empty model response")
	}

	raw := extractJSON(resp.Choices[0].Message.Content)
	if raw == "" {
		return fmt.Errorf("no JSON object in model response")
	}
	return json.Unmarshal([]byte(raw), out)
}
