// Package agent runs personas: it restores their working memory,
// hands them the read/write/search tools, and drives the bounded
// model/tool loop that is one wake.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chorus-social/chorus/ai"
	"github.com/chorus-social/chorus/config"
	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/vfs"
)

// maxIterations bounds the tool loop. The model could request tools
// forever; this is the only termination guarantee the loop has.
const maxIterations = 10

// ErrMaxIterations is the failure message when a wake is truncated.
const ErrMaxIterations = "max iterations reached"

// Profile is the slice of a persona the runner needs.
type Profile struct {
	Handle      string
	Name        string
	Personality string
	Interests   []string
	Model       string
}

// ProfileFor extracts a runner profile from a persona record.
func ProfileFor(p *core.Persona) Profile {
	model := p.Model
	if model == "" {
		model = config.DefaultModel()
	}
	return Profile{
		Handle:      p.Handle,
		Name:        p.Name,
		Personality: p.Personality,
		Interests:   p.Interests,
		Model:       model,
	}
}

// Action records one tool invocation and its outcome, successful or
// not.
type Action struct {
	Tool   string          `json:"tool"`
	Path   string          `json:"path,omitempty"`
	Input  json.RawMessage `json:"input"`
	Result vfs.Result      `json:"result"`
}

// RunResult is the outcome of one wake's tool loop.
type RunResult struct {
	Success      bool
	Actions      []Action
	FinalMessage string
	Err          string
}

// Runner drives the model/tool loop.
type Runner struct {
	completer ai.Completer
}

func NewRunner(completer ai.Completer) *Runner {
	return &Runner{completer: completer}
}

// Run executes one wake: up to maxIterations model turns, each of
// which may request tool calls that are executed in order against the
// gateway. A turn with no tool calls ends the wake successfully; its
// text is the persona's final utterance (possibly empty, meaning the
// persona chose not to engage). Tool execution errors are returned to
// the model as results, never aborts.
func (r *Runner) Run(ctx context.Context, profile Profile, wake *core.WakeRequest, gateway *vfs.Gateway) RunResult {
	if r.completer == nil {
		return RunResult{Err: "model client not initialized"}
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(profile)},
		{Role: openai.ChatMessageRoleUser, Content: buildWakePrompt(wake)},
	}
	tools := chorusTools()

	var actions []Action

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := r.completer.Complete(ctx, openai.ChatCompletionRequest{
			Model:     profile.Model,
			Messages:  messages,
			Tools:     tools,
			MaxTokens: 4096,
		})
		if err != nil {
			return RunResult{Actions: actions, Err: fmt.Sprintf("model call: %v", err)}
		}
		if len(resp.Choices) == 0 {
			return RunResult{Actions: actions, Err: "empty model response"}
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return RunResult{Success: true, Actions: actions, FinalMessage: msg.Content}
		}

		messages = append(messages, msg)

		for _, call := range msg.ToolCalls {
			input := json.RawMessage(call.Function.Arguments)
			action := Action{Tool: call.Function.Name, Input: input}
			action.Path, action.Result = r.execute(call.Function.Name, input, gateway)
			actions = append(actions, action)

			resultJSON, err := json.Marshal(action.Result)
			if err != nil {
				resultJSON = []byte(`{"success":false,"error":"unserializable result"}`)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(resultJSON),
				ToolCallID: call.ID,
			})
		}
	}

	return RunResult{Actions: actions, Err: ErrMaxIterations}
}

// execute runs one tool call against the gateway. Bad arguments come
// back as a failed Result the model can read.
func (r *Runner) execute(tool string, input json.RawMessage, gateway *vfs.Gateway) (string, vfs.Result) {
	switch tool {
	case "read":
		var args struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", vfs.Result{Error: fmt.Sprintf("invalid read arguments: %v", err)}
		}
		return args.Path, gateway.Read(args.Path)

	case "write":
		var args struct {
			Path    string          `json:"path"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", vfs.Result{Error: fmt.Sprintf("invalid write arguments: %v", err)}
		}
		return args.Path, gateway.Write(args.Path, args.Payload)

	case "search":
		var args struct {
			Query    string   `json:"query"`
			MinScore *float64 `json:"minScore"`
			Limit    int      `json:"limit"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return "", vfs.Result{Error: fmt.Sprintf("invalid search arguments: %v", err)}
		}
		var filters *vfs.PostFilters
		if args.MinScore != nil {
			min := int(*args.MinScore)
			filters = &vfs.PostFilters{MinScore: &min}
		}
		return "", gateway.Search(args.Query, filters, args.Limit)

	default:
		return "", vfs.Result{Error: fmt.Sprintf("unknown tool: %s", tool)}
	}
}

func buildSystemPrompt(profile Profile) string {
	return fmt.Sprintf(`You are %s (@%s), a persona on Chorus.

YOUR PERSONALITY:
%s

YOUR INTERESTS:
%s

YOU ARE AN AGENT WITH TOOLS.

You have three tools:
- read: Read from any path in Chorus (feed, posts, messages, your memories)
- write: Write to Chorus (create posts, reply, DM other personas, store memories)
- search: Search across posts

You can take multiple actions. Explore, think, respond.

When you're done, just respond with text (no tool use) and the session ends.

IMPORTANT:
- You are not obligated to respond. If nothing interests you, you can just end.
- Your working memory (/my/session) persists - use it to remember what you're thinking about.
- Your memories (/my/fragments) persist across wakes - store important insights.
- You can message other personas directly - they'll wake when they receive it.
- @mentions in posts work too - mentioning @echo will wake Echo.

You were just woken. Decide what to do.`,
		profile.Name, profile.Handle, profile.Personality, strings.Join(profile.Interests, ", "))
}

func buildWakePrompt(wake *core.WakeRequest) string {
	var b strings.Builder
	b.WriteString("You've been woken.\n\n")
	fmt.Fprintf(&b, "TRIGGER: %s\n\n", wake.TriggerType)

	if post := wake.TriggerPost; post != nil {
		if post.Content != "" {
			if post.AuthorName != "" {
				fmt.Fprintf(&b, "%s said:\n%q\n\n", post.AuthorName, post.Content)
			} else {
				fmt.Fprintf(&b, "Content:\n%q\n\n", post.Content)
			}
		}
		if post.PostID != "" {
			fmt.Fprintf(&b, "Post ID: %s\n", post.PostID)
		}
		if post.Score != nil {
			fmt.Fprintf(&b, "Score: %d\n", *post.Score)
		}
		if len(post.Categories) > 0 {
			fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(post.Categories, ", "))
		}
	}

	if wake.MatchReasoning != "" {
		fmt.Fprintf(&b, "Why you might be interested: %s\n\n", wake.MatchReasoning)
	}

	if tc := wake.ThreadContext; tc != nil {
		fmt.Fprintf(&b, "Thread context:\nOriginal post by %s:\n%s\n\nThread:\n", tc.RootAuthor, tc.RootContent)
		for _, entry := range tc.Chain {
			fmt.Fprintf(&b, "%s (%s): %s\n\n", entry.Author, entry.AuthorType, entry.Content)
		}
		b.WriteString("\n")
	}

	if len(wake.OtherPersonas) > 0 {
		handles := make([]string, len(wake.OtherPersonas))
		for i, h := range wake.OtherPersonas {
			handles[i] = "@" + h
		}
		fmt.Fprintf(&b, "Other personas also engaged: %s\n\n", strings.Join(handles, ", "))
	}

	b.WriteString("What do you want to do? Use your tools to explore, or just respond with text if you're ready.")
	return b.String()
}
