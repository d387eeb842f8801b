// Package assist turns editor requests into model prompts and parses
// the answers.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emberworks/codeconsole/internal/logging"
	"github.com/emberworks/codeconsole/internal/metrics"
)

// Action selects what the assistant should do with the given code.
type Action string

const (
	ActionExplain    Action = "explain"
	ActionFix        Action = "fix"
	ActionImprove    Action = "improve"
	ActionGenerate   Action = "generate"
	ActionRefactor   Action = "refactor"
	ActionComment    Action = "comment"
	ActionTest       Action = "test"
	ActionChat       Action = "chat"
	ActionDirectEdit Action = "direct-edit"
)

var (
	// ErrUnknownAction is returned for actions the pipeline does not
	// recognize.
	ErrUnknownAction = errors.New("assist: unknown action")

	// ErrUnavailable is returned when the model backend cannot be
	// reached or returns an error.
	ErrUnavailable = errors.New("assist: model unavailable")

	// ErrNoCodeBlock is returned by ExtractCodeBlock when the answer
	// holds no fenced code block.
	ErrNoCodeBlock = errors.New("assist: no code block in response")
)

// Generator produces a completion for a prompt. Implemented by the
// Gemini client and by test fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request is one assist invocation.
type Request struct {
	Action      Action
	Path        string
	Code        string
	Selection   string
	Language    string
	Instruction string
	History     []Turn
}

// Turn is one prior exchange in a chat thread.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Response carries the model's raw answer. Parsing code out of the
// answer is the caller's concern; see ExtractCodeBlock.
type Response struct {
	Answer string
}

// Pipeline builds prompts, invokes the model and parses answers.
type Pipeline struct {
	gen Generator
}

// NewPipeline returns a Pipeline over the given generator.
func NewPipeline(gen Generator) *Pipeline {
	return &Pipeline{gen: gen}
}

// Known reports whether action is one the pipeline can handle.
func Known(action Action) bool {
	switch action {
	case ActionExplain, ActionFix, ActionImprove, ActionGenerate,
		ActionRefactor, ActionComment, ActionTest, ActionChat, ActionDirectEdit:
		return true
	}
	return false
}

// Invoke runs one assist request and returns the model's raw answer.
// It does not parse or validate the reply; callers that want to apply
// code pull it out with ExtractCodeBlock.
func (p *Pipeline) Invoke(ctx context.Context, req Request) (*Response, error) {
	if !Known(req.Action) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
	}

	start := time.Now()
	prompt := buildPrompt(req)

	answer, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		metrics.RecordAssistRequest(string(req.Action), false, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.RecordAssistRequest(string(req.Action), true, time.Since(start))
	logging.Info("assist completed",
		zap.String("action", string(req.Action)),
		zap.String("path", req.Path),
		zap.Duration("duration", time.Since(start)),
	)
	return &Response{Answer: answer}, nil
}

// buildPrompt assembles the model prompt for a request. Code-producing
// prompts insist on a single fenced block holding the complete file so
// the result can be applied verbatim.
func buildPrompt(req Request) string {
	var b strings.Builder

	switch req.Action {
	case ActionExplain:
		b.WriteString("Explain what the following code does. Describe its purpose, structure and any notable patterns.\n")
	case ActionFix:
		b.WriteString("Fix any bugs, errors or problems in the following code. Return the complete corrected file in a single fenced code block.\n")
	case ActionImprove:
		b.WriteString("Improve the following code for readability, performance and maintainability without changing its behavior. Return the complete improved file in a single fenced code block.\n")
	case ActionGenerate:
		b.WriteString("Generate code according to the instruction below. Return the complete file in a single fenced code block.\n")
	case ActionRefactor:
		b.WriteString("Refactor the following code according to the instruction below, preserving behavior. Return the complete refactored file in a single fenced code block.\n")
	case ActionComment:
		b.WriteString("Add clear, useful comments to the following code. Do not change the code itself. Return the complete commented file in a single fenced code block.\n")
	case ActionTest:
		b.WriteString("Write tests for the following code. Return the complete test file in a single fenced code block.\n")
	case ActionChat:
		b.WriteString("You are a helpful assistant for a TypeScript/React codebase. Answer the question below.\n")
	case ActionDirectEdit:
		b.WriteString("Apply the instruction below to the following file. Return the complete updated file in a single fenced code block, with no commentary.\n")
	}

	if req.Action == ActionChat && len(req.History) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range req.History {
			b.WriteString(turn.Role)
			b.WriteString(": ")
			b.WriteString(turn.Text)
			b.WriteString("\n")
		}
	}

	if req.Instruction != "" {
		b.WriteString("\nInstruction: ")
		b.WriteString(req.Instruction)
		b.WriteString("\n")
	}
	if req.Path != "" {
		b.WriteString("\nFile: ")
		b.WriteString(req.Path)
		b.WriteString("\n")
	}
	if req.Code != "" {
		b.WriteString("\n```")
		b.WriteString(req.Language)
		b.WriteString("\n")
		b.WriteString(req.Code)
		if !strings.HasSuffix(req.Code, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	// The selection scopes attention without truncating the code sent.
	if req.Selection != "" {
		b.WriteString("\nFocus on this part:\n```")
		b.WriteString(req.Language)
		b.WriteString("\n")
		b.WriteString(req.Selection)
		if !strings.HasSuffix(req.Selection, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}
