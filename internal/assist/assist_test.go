package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeGen returns a canned answer or error.
type fakeGen struct {
	answer string
	err    error
	prompt string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestInvokeExplain(t *testing.T) {
	gen := &fakeGen{answer: "This component renders the landing page."}
	p := NewPipeline(gen)

	resp, err := p.Invoke(context.Background(), Request{
		Action: ActionExplain,
		Path:   "pages/Home.tsx",
		Code:   "export default function Home() {}",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Answer != gen.answer {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if !strings.Contains(gen.prompt, "pages/Home.tsx") {
		t.Error("prompt missing file path")
	}
	if !strings.Contains(gen.prompt, "export default function Home()") {
		t.Error("prompt missing code")
	}
}

func TestInvokeReturnsRawAnswer(t *testing.T) {
	gen := &fakeGen{answer: "Here is the fix:\n```tsx\nexport default function Home() { return null }\n```\nDone."}
	p := NewPipeline(gen)

	resp, err := p.Invoke(context.Background(), Request{
		Action: ActionFix,
		Path:   "pages/Home.tsx",
		Code:   "broken",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Answer != gen.answer {
		t.Errorf("Answer = %q, want the unparsed model reply", resp.Answer)
	}
}

func TestInvokeDoesNotRequireCodeBlock(t *testing.T) {
	gen := &fakeGen{answer: "I cannot do that, here is ``` an unclosed fence"}
	p := NewPipeline(gen)

	resp, err := p.Invoke(context.Background(), Request{Action: ActionRefactor, Code: "x"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Answer != gen.answer {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestInvokeUnknownAction(t *testing.T) {
	p := NewPipeline(&fakeGen{})
	_, err := p.Invoke(context.Background(), Request{Action: "summarize"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}

func TestInvokeModelError(t *testing.T) {
	p := NewPipeline(&fakeGen{err: errors.New("quota exceeded")})
	_, err := p.Invoke(context.Background(), Request{Action: ActionChat, Instruction: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "fenced with language",
			in:   "intro\n```typescript\nconst a = 1\n```\noutro",
			want: "const a = 1",
		},
		{
			name: "fenced without language",
			in:   "```\nbody {}\n```",
			want: "body {}",
		},
		{
			name: "multiline keeps inner newlines",
			in:   "```ts\nline1\n\nline3\n```",
			want: "line1\n\nline3",
		},
		{
			name: "first of several blocks",
			in:   "```ts\nfirst\n```\n```ts\nsecond\n```",
			want: "first",
		},
		{
			name:    "prose without fence",
			in:      "You should declare a as a constant.",
			wantErr: true,
		},
		{
			name: "inline fence",
			in:   "prose ```const x = 1;``` more",
			want: "const x = 1;",
		},
		{
			name:    "unclosed fence",
			in:      "```ts\nno closing",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCodeBlock(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrNoCodeBlock) {
					t.Fatalf("err = %v, want ErrNoCodeBlock", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractCodeBlock: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAllCodeBlocks(t *testing.T) {
	blocks := ExtractAllCodeBlocks("```ts\na\n```\ntext\n```css\nb\n```")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Lang != "ts" || blocks[0].Content != "a" {
		t.Errorf("block[0] = %+v", blocks[0])
	}
	if blocks[1].Lang != "css" || blocks[1].Content != "b" {
		t.Errorf("block[1] = %+v", blocks[1])
	}
}

func TestKnown(t *testing.T) {
	for _, a := range []Action{ActionExplain, ActionFix, ActionImprove, ActionGenerate,
		ActionRefactor, ActionComment, ActionTest, ActionChat, ActionDirectEdit} {
		if !Known(a) {
			t.Errorf("Known(%q) = false", a)
		}
	}
	if Known("nope") {
		t.Error("Known(nope) = true")
	}
}

func TestChatThreadsHistory(t *testing.T) {
	gen := &fakeGen{answer: "It renders a button."}
	p := NewPipeline(gen)

	_, err := p.Invoke(context.Background(), Request{
		Action:      ActionChat,
		Instruction: "And what does it render?",
		History: []Turn{
			{Role: "user", Text: "What is Button.tsx?"},
			{Role: "assistant", Text: "A reusable button component."},
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(gen.prompt, "What is Button.tsx?") {
		t.Error("prompt missing first history turn")
	}
	if !strings.Contains(gen.prompt, "assistant: A reusable button component.") {
		t.Error("prompt missing threaded assistant turn")
	}
	if !strings.Contains(gen.prompt, "And what does it render?") {
		t.Error("prompt missing current question")
	}
}

func TestPromptCarriesLanguageAndSelection(t *testing.T) {
	gen := &fakeGen{answer: "```tsx\nok\n```"}
	p := NewPipeline(gen)

	_, err := p.Invoke(context.Background(), Request{
		Action:    ActionFix,
		Path:      "components/Nav.tsx",
		Code:      "const a = 1\nconst b = 2\n",
		Selection: "const b = 2",
		Language:  "tsx",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(gen.prompt, "```tsx\nconst a = 1") {
		t.Error("prompt missing language-tagged code fence")
	}
	if !strings.Contains(gen.prompt, "Focus on this part:") {
		t.Error("prompt missing selection section")
	}
	if !strings.Contains(gen.prompt, "const b = 2") {
		t.Error("prompt missing selection content")
	}
}
