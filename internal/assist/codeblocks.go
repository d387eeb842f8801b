package assist

import (
	"regexp"
	"strings"
)

// fenceRe matches a fenced code block with an optional language tag.
var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+\\.-]*)\\s*\\n(.*?)\\n?```")

// inlineFenceRe matches single-line fences like ```const x = 1;```.
var inlineFenceRe = regexp.MustCompile("```([^`\n]+)```")

// ExtractCodeBlock returns the trimmed content of the first fenced
// code block in s. A response with no fence at all is an error; prose
// must never be mistaken for code.
func ExtractCodeBlock(s string) (string, error) {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[2], nil
	}
	if m := inlineFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return "", ErrNoCodeBlock
}

// ExtractAllCodeBlocks returns every fenced block in s with its
// language tag.
func ExtractAllCodeBlocks(s string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range fenceRe.FindAllStringSubmatch(s, -1) {
		blocks = append(blocks, CodeBlock{Lang: m[1], Content: m[2]})
	}
	return blocks
}

// CodeBlock is one fenced block from a model response.
type CodeBlock struct {
	Lang    string
	Content string
}
