// File: internal/resolver/resolver.go
// Description: Turns a (task text, DOM snapshot) pair into a single locator
// string by asking the model and cleaning up whatever it answers. Models wrap
// selectors in prose and code fences; the post-processing here digs the
// locator line out and recognizes "not found" phrasing as a miss.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/config"
	"github.com/kestrelqa/kestrel/internal/llmclient"
)

// ErrNotFound reports that the model could not identify an element for the
// task on the current page.
var ErrNotFound = errors.New("model found no element for the task")

const systemPrompt = `You are an expert web test automation engineer.
You receive a task describing one interaction with a web page, plus the
page's HTML. Respond with exactly one CSS selector that uniquely identifies
the element the task refers to. Rules:
- Respond with the selector only. No prose, no markdown, no backticks.
- Prefer stable attributes: id, name, data-testid, aria-label.
- If the element lives inside an iframe, chain frame selectors with " >> ",
  outermost first, ending with the element selector, for example:
  iframe#outer >> iframe#inner >> #submit
- If no element on the page can satisfy the task, respond with exactly:
  ELEMENT NOT FOUND`

// Resolver wraps the LLM client behind the one call the cache needs.
type Resolver struct {
	llm    llmclient.Client
	cfg    config.LLMConfig
	logger *zap.Logger
}

func New(llm llmclient.Client, cfg config.LLMConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("resolver"),
	}
}

// Resolve asks the model for a locator. The snapshot is sanitized and size
// capped before it goes on the wire.
func (r *Resolver) Resolve(ctx context.Context, task, snapshot string) (string, error) {
	doc := Sanitize(snapshot, r.cfg.SnapshotMaxBytes)

	req := llmclient.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Task: %s\n\nPage HTML:\n%s", task, doc),
	}

	raw, err := r.llm.GenerateResponse(ctx, req)
	if err != nil {
		return "", fmt.Errorf("model resolution failed: %w", err)
	}

	loc, err := ExtractLocator(raw)
	if err != nil {
		return "", err
	}

	r.logger.Debug("Resolved locator",
		zap.String("task", task),
		zap.String("locator", loc),
	)
	return loc, nil
}

// notFoundPhrases are answers that mean the model gave up, with or without
// the exact wording the system prompt asks for.
var notFoundPhrases = []string{
	"element not found",
	"no element found",
	"not found on the page",
	"could not find",
	"cannot find",
	"unable to find",
	"no matching element",
}

// ExtractLocator cleans a raw model response down to one locator string:
// code fences are stripped, the first line that looks like a selector wins,
// and not-found phrasing maps to ErrNotFound.
func ExtractLocator(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}

	lowered := strings.ToLower(text)
	for _, phrase := range notFoundPhrases {
		if strings.Contains(lowered, phrase) {
			return "", ErrNotFound
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		// Fence markers must be dropped whole before backtick trimming, or
		// an opener like "```css" would survive as the bogus locator "css".
		if strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.Trim(line, "`")
		line = stripLabel(line)
		if line == "" || isProse(line) {
			continue
		}
		return line, nil
	}

	return "", fmt.Errorf("no locator line in model response: %q", raw)
}

// stripLabel drops a leading "Selector:"-style label the model sometimes
// prepends to the answer line.
func stripLabel(line string) string {
	lowered := strings.ToLower(line)
	for _, label := range []string{"selector:", "answer:", "css:", "locator:"} {
		if strings.HasPrefix(lowered, label) {
			return strings.TrimSpace(line[len(label):])
		}
	}
	return line
}

// isProse filters sentence-like lines the model wrapped around the answer.
func isProse(line string) bool {
	// A selector has no spaces unless it is a combinator or frame chain;
	// prose has many words and usually ends with a period.
	if strings.HasSuffix(line, ".") && strings.Count(line, " ") > 3 {
		return true
	}
	lowered := strings.ToLower(line)
	for _, prefix := range []string{"the ", "here ", "this ", "sure", "i "} {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}
