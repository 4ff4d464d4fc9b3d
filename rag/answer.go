package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"voxsearch/llm"
	"voxsearch/search"
)

const systemPrompt = "You are a helpful assistant. Answer based ONLY on the provided context. " +
	"Answer clearly and concisely."

// Answer is the outcome of one question through the pipeline. Degraded
// answers carry the question onward with an indicator instead of failing
// the session.
type Answer struct {
	Text      string
	Fragments []search.Fragment
	NoResults bool   // search returned nothing relevant
	Degraded  string // non-empty when search or generation failed
}

// Answerer runs retrieval-augmented answering: search for fragments, then
// ask the language model with the fragments as context.
type Answerer struct {
	searcher search.Searcher
	model    llm.LanguageModel
	logger   *log.Logger

	mu    sync.Mutex
	limit int
}

func NewAnswerer(searcher search.Searcher, model llm.LanguageModel, limit int, logger *log.Logger) *Answerer {
	return &Answerer{
		searcher: searcher,
		model:    model,
		limit:    search.ClampLimit(limit),
		logger:   logger,
	}
}

// SetLimit adjusts the result-count bound for subsequent questions.
func (a *Answerer) SetLimit(limit int) {
	a.mu.Lock()
	a.limit = search.ClampLimit(limit)
	a.mu.Unlock()
}

func (a *Answerer) currentLimit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limit
}

// Ask answers one question. Search and generation failures degrade rather
// than error: the caller always gets an Answer it can show.
func (a *Answerer) Ask(ctx context.Context, question string) Answer {
	fragments, err := a.searcher.Search(ctx, question, a.currentLimit())
	if err != nil {
		a.logger.Error("search failed", "error", err)
		return Answer{
			Text:     "I couldn't reach the document search service.",
			Degraded: fmt.Sprintf("search error: %v", err),
		}
	}

	if len(fragments) == 0 {
		return Answer{
			Text:      "I couldn't find anything relevant in the documents.",
			NoResults: true,
		}
	}

	text, err := a.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  buildPrompt(question, fragments),
		MaxTokens:    1024,
		Temperature:  0.2,
	})
	if err != nil {
		a.logger.Error("answer generation failed", "error", err)
		return Answer{
			Text:      fallbackAnswer(fragments),
			Fragments: fragments,
			Degraded:  fmt.Sprintf("generation error: %v", err),
		}
	}

	return Answer{
		Text:      strings.TrimSpace(text),
		Fragments: fragments,
	}
}

func buildPrompt(question string, fragments []search.Fragment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nContext:\n", question)
	for i, f := range fragments {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, f.Content)
	}
	sb.WriteString("\nAnswer clearly and concisely:")
	return sb.String()
}

// fallbackAnswer shows the raw retrieved text when the answer model is
// down, so the user still gets something useful for their question.
func fallbackAnswer(fragments []search.Fragment) string {
	var sb strings.Builder
	sb.WriteString("The answer model is unavailable; here is what the search found:\n")
	for _, f := range fragments {
		sb.WriteString("\n- ")
		sb.WriteString(f.Content)
	}
	return sb.String()
}
