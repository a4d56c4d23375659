// Package answer orchestrates the retrieval-augmented answering of a single
// question: embed the question, query the vector index, assemble a prompt
// from the retrieved chunks, and synthesize an answer with the language
// model. Each question runs through an explicit per-request state machine;
// no state survives across questions.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jcarver/docchat/internal/domain"
	"github.com/jcarver/docchat/internal/storage"
)

// SystemPrompt is the fixed instruction for answer synthesis.
const SystemPrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, say that you don't know. " +
	"Use three sentences maximum and keep the answer concise."

// Embedder maps the question text to a query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs top-k similarity search over indexed chunks.
type Searcher interface {
	SearchChunks(ctx context.Context, vector []float32, k int) ([]*storage.ScoredChunk, error)
}

// Completer invokes the language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// state names the steps of the per-question lifecycle.
type state string

const (
	stateReceived    state = "received"
	stateEmbedded    state = "embedded"
	stateRetrieved   state = "retrieved"
	statePromptBuilt state = "prompt_built"
	stateAnswered    state = "answered"
	stateFailed      state = "failed"
)

// Options configures the answering pipeline.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
}

// DefaultOptions returns the standard retrieval settings.
func DefaultOptions() Options {
	return Options{
		TopK:          4,
		SearchTimeout: 5 * time.Second,
	}
}

// Orchestrator runs the question-answering state machine.
type Orchestrator struct {
	embedder  Embedder
	searcher  Searcher
	completer Completer
	opts      Options
	logger    *slog.Logger
}

// New creates an Orchestrator with the given collaborators.
func New(embedder Embedder, searcher Searcher, completer Completer, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		embedder:  embedder,
		searcher:  searcher,
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question. Any step failure moves the
// request to the failed state and surfaces the originating error; the
// orchestrator never fabricates a partial answer. Zero retrieved chunks is
// not a failure: the prompt is built with an empty context block and the
// model is expected to say it lacks information.
func (o *Orchestrator) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	run := run{logger: o.logger, current: stateReceived}

	// received -> embedded. Reject blank questions before any network call.
	question = strings.TrimSpace(question)
	if question == "" {
		run.fail("validate")
		return nil, domain.Errorf(domain.KindInvalidQuestion, "validate", "question is empty")
	}

	vector, err := o.embedder.EmbedQuery(ctx, question)
	if err != nil {
		run.fail("embed")
		return nil, fmt.Errorf("embed question: %w", err)
	}
	run.to(stateEmbedded)

	// embedded -> retrieved.
	searchCtx, cancel := context.WithTimeout(ctx, o.opts.SearchTimeout)
	defer cancel()

	hits, err := o.searcher.SearchChunks(searchCtx, vector, o.opts.TopK)
	if err != nil {
		run.fail("retrieve")
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}
	run.to(stateRetrieved)

	retrieved := make([]domain.RetrievedChunk, len(hits))
	for i, hit := range hits {
		retrieved[i] = domain.RetrievedChunk{
			Text:          hit.Text,
			Score:         hit.Score,
			SequenceIndex: hit.SequenceIndex,
			DocumentID:    hit.DocumentID,
		}
	}

	// retrieved -> prompt_built.
	prompt := buildPrompt(retrieved, question)
	run.to(statePromptBuilt)

	// prompt_built -> answered.
	text, err := o.completer.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		run.fail("complete")
		return nil, fmt.Errorf("complete answer: %w", err)
	}
	run.to(stateAnswered)

	return &domain.Answer{
		Text:             text,
		SupportingChunks: retrieved,
	}, nil
}

// buildPrompt assembles the user message: numbered context blocks followed by
// the original question. With no retrieved chunks the context block is empty.
func buildPrompt(chunks []domain.RetrievedChunk, question string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, chunk.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// run tracks the state of one question for transition logging.
type run struct {
	logger  *slog.Logger
	current state
}

func (r *run) to(next state) {
	r.logger.Debug("question state", "from", string(r.current), "to", string(next))
	r.current = next
}

func (r *run) fail(stage string) {
	r.logger.Debug("question state", "from", string(r.current), "to", string(stateFailed), "stage", stage)
	r.current = stateFailed
}
