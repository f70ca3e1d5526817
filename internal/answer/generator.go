package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unigpt/unigpt/internal/models"
	"github.com/unigpt/unigpt/internal/retrieve"
)

// Fallback is returned when nothing relevant was retrieved. The LLM is not
// called in that case.
const Fallback = "I don't have enough information to answer this question based on the uploaded documents."

const systemPrompt = "You answer questions using only the provided document excerpts. " +
	"If the excerpts do not contain the answer, say so explicitly instead of guessing."

// Result is a generated answer together with the chunks it was grounded on.
type Result struct {
	Answer  string                  `json:"answer"`
	Sources []models.RetrievedChunk `json:"sources"`
}

// Generator retrieves context for a question and produces a grounded answer.
type Generator struct {
	retriever *retrieve.Retriever
	llm       LLM
	topK      int
	logger    *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a generator. topK is the default number of chunks to
// retrieve when the caller does not ask for a specific count.
func NewGenerator(r *retrieve.Retriever, llm LLM, topK int, opts ...Option) *Generator {
	g := &Generator{
		retriever: r,
		llm:       llm,
		topK:      topK,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Answer retrieves up to topK chunks for the question and asks the LLM for an
// answer grounded in them. topK <= 0 uses the configured default. When
// retrieval returns nothing, the fixed fallback answer is returned without an
// LLM call.
func (g *Generator) Answer(ctx context.Context, question string, topK int) (*Result, error) {
	if topK <= 0 {
		topK = g.topK
	}
	chunks, err := g.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		g.logger.Debug("No relevant chunks, returning fallback", zap.String("question", question))
		return &Result{Answer: Fallback, Sources: nil}, nil
	}

	// A tight context budget can drop every chunk; an empty context block is
	// treated the same as an empty retrieval.
	contextBlock := g.retriever.BuildContext(chunks)
	if contextBlock == "" {
		g.logger.Debug("Context assembly dropped all chunks, returning fallback", zap.String("question", question))
		return &Result{Answer: Fallback, Sources: nil}, nil
	}

	prompt := buildPrompt(question, contextBlock)
	text, err := g.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: text, Sources: chunks}, nil
}

// buildPrompt assembles the user message: context excerpts first, then the
// question, with an explicit instruction to stay within the context.
func buildPrompt(question, contextBlock string) string {
	return fmt.Sprintf(`Use the following context from the uploaded documents to answer the question concisely. Answer only from the context; if the context is insufficient, state that explicitly.

Context:
%s

Question: %s

Answer:`, contextBlock, question)
}
