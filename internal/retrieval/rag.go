package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hearing-intake/internal/llm"
)

const groundingTemperature = 0.3

// Answer is a grounded completion together with the pages it was given.
type Answer struct {
	Query   string `json:"input"`
	Answer  string `json:"answer"`
	Context []Page `json:"context"`
}

// RAG answers questions by placing the reference corpus in the system
// prompt. There is no vector search; the whole document (or as much as the
// token budget allows) is the context.
type RAG struct {
	corpus *Corpus
	gen    llm.TextGenerator
	budget *tokenBudget
	log    *zap.Logger
}

func NewRAG(corpus *Corpus, gen llm.TextGenerator, maxContextTokens int, log *zap.Logger) *RAG {
	return &RAG{
		corpus: corpus,
		gen:    gen,
		budget: newTokenBudget(maxContextTokens),
		log:    log,
	}
}

func (r *RAG) Corpus() *Corpus { return r.corpus }

// AnswerGrounded forwards the corpus text plus the query to the generator.
func (r *RAG) AnswerGrounded(ctx context.Context, query string) (*Answer, error) {
	if r.corpus.empty() {
		return nil, ErrCorpusNotLoaded
	}

	pages, trimmed := r.budget.fit(r.corpus.Pages())
	if trimmed {
		r.log.Warn("reference corpus trimmed to token budget",
			zap.Int("pages_kept", len(pages)),
			zap.Int("pages_total", r.corpus.PageCount()),
		)
	}

	var reference string
	if trimmed {
		reference = NewCorpus(r.corpus.Source(), pages).Text()
	} else {
		reference = r.corpus.Text()
	}

	answer, err := r.gen.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(groundingSystemPrompt, reference)},
		{Role: llm.RoleUser, Content: query},
	}, llm.Options{Temperature: groundingTemperature})
	if err != nil {
		return nil, fmt.Errorf("grounded answer: %w", err)
	}

	return &Answer{Query: query, Answer: answer, Context: pages}, nil
}

// AnalyzeSymptoms asks for disorder categories, causes and related
// conditions matching a symptom summary.
func (r *RAG) AnalyzeSymptoms(ctx context.Context, summary string) (*Answer, error) {
	return r.AnswerGrounded(ctx, fmt.Sprintf(symptomsAnalysisQuery, summary))
}

func (r *RAG) DiseaseInfo(ctx context.Context, disease string) (*Answer, error) {
	return r.AnswerGrounded(ctx, fmt.Sprintf(diseaseInfoQuery, strings.TrimSpace(disease)))
}

func (r *RAG) DifferentialQuestions(ctx context.Context, diseases []string) (*Answer, error) {
	return r.AnswerGrounded(ctx, fmt.Sprintf(differentialQuestionsQuery, strings.Join(diseases, ", ")))
}
