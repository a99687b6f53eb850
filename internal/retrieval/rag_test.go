package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"hearing-intake/internal/llm"
)

type recordingGenerator struct {
	calls [][]llm.Message
	opts  []llm.Options
	reply string
	err   error
}

func (g *recordingGenerator) Generate(_ context.Context, msgs []llm.Message, opts llm.Options) (string, error) {
	g.calls = append(g.calls, msgs)
	g.opts = append(g.opts, opts)
	return g.reply, g.err
}

func TestLoadCorpus_TextFileSplitsOnFormFeed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ref.txt")
	if err := os.WriteFile(p, []byte("page one\fpage two\fpage three"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := LoadCorpus(p)
	if err != nil {
		t.Fatalf("LoadCorpus error: %v", err)
	}
	if c.PageCount() != 3 {
		t.Fatalf("PageCount = %d, want 3", c.PageCount())
	}
	pages := c.Pages()
	if pages[0].Number != 0 || pages[2].Number != 2 || pages[1].Text != "page two" {
		t.Fatalf("unexpected pages %+v", pages)
	}
	if !strings.Contains(c.Text(), "page one\n\npage two") {
		t.Fatalf("unexpected joined text %q", c.Text())
	}
}

func TestLoadCorpus_MissingFile(t *testing.T) {
	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Fatalf("expected error for missing pdf")
	}
}

func TestAnswerGrounded_EmptyCorpus(t *testing.T) {
	gen := &recordingGenerator{reply: "x"}
	r := NewRAG(NewCorpus("empty", nil), gen, 0, zap.NewNop())

	_, err := r.AnswerGrounded(context.Background(), "anything")
	if !errors.Is(err, ErrCorpusNotLoaded) {
		t.Fatalf("expected ErrCorpusNotLoaded, got %v", err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("generator must not be called without a corpus")
	}
}

func TestAnswerGrounded_StuffsCorpusIntoSystemPrompt(t *testing.T) {
	gen := &recordingGenerator{reply: "sensorineural hearing loss"}
	corpus := NewCorpus("ref", []Page{{Number: 0, Text: "Otosclerosis fixes the stapes."}, {Number: 1, Text: "Presbycusis is age related."}})
	r := NewRAG(corpus, gen, 0, zap.NewNop())

	ans, err := r.AnalyzeSymptoms(context.Background(), "tinnitus, hearing loss")
	if err != nil {
		t.Fatalf("AnalyzeSymptoms error: %v", err)
	}
	if ans.Answer != "sensorineural hearing loss" {
		t.Fatalf("unexpected answer %q", ans.Answer)
	}
	if len(ans.Context) != 2 || ans.Context[1].Number != 1 {
		t.Fatalf("expected both pages as context, got %+v", ans.Context)
	}
	msgs := gen.calls[0]
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "Presbycusis is age related.") {
		t.Fatalf("system prompt must contain corpus text: %q", msgs[0].Content)
	}
	if msgs[1].Role != llm.RoleUser || !strings.Contains(msgs[1].Content, "tinnitus, hearing loss") {
		t.Fatalf("query must carry the summary: %q", msgs[1].Content)
	}
	if gen.opts[0].Temperature != groundingTemperature {
		t.Fatalf("temperature = %v", gen.opts[0].Temperature)
	}
}

func TestAnswerGrounded_PropagatesGenerationError(t *testing.T) {
	gen := &recordingGenerator{err: &llm.GenerationError{Err: errors.New("quota")}}
	r := NewRAG(NewCorpus("ref", []Page{{Text: "x"}}), gen, 0, zap.NewNop())

	_, err := r.DiseaseInfo(context.Background(), "Meniere's disease")
	var genErr *llm.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected wrapped GenerationError, got %v", err)
	}
}

func TestTokenBudget_KeepsWholePagesFromStart(t *testing.T) {
	b := &tokenBudget{max: 5, count: func(s string) int { return len(strings.Fields(s)) }}
	pages := []Page{{Text: "a b c"}, {Text: "d e"}, {Text: "f"}}

	kept, trimmed := b.fit(pages)
	if !trimmed || len(kept) != 2 {
		t.Fatalf("expected 2 pages kept with trim, got %d trimmed=%v", len(kept), trimmed)
	}

	kept, trimmed = (&tokenBudget{}).fit(pages)
	if trimmed || len(kept) != 3 {
		t.Fatalf("zero budget must keep everything")
	}
}
