package retrieval

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrCorpusNotLoaded = errors.New("reference corpus is not loaded")

// Page is one page of extracted reference text. Numbers start at 0.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// Corpus is the reference document, loaded once and shared read-only.
type Corpus struct {
	source string
	pages  []Page
	text   string
}

// NewCorpus builds a corpus from already extracted pages.
func NewCorpus(source string, pages []Page) *Corpus {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n\n")
	}
	return &Corpus{source: source, pages: pages, text: b.String()}
}

// LoadCorpus reads a PDF (one Page per PDF page) or a plain text file
// (pages separated by form feeds).
func LoadCorpus(path string) (*Corpus, error) {
	var (
		pages []Page
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err = readPDFPages(path)
	default:
		pages, err = readTextPages(path)
	}
	if err != nil {
		return nil, err
	}
	return NewCorpus(path, pages), nil
}

func readPDFPages(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i - 1})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i - 1, Text: text})
	}
	return pages, nil
}

func readTextPages(path string) ([]Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	parts := strings.Split(string(raw), "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, Page{Number: i, Text: part})
	}
	return pages, nil
}

func (c *Corpus) Source() string { return c.source }

func (c *Corpus) PageCount() int { return len(c.pages) }

// Pages returns a copy of the ordered pages.
func (c *Corpus) Pages() []Page {
	out := make([]Page, len(c.pages))
	copy(out, c.pages)
	return out
}

// Text is every page joined by blank lines.
func (c *Corpus) Text() string { return c.text }

func (c *Corpus) empty() bool {
	return c == nil || strings.TrimSpace(c.text) == ""
}
