// Package loader provides document loading adapters for the check command.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/ledongthuc/pdf"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/domain/ports"
)

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return newDocument(path, string(content)), nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// PDFLoader extracts the plain text layer of PDF documents.
type PDFLoader struct{}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Load extracts text from a PDF file.
func (l *PDFLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting plain text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return nil, fmt.Errorf("reading text: %w", err)
	}
	return newDocument(path, cleanPDFContent(buf.String())), nil
}

// SupportedExtensions returns file extensions.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}

// XMLLoader extracts paragraph text from XML and XHTML documents.
// Each node selected by the XPath expression becomes one paragraph.
type XMLLoader struct {
	expr string
}

// NewXMLLoader creates an XML loader. An empty expression selects //p.
func NewXMLLoader(expr string) *XMLLoader {
	if expr == "" {
		expr = "//p"
	}
	return &XMLLoader{expr: expr}
}

// Load parses the document and joins the selected nodes with newlines.
// A document with no matching node yields its whole text content.
func (l *XMLLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := xmlquery.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}

	nodes, err := xmlquery.QueryAll(root, l.expr)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", l.expr, err)
	}
	if len(nodes) == 0 {
		return newDocument(path, strings.TrimSpace(root.InnerText())), nil
	}

	paras := make([]string, 0, len(nodes))
	for _, n := range nodes {
		paras = append(paras, strings.Join(strings.Fields(n.InnerText()), " "))
	}
	return newDocument(path, strings.Join(paras, "\n")), nil
}

// SupportedExtensions returns file extensions.
func (l *XMLLoader) SupportedExtensions() []string {
	return []string{".xml", ".xhtml", ".html", ".htm"}
}

// MultiLoader combines multiple loaders.
type MultiLoader struct {
	loaders  map[string]ports.DocumentLoader
	fallback ports.DocumentLoader
}

// NewMultiLoader creates a loader for text, PDF and XML documents.
// Unknown extensions are read as text.
func NewMultiLoader() *MultiLoader {
	m := &MultiLoader{
		loaders:  make(map[string]ports.DocumentLoader),
		fallback: NewTextLoader(),
	}
	m.Register(NewTextLoader())
	m.Register(NewPDFLoader())
	m.Register(NewXMLLoader(""))
	return m
}

// Register routes every extension of l to l, replacing earlier entries.
func (m *MultiLoader) Register(l ports.DocumentLoader) {
	for _, ext := range l.SupportedExtensions() {
		m.loaders[strings.ToLower(ext)] = l
	}
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := m.loaders[ext]
	if !ok {
		l = m.fallback
	}
	return l.Load(ctx, path)
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func newDocument(path, content string) *entities.Document {
	return &entities.Document{
		Name:    filepath.Base(path),
		Path:    path,
		Content: content,
	}
}

// cleanPDFContent drops control characters left by text extraction.
func cleanPDFContent(content string) string {
	var cleaned strings.Builder
	for _, r := range content {
		if r >= 32 && r != 127 || r == '\n' || r == '\t' {
			cleaned.WriteRune(r)
		}
	}
	return strings.TrimSpace(cleaned.String())
}
