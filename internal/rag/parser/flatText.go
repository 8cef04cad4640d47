package parser

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/dslipak/pdf"
	flatpdf "github.com/ledongthuc/pdf"
)

const (
	flatHeading      = "Document"
	flatLinesPerNode = 12
)

// FlatTextStrategy reads plain page text and keeps only paragraph boundaries.
type FlatTextStrategy struct {
	logger *logger_i.Logger
}

func NewFlatTextStrategy() *FlatTextStrategy {
	return &FlatTextStrategy{logger: logger_i.NewLogger("FlatTextStrategy")}
}

func (s *FlatTextStrategy) Name() string { return "flat_text" }

func (s *FlatTextStrategy) Extract(ctx context.Context, doc commonModels.Document) ([]commonModels.StructuralNode, error) {
	reader, err := openGuarded(func() (*flatpdf.Reader, error) {
		return flatpdf.NewReader(bytes.NewReader(doc.Raw), int64(len(doc.Raw)))
	})
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	log := s.logger.FromContext(ctx)
	nodes := []commonModels.StructuralNode{commonModels.Heading(1, flatHeading, 1, nil)}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := protectExtract(ctx, func() (string, error) {
			return pageText(page)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("page skipped", "document", doc.Filename, "page", i, "error", err)
			continue
		}
		for _, block := range splitBlocks(text) {
			nodes = append(nodes, commonModels.Paragraph(block, i, []string{flatHeading}))
		}
	}
	return nodes, nil
}

// pageText rebuilds lines from positioned glyphs so runs placed apart keep a space between them.
// A wide vertical gap or a change of font size becomes a blank line. Pages without positioned
// glyphs fall back to the raw text stream.
func pageText(page flatpdf.Page) (string, error) {
	glyphs := page.Content().Text
	if len(glyphs) == 0 {
		return page.GetPlainText(nil)
	}
	runs := make([]pdf.Text, len(glyphs))
	for i, g := range glyphs {
		runs[i] = pdf.Text{Font: g.Font, FontSize: g.FontSize, X: g.X, Y: g.Y, W: g.W, S: g.S}
	}

	var sb strings.Builder
	lines := buildLines(0, runs)
	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			sb.WriteByte('\n')
			if prev.Y-l.Y > paragraphGapFactor*math.Max(prev.Size, 1) || math.Abs(prev.Size-l.Size) > 0.5 {
				sb.WriteByte('\n')
			}
		}
		sb.WriteString(l.Text)
	}
	return sb.String(), nil
}

// splitBlocks breaks page text on blank lines. Text without blank lines is grouped into fixed runs of lines.
func splitBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var blocks []string
	var current []string
	blankSeen := false
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = normalizeSpace(line)
		if line == "" {
			blankSeen = true
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	if blankSeen || len(blocks) != 1 {
		return blocks
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = normalizeSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) <= flatLinesPerNode {
		return blocks
	}
	blocks = blocks[:0]
	for start := 0; start < len(lines); start += flatLinesPerNode {
		end := min(start+flatLinesPerNode, len(lines))
		blocks = append(blocks, strings.Join(lines[start:end], " "))
	}
	return blocks
}
