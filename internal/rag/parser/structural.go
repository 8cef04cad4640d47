package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/dslipak/pdf"
)

// StructuralStrategy rebuilds headings, paragraphs and table rows from glyph positions and font sizes.
type StructuralStrategy struct {
	logger *logger_i.Logger
}

func NewStructuralStrategy() *StructuralStrategy {
	return &StructuralStrategy{logger: logger_i.NewLogger("StructuralStrategy")}
}

func (s *StructuralStrategy) Name() string { return "structural" }

func (s *StructuralStrategy) Extract(ctx context.Context, doc commonModels.Document) ([]commonModels.StructuralNode, error) {
	reader, err := openGuarded(func() (*pdf.Reader, error) {
		return pdf.NewReader(bytes.NewReader(doc.Raw), int64(len(doc.Raw)))
	})
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	log := s.logger.FromContext(ctx)
	var lines []textLine
	glyphs := 0
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts, err := protectExtract(ctx, func() ([]pdf.Text, error) {
			return page.Content().Text, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("page skipped", "document", doc.Filename, "page", i, "error", err)
			continue
		}
		glyphs += len(texts)
		lines = append(lines, buildLines(i, texts)...)
	}

	// No positioned glyphs means the content streams are not usable for layout.
	if glyphs == 0 {
		return nil, ErrStrategyUnavailable
	}
	return classifyLines(lines), nil
}
