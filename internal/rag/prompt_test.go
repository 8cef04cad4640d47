package rag

import (
	"testing"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		k         int
		wantText  string
		wantCited []int
	}{
		{"strips label and whitespace", "  Answer:  The EMD is\n\n Rs 50,000 [S1]  ", 3, "The EMD is Rs 50,000 [S1]", []int{0}},
		{"dedupes in first cited order", "a [S3] b [S1] c [S3]", 3, "a [S3] b [S1] c [S3]", []int{2, 0}},
		{"drops out of range markers", "x [S0] y [S4] z [S2]", 3, "x y z [S2]", []int{1}},
		{"empty becomes not found", "   ", 3, config.NotFoundAnswer, nil},
		{"only bad markers", "[S7]", 2, config.NotFoundAnswer, nil},
		{"filename echo", "tender_2024.PDF", 3, config.NotFoundAnswer, nil},
		{"filename echo with marker", "annex/tender.pdf [S1]", 3, config.NotFoundAnswer, nil},
		{"answer naming a pdf form is kept", "Submit Form-B.pdf with the bid [S1]", 3, "Submit Form-B.pdf with the bid [S1]", []int{0}},
		{"kb id echo", "kb_global", 3, config.NotFoundAnswer, nil},
		{"model says not found", "Not found in tender.", 3, "Not found in tender.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, cited := ParseAnswer(tt.raw, tt.k, "kb_global")
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantCited, cited)
		})
	}
}
