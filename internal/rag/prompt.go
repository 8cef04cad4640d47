package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
)

var (
	answerLabel   = regexp.MustCompile(`(?i)^\s*answer\s*:\s*`)
	sourceMarker  = regexp.MustCompile(`\[S(\d+)\]`)
	pdfFilename   = regexp.MustCompile(`(?i)^\S+\.pdf$`)
	spaceRun      = regexp.MustCompile(`\s+`)
	spaceBeforeP  = regexp.MustCompile(`\s+([.,;:!?])`)
	systemPromptF = config.ModelContext + `
Rules:
- Use only the numbered context blocks below. Never use outside knowledge.
- After each statement cite the blocks it came from with markers like [S1] or [S2][S3].
- If the answer is not in the context reply exactly: %s
- Return only the answer text. Do not mention filenames or ids.`
)

// BuildPrompt numbers the retrieved chunks [S1]..[Sk] in rank order.
func BuildPrompt(question string, matches []commonModels.ScoredChunk, temperature float32, maxTokens int) llm.Prompt {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, m := range matches {
		fmt.Fprintf(&sb, "[S%d] (%s)\n%s\n\n", i+1, m.Chunk.SectionHint, m.Chunk.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\nAnswer:")

	return llm.Prompt{
		System:      fmt.Sprintf(systemPromptF, config.NotFoundAnswer),
		User:        sb.String(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// ParseAnswer cleans the model output and returns the zero based indices of the
// blocks it cited, in first-cited order. Markers outside 1..k are dropped.
func ParseAnswer(raw string, k int, kbId string) (string, []int) {
	text := answerLabel.ReplaceAllString(strings.TrimSpace(raw), "")

	var cited []int
	seen := make(map[int]bool)
	text = sourceMarker.ReplaceAllStringFunc(text, func(marker string) string {
		n, err := strconv.Atoi(sourceMarker.FindStringSubmatch(marker)[1])
		if err != nil || n < 1 || n > k {
			return ""
		}
		if !seen[n] {
			seen[n] = true
			cited = append(cited, n-1)
		}
		return marker
	})

	text = spaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spaceBeforeP.ReplaceAllString(text, "$1"))
	// A bare filename or kb id in place of an answer means the model found nothing.
	bare := strings.TrimSpace(sourceMarker.ReplaceAllString(text, ""))
	if bare == "" || bare == kbId || pdfFilename.MatchString(bare) {
		return config.NotFoundAnswer, nil
	}
	return text, cited
}

// citationsFor maps cited block indices to citations. With no usable markers every match is cited.
func citationsFor(matches []commonModels.ScoredChunk, cited []int) []commonModels.Citation {
	if len(cited) == 0 {
		return allCitations(matches)
	}
	out := make([]commonModels.Citation, 0, len(cited))
	seen := make(map[string]bool, len(cited))
	for _, i := range cited {
		c := matches[i].Chunk
		if seen[c.ChunkId] {
			continue
		}
		seen[c.ChunkId] = true
		out = append(out, commonModels.CitationFor(c))
	}
	return out
}

func allCitations(matches []commonModels.ScoredChunk) []commonModels.Citation {
	out := make([]commonModels.Citation, 0, len(matches))
	for _, m := range matches {
		out = append(out, commonModels.CitationFor(m.Chunk))
	}
	return out
}
