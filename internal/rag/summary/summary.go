package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag/llm"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

const (
	citedChunks    = 5
	maxOutputToken = 600
)

var fields = []string{"tender_name", "issuer", "emd_amount", "location", "duration", "scope_of_work", "compliance_notes"}

// Extractor fills a SummarySheet from the first chunks of a knowledge base.
type Extractor struct {
	provider llm.Provider
	logger   *logger_i.Logger
}

// New accepts a nil provider, in which case only the rule based extraction runs.
func New(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider, logger: logger_i.NewLogger("SummaryExtractor")}
}

func (e *Extractor) Extract(ctx context.Context, chunks []commonModels.Chunk) commonModels.SummarySheet {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("summary", time.Since(start)) }()

	if len(chunks) == 0 {
		return commonModels.SummarySheet{ComplianceNotes: []string{}, Citations: []commonModels.Citation{}}
	}
	log := e.logger.FromContext(ctx)

	if e.provider != nil {
		raw, err := e.provider.Generate(ctx, BuildPrompt(chunks))
		if err != nil {
			log.Warn("summary generation failed, using rules", "error", &kbErrors.GenerationError{Provider: e.provider.Name(), Err: err})
		} else if sheet, ok := Decode(raw); ok {
			sheet.Citations = headCitations(chunks)
			return sheet
		} else {
			log.Debug("summary output unusable, using rules")
		}
	}
	return Rules(chunks)
}

// BuildPrompt packs whole chunks until SummaryContextChars is reached.
func BuildPrompt(chunks []commonModels.Chunk) llm.Prompt {
	var sb strings.Builder
	for _, c := range chunks {
		span := fmt.Sprintf("[page %d | %s | %s]\n%s\n\n", c.Page, c.ChunkId, c.SectionHint, c.Text)
		if sb.Len()+len(span) > config.SummaryContextChars {
			break
		}
		sb.WriteString(span)
	}
	instructions := "Extract the following fields as JSON with keys: " + strings.Join(fields, ", ") + `.
- tender_name: short name or title of the tender.
- issuer: the issuing organization.
- emd_amount: Earnest Money Deposit value with its currency.
- location: primary location(s) of work.
- duration: contract or project duration.
- scope_of_work: 1-3 sentence summary of the key scope.
- compliance_notes: array of 3-8 short bullets on critical compliance, eligibility or financial terms.
Return ONLY valid JSON. Use null when a value is not found, or [] for arrays.`

	return llm.Prompt{
		System:      "You are a tender document analyzer.",
		User:        instructions + "\n\nContext:\n" + sb.String(),
		Temperature: 0,
		MaxTokens:   maxOutputToken,
	}
}

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")

// ExtractJSON finds a JSON object in free text: a ```json fence first, then the first balanced {...}.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// Decode coerces model output into a sheet. ok is false when nothing usable was found.
func Decode(raw string) (commonModels.SummarySheet, bool) {
	sheet := commonModels.SummarySheet{ComplianceNotes: []string{}}
	body, found := ExtractJSON(raw)
	if !found {
		body = strings.TrimSpace(raw)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return sheet, false
	}

	str := func(key string) *string {
		v, ok := m[key]
		if !ok || v == nil {
			return nil
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			return nil
		}
		return &s
	}
	sheet.TenderName = str("tender_name")
	sheet.Issuer = str("issuer")
	sheet.EmdAmount = str("emd_amount")
	sheet.Location = str("location")
	sheet.Duration = str("duration")
	sheet.ScopeOfWork = str("scope_of_work")
	if notes, ok := m["compliance_notes"].([]any); ok {
		for _, n := range notes {
			if n == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(n)); s != "" {
				sheet.ComplianceNotes = append(sheet.ComplianceNotes, s)
			}
		}
	}
	return sheet, !sheet.IsEmpty()
}

var (
	headerNoise     = regexp.MustCompile(`(?i)\b(page\s*\d+|table of contents)\b`)
	issuerRule      = regexp.MustCompile(`(?i)\b(?:Corporation|Company|Department|Ministry|Government|Govt\.?|Ltd\.?|Limited|Authority)[:\s,\-]*([^\n]{3,80})`)
	emdRule         = regexp.MustCompile(`(?i)(?:EMD|Earnest Money(?: Deposit)?)[^\n:]*?[:\-]?\s*(₹|INR|Rs\.?|RUPEES)?\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	durationRule    = regexp.MustCompile(`(?i)(?:Duration|Period)[^\n:]*[:\-]?\s*(\d+\s*(?:day|month|year)s?)`)
	locationRule    = regexp.MustCompile(`(?i)(?:Location|Place of work)[^\n:]*[:\-]?\s*([^\n]{3,80})`)
	scopeRule       = regexp.MustCompile(`(?i)Scope of Work[\s\-:]*([\s\S]{0,500})`)
	sentenceEnd     = regexp.MustCompile(`[.!?]\s+`)
	complianceTerms = regexp.MustCompile(`(?i)eligibility|turnover|experience|bid security|\bemd\b|bank guarantee|penalty|liquidated damages`)
)

// Rules is the offline fallback over the first chunks.
func Rules(chunks []commonModels.Chunk) commonModels.SummarySheet {
	head := chunks[:min(citedChunks, len(chunks))]
	lines := make([]string, 0, len(head))
	for _, c := range head {
		lines = append(lines, c.Text)
	}
	text := strings.Join(lines, "\n")

	sheet := commonModels.SummarySheet{ComplianceNotes: []string{}, Citations: headCitations(chunks)}
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if n := len([]rune(s)); n >= 6 && n <= 140 && !headerNoise.MatchString(s) {
			sheet.TenderName = &s
			break
		}
	}
	if m := issuerRule.FindString(text); m != "" {
		s := strings.TrimSpace(m)
		sheet.Issuer = &s
	}
	if m := emdRule.FindStringSubmatch(text); m != nil {
		s := strings.TrimSpace(m[1] + " " + m[2])
		sheet.EmdAmount = &s
	}
	if m := durationRule.FindStringSubmatch(text); m != nil {
		sheet.Duration = &m[1]
	}
	if m := locationRule.FindStringSubmatch(text); m != nil {
		s := strings.TrimSpace(m[1])
		sheet.Location = &s
	}
	if m := scopeRule.FindStringSubmatch(text); m != nil {
		snippet := strings.TrimSpace(m[1])
		if ends := sentenceEnd.FindAllStringIndex(snippet, 2); len(ends) == 2 {
			snippet = snippet[:ends[1][0]+1]
		}
		snippet = strings.TrimSpace(snippet)
		if r := []rune(snippet); len(r) > 300 {
			snippet = string(r[:300])
		}
		if snippet != "" {
			sheet.ScopeOfWork = &snippet
		}
	}
	for _, line := range strings.Split(text, "\n") {
		s := strings.Trim(line, " -*•\t")
		if n := len([]rune(s)); n >= 6 && n <= 160 && complianceTerms.MatchString(s) {
			sheet.ComplianceNotes = append(sheet.ComplianceNotes, s)
			if len(sheet.ComplianceNotes) == 6 {
				break
			}
		}
	}
	return sheet
}

func headCitations(chunks []commonModels.Chunk) []commonModels.Citation {
	head := chunks[:min(citedChunks, len(chunks))]
	out := make([]commonModels.Citation, 0, len(head))
	for _, c := range head {
		out = append(out, commonModels.CitationFor(c))
	}
	return out
}
