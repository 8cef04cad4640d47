package commonModels

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Document is one source file. It is never mutated; a rebuild reads it again.
type Document struct {
	Id       string `json:"document_id"`
	Filename string `json:"filename"`
	Raw      []byte `json:"-"`
}

// NewDocument derives a stable id from the filename so chunk ids survive rebuilds.
func NewDocument(filename string, raw []byte) Document {
	sum := sha1.Sum([]byte(filename))
	return Document{
		Id:       "doc_" + hex.EncodeToString(sum[:])[:12],
		Filename: filename,
		Raw:      raw,
	}
}

type NodeKind string

const (
	NodeHeading   NodeKind = "heading"
	NodeParagraph NodeKind = "paragraph"
	NodeTableCell NodeKind = "table_cell"
)

// StructuralNode is one heading, paragraph or table cell in reading order.
type StructuralNode struct {
	Kind  NodeKind `json:"kind"`
	Level int      `json:"level,omitempty"`
	Row   int      `json:"row,omitempty"`
	Col   int      `json:"col,omitempty"`
	Text  string   `json:"text"`
	Page  int      `json:"page"`
	Path  []string `json:"path,omitempty"`
}

func Heading(level int, text string, page int, path []string) StructuralNode {
	return StructuralNode{Kind: NodeHeading, Level: level, Text: text, Page: page, Path: path}
}

func Paragraph(text string, page int, path []string) StructuralNode {
	return StructuralNode{Kind: NodeParagraph, Text: text, Page: page, Path: path}
}

func TableCell(row, col int, text string, page int, path []string) StructuralNode {
	return StructuralNode{Kind: NodeTableCell, Row: row, Col: col, Text: text, Page: page, Path: path}
}

// Chunk is the unit of retrieval.
type Chunk struct {
	ChunkId         string    `json:"chunk_id"`
	DocumentId      string    `json:"document_id"`
	Source          string    `json:"source"`
	KnowledgeBaseId string    `json:"kb_id"`
	Text            string    `json:"text"`
	SectionHint     string    `json:"section_hint"`
	Page            int       `json:"page"`
	Sequence        int       `json:"sequence"`
	OverlapTokens   int       `json:"overlap_tokens"`
	Embedding       []float32 `json:"-"`
}

func ChunkId(documentId string, sequence int) string {
	return fmt.Sprintf("%s-%05d", documentId, sequence)
}

// SectionHint renders "file.pdf | A > B > paragraph 3".
func SectionHint(filename string, path []string, paragraph int) string {
	parts := make([]string, 0, len(path)+1)
	for _, p := range path {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, fmt.Sprintf("paragraph %d", paragraph))
	return filename + " | " + strings.Join(parts, " > ")
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// QueryResult is sorted by descending score, ties by ascending chunk id.
type QueryResult struct {
	KnowledgeBaseId string        `json:"kb_id"`
	Matches         []ScoredChunk `json:"matches"`
}

type Citation struct {
	SectionHint string `json:"section_hint"`
	Source      string `json:"source"`
	ChunkId     string `json:"chunk_id,omitempty"`
	Page        int    `json:"page,omitempty"`
}

func CitationFor(c Chunk) Citation {
	return Citation{SectionHint: c.SectionHint, Source: c.Source, ChunkId: c.ChunkId, Page: c.Page}
}

type Answer struct {
	KnowledgeBaseId string     `json:"kb_id"`
	Question        string     `json:"question"`
	Text            string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	Context         []string   `json:"context,omitempty"`
	Degraded        bool       `json:"degraded"`
	NoContext       bool       `json:"no_context"`
}

type DocumentReport struct {
	Source       string `json:"source"`
	DocumentId   string `json:"document_id"`
	Pages        int    `json:"pages"`
	Chunks       int    `json:"chunks"`
	FailedChunks int    `json:"failed_chunks,omitempty"`
	Strategy     string `json:"strategy"`
}

type SkippedDocument struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type BuildSummary struct {
	KnowledgeBaseId string            `json:"kb_id"`
	Succeeded       []DocumentReport  `json:"succeeded"`
	Skipped         []SkippedDocument `json:"skipped"`
	Chunks          int               `json:"chunks"`
	Pages           int               `json:"pages"`
	Duration        time.Duration     `json:"duration"`
}

func (b BuildSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kb %s: %d succeeded, %d skipped (%d chunks, %d pages)",
		b.KnowledgeBaseId, len(b.Succeeded), len(b.Skipped), b.Chunks, b.Pages)
	for _, s := range b.Skipped {
		fmt.Fprintf(&sb, "\n  skipped %s: %s: %s", s.Source, s.Kind, s.Reason)
	}
	return sb.String()
}

// SummarySheet is the extracted tender overview.
type SummarySheet struct {
	TenderName      *string    `json:"tender_name"`
	Issuer          *string    `json:"issuer"`
	EmdAmount       *string    `json:"emd_amount"`
	Location        *string    `json:"location"`
	Duration        *string    `json:"duration"`
	ScopeOfWork     *string    `json:"scope_of_work"`
	ComplianceNotes []string   `json:"compliance_notes"`
	Citations       []Citation `json:"citations"`
}

func (s SummarySheet) IsEmpty() bool {
	for _, v := range []*string{s.TenderName, s.Issuer, s.EmdAmount, s.Location, s.Duration, s.ScopeOfWork} {
		if v != nil && strings.TrimSpace(*v) != "" {
			return false
		}
	}
	return len(s.ComplianceNotes) == 0
}
