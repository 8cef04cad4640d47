package chunker

import (
	"slices"
	"strings"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/metrics"
)

type Options struct {
	MaxTokens     int
	OverlapTokens int
}

func DefaultOptions() Options {
	return Options{MaxTokens: config.DefaultMaxChunkTokens, OverlapTokens: config.DefaultChunkOverlap}
}

// normalized clamps the options into a usable range: overlap in [0, max-1].
func (o Options) normalized() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = config.DefaultMaxChunkTokens
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
	if o.OverlapTokens >= o.MaxTokens {
		o.OverlapTokens = o.MaxTokens - 1
	}
	return o
}

// unit is the smallest piece the chunker places: a heading, a paragraph, a table row,
// or a slice of one of those when it alone exceeds MaxTokens.
type unit struct {
	tokens    []string
	path      []string
	paragraph int
	page      int
	heading   bool
}

// Chunk splits one document's nodes into overlapping chunks. Output depends only on the inputs.
// A chunk never spans two heading paths; the first chunk of a section carries no overlap.
func Chunk(doc commonModels.Document, nodes []commonModels.StructuralNode, opts Options) []commonModels.Chunk {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("chunk", time.Since(start)) }()

	opts = opts.normalized()
	units := splitOversized(buildUnits(nodes), opts.MaxTokens)

	var chunks []commonModels.Chunk
	var current []string
	var first *unit
	overlap := 0

	emit := func() {
		chunks = append(chunks, commonModels.Chunk{
			ChunkId:       commonModels.ChunkId(doc.Id, len(chunks)),
			DocumentId:    doc.Id,
			Source:        doc.Filename,
			Text:          strings.Join(current, " "),
			SectionHint:   commonModels.SectionHint(doc.Filename, first.path, first.paragraph),
			Page:          first.page,
			Sequence:      len(chunks),
			OverlapTokens: overlap,
		})
	}

	for i := range units {
		u := &units[i]
		newSection := first != nil && !slices.Equal(u.path, first.path)
		if first != nil && (newSection || len(current)+len(u.tokens) > opts.MaxTokens) {
			emit()
			seed := min(opts.OverlapTokens, opts.MaxTokens-len(u.tokens), len(current))
			if newSection {
				seed = 0
			}
			current = append([]string(nil), current[len(current)-seed:]...)
			overlap = seed
			first = nil
		}
		if first == nil {
			first = u
		}
		current = append(current, u.tokens...)
	}
	if first != nil {
		emit()
	}
	return chunks
}

func buildUnits(nodes []commonModels.StructuralNode) []unit {
	var units []unit
	paragraph := 0
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		switch n.Kind {
		case commonModels.NodeHeading:
			tokens := Tokens(n.Text)
			if len(tokens) == 0 {
				continue
			}
			path := append(append([]string(nil), n.Path...), n.Text)
			units = append(units, unit{tokens: tokens, path: path, paragraph: paragraph + 1, page: n.Page, heading: true})

		case commonModels.NodeTableCell:
			// cells of one row travel together so a row is never split across chunks unless it alone is oversized
			var tokens []string
			j := i
			for ; j < len(nodes) && sameRow(n, nodes[j]); j++ {
				tokens = append(tokens, Tokens(nodes[j].Text)...)
			}
			i = j - 1
			if len(tokens) == 0 {
				continue
			}
			paragraph++
			units = append(units, unit{tokens: tokens, path: n.Path, paragraph: paragraph, page: n.Page})

		default:
			tokens := Tokens(n.Text)
			if len(tokens) == 0 {
				continue
			}
			paragraph++
			units = append(units, unit{tokens: tokens, path: n.Path, paragraph: paragraph, page: n.Page})
		}
	}
	return units
}

func sameRow(a, b commonModels.StructuralNode) bool {
	return b.Kind == commonModels.NodeTableCell && a.Row == b.Row && a.Page == b.Page
}

// splitOversized cuts any unit longer than max into max sized runs at whitespace. Each run of a
// body unit takes its own paragraph number and later units move up accordingly.
func splitOversized(units []unit, max int) []unit {
	out := make([]unit, 0, len(units))
	shift := 0
	for _, u := range units {
		u.paragraph += shift
		if len(u.tokens) <= max {
			out = append(out, u)
			continue
		}
		pieces := 0
		for start := 0; start < len(u.tokens); start += max {
			end := min(start+max, len(u.tokens))
			piece := u
			piece.tokens = u.tokens[start:end]
			if !u.heading {
				piece.paragraph = u.paragraph + pieces
			}
			pieces++
			out = append(out, piece)
		}
		if !u.heading {
			shift += pieces - 1
		}
	}
	return out
}
