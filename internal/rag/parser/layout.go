package parser

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/dslipak/pdf"
)

const (
	headingSizeRatio   = 1.15
	maxHeadingRunes    = 120
	maxHeadingLevels   = 3
	tableGapFactor     = 2.0
	wordGapFactor      = 0.15
	paragraphGapFactor = 1.6
	indentFactor       = 1.0
	minTableCells      = 3
)

var (
	pageNumberLine = regexp.MustCompile(`(?i)^(page\s*)?\d{1,4}(\s*(of|/)\s*\d{1,4})?$`)
	bulletLine     = regexp.MustCompile(`^(\x{2022}|\x{25CF}|\x{25AA}|-|\*|\(?[a-zA-Z0-9]{1,3}[.)])\s+`)
)

// textLine is one visual line rebuilt from glyph runs.
type textLine struct {
	Page   int
	X      float64
	Y      float64
	Size   float64
	Bold   bool
	Text   string
	Cells  []string
	Glyphs int
}

func (l textLine) isTableRow() bool {
	return len(l.Cells) >= minTableCells
}

// buildLines groups glyph runs of one page into lines, top to bottom.
func buildLines(page int, texts []pdf.Text) []textLine {
	runs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		runs = append(runs, t)
	}
	if len(runs) == 0 {
		return nil
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if math.Abs(runs[i].Y-runs[j].Y) > lineTolerance(runs[i], runs[j]) {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var lines []textLine
	var current []pdf.Text
	for _, r := range runs {
		if len(current) > 0 && math.Abs(current[0].Y-r.Y) > lineTolerance(current[0], r) {
			lines = appendLine(lines, page, current)
			current = current[:0:0]
		}
		current = append(current, r)
	}
	return appendLine(lines, page, current)
}

func lineTolerance(a, b pdf.Text) float64 {
	return math.Max(1, 0.3*math.Max(a.FontSize, b.FontSize))
}

func appendLine(lines []textLine, page int, runs []pdf.Text) []textLine {
	if len(runs) == 0 {
		return lines
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	size := dominantSize(runs)
	var cells []string
	var cell strings.Builder
	bold := true
	glyphs := 0
	for i, r := range runs {
		glyphs += utf8.RuneCountInString(r.S)
		if !strings.Contains(strings.ToLower(r.Font), "bold") && strings.TrimSpace(r.S) != "" {
			bold = false
		}
		if i > 0 {
			prev := runs[i-1]
			gap := r.X - (prev.X + prev.W)
			switch {
			case gap > tableGapFactor*size:
				cells = append(cells, cell.String())
				cell.Reset()
			case gap > wordGapFactor*size && !strings.HasSuffix(cell.String(), " ") && !strings.HasPrefix(r.S, " "):
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(r.S)
	}
	cells = append(cells, cell.String())

	cleaned := cells[:0]
	for _, c := range cells {
		if c = normalizeSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return lines
	}
	text := strings.Join(cleaned, " ")
	if pageNumberLine.MatchString(text) {
		return lines
	}

	return append(lines, textLine{
		Page:   page,
		X:      runs[0].X,
		Y:      runs[0].Y,
		Size:   size,
		Bold:   bold,
		Text:   text,
		Cells:  cleaned,
		Glyphs: glyphs,
	})
}

func dominantSize(runs []pdf.Text) float64 {
	counts := make(map[float64]int)
	for _, r := range runs {
		counts[roundSize(r.FontSize)] += utf8.RuneCountInString(r.S)
	}
	return modeSize(counts)
}

func roundSize(s float64) float64 {
	return math.Round(s*2) / 2
}

// modeSize picks the most frequent size; ties go to the smaller size.
func modeSize(counts map[float64]int) float64 {
	best, bestCount := 0.0, -1
	for size, n := range counts {
		if n > bestCount || (n == bestCount && size < best) {
			best, bestCount = size, n
		}
	}
	return best
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// classifier turns lines into structural nodes using font size, indentation and whitespace runs.
type classifier struct {
	bodySize     float64
	headingLevel map[float64]int
	boldLevel    int
}

func newClassifier(lines []textLine) classifier {
	counts := make(map[float64]int)
	for _, l := range lines {
		counts[l.Size] += l.Glyphs
	}
	c := classifier{bodySize: modeSize(counts), headingLevel: make(map[float64]int)}

	var sizes []float64
	for size := range counts {
		if c.bodySize > 0 && size >= c.bodySize*headingSizeRatio {
			sizes = append(sizes, size)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))
	for i, size := range sizes {
		c.headingLevel[size] = min(i+1, maxHeadingLevels)
	}
	c.boldLevel = min(len(sizes)+1, maxHeadingLevels)
	return c
}

func (c classifier) headingLevelOf(l textLine) int {
	if l.isTableRow() || !looksLikeHeading(l.Text) {
		return 0
	}
	if level, ok := c.headingLevel[l.Size]; ok {
		return level
	}
	if l.Bold && l.Size >= c.bodySize && utf8.RuneCountInString(l.Text) <= maxHeadingRunes/2 {
		return c.boldLevel
	}
	return 0
}

func looksLikeHeading(text string) bool {
	if utf8.RuneCountInString(text) > maxHeadingRunes {
		return false
	}
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, ",") || strings.HasSuffix(text, ";") {
		return false
	}
	return strings.IndexFunc(text, unicode.IsLetter) >= 0
}

type nodeBuilder struct {
	c     classifier
	nodes []commonModels.StructuralNode
	path  []string

	para     []string
	paraPage int
	paraLeft float64
	prev     *textLine
	prevKind commonModels.NodeKind

	tableRow int
}

// classifyLines walks every line of the document in reading order.
func classifyLines(lines []textLine) []commonModels.StructuralNode {
	b := &nodeBuilder{c: newClassifier(lines)}
	margins := leftMargins(lines)
	for i := range lines {
		b.add(lines[i], margins[lines[i].Page])
	}
	b.flushParagraph()
	return b.nodes
}

func leftMargins(lines []textLine) map[int]float64 {
	margins := make(map[int]float64)
	for _, l := range lines {
		if m, ok := margins[l.Page]; !ok || l.X < m {
			margins[l.Page] = l.X
		}
	}
	return margins
}

func (b *nodeBuilder) add(l textLine, margin float64) {
	defer func() { b.prev = &l }()

	if level := b.c.headingLevelOf(l); level > 0 {
		b.flushParagraph()
		b.tableRow = 0
		if b.prevKind == commonModels.NodeHeading && b.prev != nil && b.continuesHeading(l, level) {
			last := &b.nodes[len(b.nodes)-1]
			last.Text = last.Text + " " + l.Text
			b.path[len(b.path)-1] = last.Text
			return
		}
		if len(b.path) >= level {
			b.path = b.path[:level-1]
		}
		for len(b.path) < level-1 {
			b.path = append(b.path, "")
		}
		b.nodes = append(b.nodes, commonModels.Heading(level, l.Text, l.Page, clonePath(b.path)))
		b.path = append(b.path, l.Text)
		b.prevKind = commonModels.NodeHeading
		return
	}

	if l.isTableRow() {
		b.flushParagraph()
		if b.prevKind != commonModels.NodeTableCell || b.prev == nil || b.prev.Page != l.Page {
			b.tableRow = 0
		}
		b.tableRow++
		for col, cell := range l.Cells {
			b.nodes = append(b.nodes, commonModels.TableCell(b.tableRow, col+1, cell, l.Page, clonePath(b.path)))
		}
		b.prevKind = commonModels.NodeTableCell
		return
	}

	if len(b.para) > 0 && b.breaksParagraph(l, margin) {
		b.flushParagraph()
	}
	if len(b.para) == 0 {
		b.paraPage = l.Page
		b.paraLeft = l.X
	}
	b.para = append(b.para, l.Text)
	b.prevKind = commonModels.NodeParagraph
}

func (b *nodeBuilder) continuesHeading(l textLine, level int) bool {
	last := b.nodes[len(b.nodes)-1]
	if last.Level != level || b.prev.Page != l.Page || b.prev.Size != l.Size {
		return false
	}
	return b.prev.Y-l.Y <= paragraphGapFactor*l.Size
}

func (b *nodeBuilder) breaksParagraph(l textLine, margin float64) bool {
	if b.prev == nil || b.prev.Page != l.Page {
		return true
	}
	if b.prev.Y-l.Y > paragraphGapFactor*math.Max(b.prev.Size, l.Size) {
		return true
	}
	if l.X-margin > indentFactor*l.Size && l.X-b.paraLeft > indentFactor*l.Size/2 {
		return true
	}
	return bulletLine.MatchString(l.Text)
}

func (b *nodeBuilder) flushParagraph() {
	if len(b.para) == 0 {
		return
	}
	b.nodes = append(b.nodes, commonModels.Paragraph(strings.Join(b.para, " "), b.paraPage, clonePath(b.path)))
	b.para = nil
}

func clonePath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, 0, len(path))
	for _, p := range path {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
