// Package pdftest writes small text-only PDFs for tests: Helvetica body text, Helvetica-Bold
// headings, one content stream per page and a classic xref table.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	HeadingSize = 18
	BodySize    = 11

	pageTop      = 740
	leftMargin   = 72
	lineSpacing  = 1.3
	paragraphGap = 10
	wrapColumn   = 70
	glyphWidth   = 556
)

// Block is one heading line or one body paragraph.
type Block struct {
	Text    string
	Heading bool
}

type Page []Block

func Heading(text string) Block   { return Block{Text: text, Heading: true} }
func Paragraph(text string) Block { return Block{Text: text} }

// Build lays the pages out top to bottom and returns the file bytes.
func Build(pages ...Page) []byte {
	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("<< /Type /Catalog /Pages 2 0 R >>")
	pagesObj := add("") // filled once the kids are known
	regular := add(font("Helvetica"))
	bold := add(font("Helvetica-Bold"))

	var kids []string
	for _, p := range pages {
		stream := content(p)
		contentObj := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
		pageObj := add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R /F2 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObj, regular, bold, contentObj))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
	}
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return buf.Bytes()
}

func font(base string) string {
	widths := strings.TrimSpace(strings.Repeat(fmt.Sprintf("%d ", glyphWidth), 126-32+1))
	return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>", base, widths)
}

func content(p Page) string {
	var sb strings.Builder
	y := float64(pageTop)
	for _, block := range p {
		fontName, size := "F1", float64(BodySize)
		lines := wrap(block.Text, wrapColumn)
		if block.Heading {
			fontName, size = "F2", HeadingSize
			lines = []string{block.Text}
		}
		for _, line := range lines {
			fmt.Fprintf(&sb, "BT /%s %g Tf 1 0 0 1 %d %g Tm (%s) Tj ET\n", fontName, size, leftMargin, y, escape(line))
			y -= size * lineSpacing
		}
		y -= paragraphGap
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func wrap(text string, column int) []string {
	var lines []string
	var current string
	for _, word := range strings.Fields(text) {
		if current != "" && len(current)+1+len(word) > column {
			lines = append(lines, current)
			current = ""
		}
		if current != "" {
			current += " "
		}
		current += word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
}
