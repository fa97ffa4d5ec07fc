// Package docx reads paragraph and table text out of a .docx archive and
// writes modified text back in. Only the character data inside w:t elements
// is ever touched; every other byte of word/document.xml and every other
// archive part is carried through verbatim, so structure and formatting
// survive a round trip.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const documentPart = "word/document.xml"

// Document is a parsed .docx file.
type Document struct {
	names   []string
	parts   map[string][]byte
	docData []byte

	runs   []*Run
	paras  []*Paragraph
	tables []*Table
}

// Run is one w:t text element.
type Run struct {
	tagStart    int // offset of '<' of the opening tag
	tagEnd      int // offset just past '>' of the opening tag
	closeStart  int // offset of '<' of the closing tag (== tagEnd when self-closing)
	closeEnd    int // offset just past '>' of the closing tag
	selfClosing bool
	text        string
	dirty       bool
}

// Text returns the run's current text.
func (r *Run) Text() string { return r.text }

// SetText replaces the run's text.
func (r *Run) SetText(s string) {
	if s == r.text && !r.dirty {
		return
	}
	r.text = s
	r.dirty = true
}

// Paragraph is a w:p element; body-level paragraphs carry the text that is
// batch-translated, table-cell paragraphs are only glossary-enforced.
type Paragraph struct {
	runs []*Run
}

// Runs returns the paragraph's text runs in document order.
func (p *Paragraph) Runs() []*Run { return p.runs }

// Text concatenates the paragraph's run texts.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.runs {
		b.WriteString(r.text)
	}
	return b.String()
}

// SetText puts the whole text into the first run and clears the rest.
// Inline formatting beyond the first run's boundary is not reconstructed.
// A paragraph without runs stays empty.
func (p *Paragraph) SetText(s string) {
	if len(p.runs) == 0 {
		return
	}
	p.runs[0].SetText(s)
	for _, r := range p.runs[1:] {
		r.SetText("")
	}
}

// Table is a w:tbl element with its cells flattened in document order.
type Table struct {
	cells []*Cell
}

// Cells returns the table's cells.
func (t *Table) Cells() []*Cell { return t.cells }

// Cell is a w:tc element.
type Cell struct {
	paras []*Paragraph
}

// Paragraphs returns the cell's paragraphs.
func (c *Cell) Paragraphs() []*Paragraph { return c.paras }

// Paragraphs returns the body-level paragraphs (paragraphs inside table
// cells are reachable through Tables).
func (d *Document) Paragraphs() []*Paragraph { return d.paras }

// Tables returns all tables in the document body.
func (d *Document) Tables() []*Table { return d.tables }

// Parse opens a .docx archive held in memory.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	doc := &Document{parts: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open docx part %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read docx part %s: %w", f.Name, err)
		}
		doc.names = append(doc.names, f.Name)
		doc.parts[f.Name] = content
	}
	docData, ok := doc.parts[documentPart]
	if !ok {
		return nil, fmt.Errorf("docx has no %s", documentPart)
	}
	doc.docData = docData
	if err := doc.scan(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save serializes the document back into a .docx archive.
func (d *Document) Save() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range d.names {
		content := d.parts[name]
		if name == documentPart {
			content = d.rebuildDocumentXML()
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

// scan walks word/document.xml once, recording every w:t span together with
// the paragraph/table/cell nesting it belongs to.
func (d *Document) scan() error {
	data := d.docData
	var (
		current    *Paragraph
		tableStack []*Table
		cellStack  []*Cell
	)
	i := 0
	for i < len(data) {
		lt := bytes.IndexByte(data[i:], '<')
		if lt < 0 {
			break
		}
		start := i + lt
		end, kind := tagEnd(data, start)
		if end < 0 {
			return fmt.Errorf("malformed xml in %s at offset %d", documentPart, start)
		}
		if kind != tagElement {
			i = end
			continue
		}
		name, closing, selfClosing := tagName(data[start:end])
		switch name {
		case "w:p":
			switch {
			case selfClosing:
				// Empty paragraph; nothing to track.
				p := &Paragraph{}
				d.attachParagraph(p, tableStack, cellStack)
			case closing:
				current = nil
			default:
				p := &Paragraph{}
				d.attachParagraph(p, tableStack, cellStack)
				current = p
			}
		case "w:tbl":
			if closing {
				if len(tableStack) > 0 {
					tableStack = tableStack[:len(tableStack)-1]
				}
			} else if !selfClosing {
				t := &Table{}
				d.tables = append(d.tables, t)
				tableStack = append(tableStack, t)
			}
		case "w:tc":
			if closing {
				if len(cellStack) > 0 {
					cellStack = cellStack[:len(cellStack)-1]
				}
			} else if !selfClosing && len(tableStack) > 0 {
				c := &Cell{}
				top := tableStack[len(tableStack)-1]
				top.cells = append(top.cells, c)
				cellStack = append(cellStack, c)
			}
		case "w:t":
			if closing {
				break
			}
			run := &Run{tagStart: start, tagEnd: end, selfClosing: selfClosing}
			if selfClosing {
				run.closeStart = end
				run.closeEnd = end
			} else {
				rel := bytes.Index(data[end:], []byte("</w:t>"))
				if rel < 0 {
					return fmt.Errorf("unterminated w:t at offset %d", start)
				}
				run.closeStart = end + rel
				run.closeEnd = run.closeStart + len("</w:t>")
				run.text = decodeEntities(string(data[end:run.closeStart]))
			}
			d.runs = append(d.runs, run)
			if current != nil {
				current.runs = append(current.runs, run)
			}
			end = run.closeEnd
		}
		i = end
	}
	return nil
}

func (d *Document) attachParagraph(p *Paragraph, tables []*Table, cells []*Cell) {
	if len(tables) > 0 && len(cells) > 0 {
		cell := cells[len(cells)-1]
		cell.paras = append(cell.paras, p)
		return
	}
	d.paras = append(d.paras, p)
}

// rebuildDocumentXML splices modified run text into the original bytes.
func (d *Document) rebuildDocumentXML() []byte {
	data := d.docData
	var out bytes.Buffer
	out.Grow(len(data) + 256)
	cursor := 0
	for _, r := range d.runs {
		out.Write(data[cursor:r.tagStart])
		if !r.dirty {
			out.Write(data[r.tagStart:r.closeEnd])
			cursor = r.closeEnd
			continue
		}
		openTag := data[r.tagStart:r.tagEnd]
		if r.selfClosing {
			openTag = bytes.TrimSuffix(openTag, []byte("/>"))
		} else {
			openTag = bytes.TrimSuffix(openTag, []byte(">"))
		}
		out.Write(openTag)
		if needsSpacePreserve(r.text) && !bytes.Contains(openTag, []byte("xml:space")) {
			out.WriteString(` xml:space="preserve"`)
		}
		out.WriteByte('>')
		out.WriteString(escapeText(r.text))
		out.WriteString("</w:t>")
		cursor = r.closeEnd
	}
	out.Write(data[cursor:])
	return out.Bytes()
}

func needsSpacePreserve(s string) bool {
	return s != "" && strings.TrimSpace(s) != s
}

const (
	tagElement = iota
	tagOther // declaration, comment, processing instruction, CDATA
)

// tagEnd returns the offset just past the end of the markup starting at
// start, classifying it. Quoted attribute values may contain '>'.
func tagEnd(data []byte, start int) (int, int) {
	rest := data[start:]
	switch {
	case bytes.HasPrefix(rest, []byte("<!--")):
		if idx := bytes.Index(rest, []byte("-->")); idx >= 0 {
			return start + idx + 3, tagOther
		}
		return -1, tagOther
	case bytes.HasPrefix(rest, []byte("<![CDATA[")):
		if idx := bytes.Index(rest, []byte("]]>")); idx >= 0 {
			return start + idx + 3, tagOther
		}
		return -1, tagOther
	case bytes.HasPrefix(rest, []byte("<?")):
		if idx := bytes.Index(rest, []byte("?>")); idx >= 0 {
			return start + idx + 2, tagOther
		}
		return -1, tagOther
	case bytes.HasPrefix(rest, []byte("<!")):
		if idx := bytes.IndexByte(rest, '>'); idx >= 0 {
			return start + idx + 1, tagOther
		}
		return -1, tagOther
	}
	var quote byte
	for i := start + 1; i < len(data); i++ {
		c := data[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '>':
			return i + 1, tagElement
		}
	}
	return -1, tagElement
}

// tagName extracts the element name and whether the tag closes an element.
func tagName(tag []byte) (name string, closing, selfClosing bool) {
	inner := bytes.TrimSuffix(bytes.TrimPrefix(tag, []byte("<")), []byte(">"))
	if bytes.HasPrefix(inner, []byte("/")) {
		closing = true
		inner = inner[1:]
	}
	if bytes.HasSuffix(inner, []byte("/")) {
		selfClosing = true
		inner = inner[:len(inner)-1]
	}
	if idx := bytes.IndexAny(inner, " \t\r\n"); idx >= 0 {
		inner = inner[:idx]
	}
	return string(inner), closing, selfClosing
}

func escapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decodeEntities resolves the predefined XML entities plus numeric character
// references, which is all that can legally appear inside w:t content.
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '&' {
			b.WriteByte(s[i])
			i++
			continue
		}
		semi := strings.IndexByte(s[i:], ';')
		if semi < 0 {
			b.WriteString(s[i:])
			break
		}
		entity := s[i+1 : i+semi]
		switch {
		case entity == "amp":
			b.WriteByte('&')
		case entity == "lt":
			b.WriteByte('<')
		case entity == "gt":
			b.WriteByte('>')
		case entity == "quot":
			b.WriteByte('"')
		case entity == "apos":
			b.WriteByte('\'')
		case strings.HasPrefix(entity, "#"):
			if r, ok := parseCharRef(entity[1:]); ok {
				b.WriteRune(r)
			} else {
				b.WriteString(s[i : i+semi+1])
			}
		default:
			b.WriteString(s[i : i+semi+1])
		}
		i += semi + 1
	}
	return b.String()
}

func parseCharRef(ref string) (rune, bool) {
	base := 10
	if strings.HasPrefix(ref, "x") || strings.HasPrefix(ref, "X") {
		base = 16
		ref = ref[1:]
	}
	n, err := strconv.ParseInt(ref, base, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return rune(n), true
}
