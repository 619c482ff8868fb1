package pdfadapter

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cardenuto-lab/pdffigures/geometry"
)

// xobjectImageResolver resolves a content stream's /Do operand (a resource
// name) to the already-decoded raster bytes of the image XObject it names.
// This is the missing capability pdfcpu's object-level API does not supply
// directly: a page's painted image blocks in page-space coordinates,
// modeled on the CTM-tracking content stream processor in unidoc/unipdf's
// extractor/image.go.
type xobjectImageResolver interface {
	ResolveXObjectImage(name string) (data []byte, width, height int, ok bool)
}

// walkContentStream tracks q/Q/cm graphics state and collects one
// LayoutBlock per Do operator that resolves to an image XObject. Each image
// XObject occupies the unit square in image space; its page-space bbox is
// the CTM-transformed unit square in effect at the Do operator.
func walkContentStream(content []byte, resolver xobjectImageResolver) []LayoutBlock {
	toks := tokenizeContentStream(content)

	var blocks []LayoutBlock
	stack := []matrix{identityMatrix()}
	ctm := identityMatrix()
	var operands []string

	flushOperands := func() { operands = operands[:0] }

	for _, tok := range toks {
		switch tok {
		case "q":
			stack = append(stack, ctm)
			flushOperands()
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
			flushOperands()
		case "cm":
			if len(operands) >= 6 {
				nums := operands[len(operands)-6:]
				vals := make([]float64, 6)
				ok := true
				for i, s := range nums {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil {
						ok = false
						break
					}
					vals[i] = v
				}
				if ok {
					m := matrix{a: vals[0], b: vals[1], c: vals[2], d: vals[3], e: vals[4], f: vals[5]}
					ctm = m.concat(ctm)
				}
			}
			flushOperands()
		case "Do":
			if len(operands) >= 1 {
				name := strings.TrimPrefix(operands[len(operands)-1], "/")
				if data, w, h, ok := resolver.ResolveXObjectImage(name); ok {
					blocks = append(blocks, LayoutBlock{
						BBox:          unitSquareBBox(ctm),
						RawImageBytes: data,
						Width:         w,
						Height:        h,
					})
				}
			}
			flushOperands()
		case "BI", "ID", "EI":
			// Inline images are not resolved by name; only XObject image
			// blocks feed the correlation step, so inline images are
			// skipped here rather than partially supported.
			flushOperands()
		default:
			if isOperand(tok) {
				operands = append(operands, tok)
			} else {
				// Unknown/unsupported operator: operands so far belonged to
				// it, discard them.
				flushOperands()
			}
		}
	}

	return blocks
}

// unitSquareBBox returns the bounding box of the unit square [0,1]x[0,1]
// transformed by m, i.e. the page-space rectangle an image XObject paints
// into under the current transformation matrix.
func unitSquareBBox(m matrix) geometry.Rect {
	x0, y0 := m.transform(0, 0)
	x1, y1 := m.transform(1, 0)
	x2, y2 := m.transform(0, 1)
	x3, y3 := m.transform(1, 1)
	minX := min4(x0, x1, x2, x3)
	maxX := max4(x0, x1, x2, x3)
	minY := min4(y0, y1, y2, y3)
	maxY := max4(y0, y1, y2, y3)
	return geometry.NewRect(minX, minY, maxX, maxY)
}

func min4(a, b, c, d float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	if d < m {
		m = d
	}
	return m
}

func max4(a, b, c, d float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}

// isOperand reports whether tok looks like a numeric or name operand
// rather than an operator keyword.
func isOperand(tok string) bool {
	if tok == "" {
		return false
	}
	if strings.HasPrefix(tok, "/") {
		return true
	}
	r := rune(tok[0])
	return unicode.IsDigit(r) || r == '-' || r == '+' || r == '.'
}

// tokenizeContentStream splits a PDF content stream into whitespace- and
// delimiter-separated tokens, skipping literal strings, hex strings,
// arrays and dictionaries (none of which matter for q/Q/cm/Do tracking).
func tokenizeContentStream(content []byte) []string {
	var toks []string
	i := 0
	n := len(content)
	for i < n {
		c := content[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0:
			i++
		case c == '%':
			for i < n && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			depth := 1
			i++
			for i < n && depth > 0 {
				if content[i] == '\\' {
					i += 2
					continue
				}
				if content[i] == '(' {
					depth++
				} else if content[i] == ')' {
					depth--
				}
				i++
			}
		case c == '<' && i+1 < n && content[i+1] == '<':
			depth := 1
			i += 2
			for i < n && depth > 0 {
				if i+1 < n && content[i] == '<' && content[i+1] == '<' {
					depth++
					i += 2
					continue
				}
				if i+1 < n && content[i] == '>' && content[i+1] == '>' {
					depth--
					i += 2
					continue
				}
				i++
			}
		case c == '<':
			i++
			for i < n && content[i] != '>' {
				i++
			}
			i++
		case c == '[':
			i++
			for i < n && content[i] != ']' {
				i++
			}
			i++
		case c == '/':
			start := i
			i++
			for i < n && !isDelim(content[i]) {
				i++
			}
			toks = append(toks, string(content[start:i]))
		default:
			start := i
			for i < n && !isDelim(content[i]) {
				i++
			}
			if i > start {
				toks = append(toks, string(content[start:i]))
			} else {
				i++
			}
		}
	}
	return toks
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '/', '%':
		return true
	default:
		return false
	}
}
