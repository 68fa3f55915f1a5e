package loader

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docsearch/internal/domain"
)

// PDFLoader emits one unit per page with text; Position is the 1-based page number.
// pdfcpu decodes the page content streams and the text-showing operators are
// read from them.
type PDFLoader struct {
	conf *model.Configuration
}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{conf: model.NewDefaultConfiguration()}
}

var pageFileRe = regexp.MustCompile(`page_(\d+)\.txt$`)

func (l *PDFLoader) Load(ctx context.Context, path string) ([]domain.TextUnit, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	outDir, err := os.MkdirTemp("", "docsearch-pdf-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, l.conf); err != nil {
		return nil, fmt.Errorf("extract pdf content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	pageTexts := make(map[int]string)
	for _, file := range files {
		m := pageFileRe.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		page, _ := strconv.Atoi(m[1])
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			return nil, err
		}
		pageTexts[page] += contentText(content)
	}

	pages := make([]int, 0, len(pageTexts))
	for p := range pageTexts {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	units := make([]domain.TextUnit, 0, pdfCtx.PageCount)
	for _, p := range pages {
		text := strings.TrimSpace(pageTexts[p])
		if text == "" {
			continue
		}
		units = append(units, domain.TextUnit{
			Content:  text,
			Metadata: domain.Metadata{Position: domain.Pos(p)},
		})
	}
	return units, nil
}

// wordGap is the TJ offset, in thousandths of an em, below which a gap
// between two strings is read as a word space.
const wordGap = -200

// contentText pulls the strings shown by Tj, TJ, ' and " out of a decoded
// content stream. Line-moving operators start a new line.
func contentText(stream []byte) string {
	var (
		out     strings.Builder
		pending []string
		line    strings.Builder
		inArray bool
	)
	flushLine := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(s)
		}
		line.Reset()
	}
	show := func() {
		for _, s := range pending {
			line.WriteString(s)
		}
		pending = pending[:0]
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, n := readLiteral(stream[i:])
			pending = append(pending, s)
			i += n
		case c == '<':
			if i+1 < len(stream) && stream[i+1] == '<' {
				i += 2
				continue
			}
			end := bytes.IndexByte(stream[i:], '>')
			if end < 0 {
				i = len(stream)
				continue
			}
			pending = append(pending, decodeHex(stream[i+1:i+end]))
			i += end + 1
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isRegular(c) && !isDelimiter(c):
			j := i
			for j < len(stream) && isRegular(stream[j]) && !isDelimiter(stream[j]) {
				j++
			}
			switch op := string(stream[i:j]); op {
			case "Tj", "TJ":
				show()
			case "'", `"`:
				flushLine()
				show()
			case "T*", "Td", "TD", "ET":
				flushLine()
			case "Tm":
				flushLine()
			default:
				// Operands (numbers, names) are kept until the next operator.
				// Inside a TJ array a wide negative offset separates words.
				if v, err := strconv.ParseFloat(op, 64); err == nil {
					if inArray && v < wordGap && len(pending) > 0 {
						pending = append(pending, " ")
					}
				} else if !strings.HasPrefix(op, "/") {
					pending = pending[:0]
				}
			}
			i = j
		default:
			i++
		}
	}
	flushLine()
	return out.String()
}

// readLiteral decodes a balanced (...) string starting at b[0] and returns the
// text and the number of bytes consumed.
func readLiteral(b []byte) (string, int) {
	var out strings.Builder
	depth := 0
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch c {
		case '\\':
			if i+1 >= len(b) {
				return out.String(), len(b)
			}
			i++
			switch e := b[i]; e {
			case 'n':
				out.WriteByte('\n')
			case 'r', 't':
				out.WriteByte(' ')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(string(b[i:j]), 8, 8)
					writePrintable(&out, byte(v))
					i = j - 1
				} else {
					out.WriteByte(e)
				}
			}
		case '(':
			if depth > 0 {
				out.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out.String(), i + 1
			}
			out.WriteByte(c)
		default:
			writePrintable(&out, c)
		}
	}
	return out.String(), len(b)
}

func decodeHex(b []byte) string {
	clean := bytes.Map(func(r rune) rune {
		if strings.ContainsRune(" \t\r\n", r) {
			return -1
		}
		return r
	}, b)
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	raw := make([]byte, hex.DecodedLen(len(clean)))
	if _, err := hex.Decode(raw, clean); err != nil {
		return ""
	}
	var out strings.Builder
	for _, c := range raw {
		writePrintable(&out, c)
	}
	return out.String()
}

func writePrintable(b *strings.Builder, c byte) {
	switch {
	case c >= 0x20 && c < 0x7f:
		b.WriteByte(c)
	case c >= 0xa0:
		// Latin-1 range of WinAnsi/PDFDoc encodings
		b.WriteRune(rune(c))
	}
}

func isRegular(c byte) bool {
	return c > ' ' && c < 0x7f
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}
