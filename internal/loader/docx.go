package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"docsearch/internal/domain"
)

// DOCXLoader reads word/document.xml and splits the text into sentence
// windows. Each window is one unit; Position is the window index.
type DOCXLoader struct {
	chunker domain.Chunker
}

func NewDOCXLoader(c domain.Chunker) *DOCXLoader {
	return &DOCXLoader{chunker: c}
}

func (l *DOCXLoader) Load(ctx context.Context, path string) ([]domain.TextUnit, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	text, err := extractDocumentText(&reader.Reader)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var units []domain.TextUnit
	for i, chunk := range l.chunker.Chunk(text) {
		units = append(units, domain.TextUnit{
			Content:  chunk,
			Metadata: domain.Metadata{Position: domain.Pos(i)},
		})
	}
	return units, nil
}

// extractDocumentText extracts paragraph text from word/document.xml, one
// paragraph per line.
func extractDocumentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", errors.New("word/document.xml not found")
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
		Tables     []table     `xml:"tbl"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

type table struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []paragraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (p paragraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}
	var lines []string
	for _, para := range doc.Body.Paragraphs {
		if s := strings.TrimSpace(para.text()); s != "" {
			lines = append(lines, s)
		}
	}
	// Table rows become one line each, cells separated by " | ".
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var parts []string
				for _, p := range cell.Paragraphs {
					if s := strings.TrimSpace(p.text()); s != "" {
						parts = append(parts, s)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			if line := strings.TrimSpace(strings.Join(cells, " | ")); line != "" && strings.Trim(line, "| ") != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
