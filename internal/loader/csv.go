package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"docsearch/internal/domain"
)

// CSVLoader emits one unit per data row, rendered as "header: value" lines.
type CSVLoader struct{}

func NewCSVLoader() *CSVLoader { return &CSVLoader{} }

func (l *CSVLoader) Load(ctx context.Context, path string) ([]domain.TextUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.parse(ctx, f)
}

func (l *CSVLoader) parse(ctx context.Context, r io.Reader) ([]domain.TextUnit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty csv file")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var units []domain.TextUnit
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		content := renderRow(header, record)
		if content == "" {
			continue
		}
		units = append(units, domain.TextUnit{
			Content:  content,
			Metadata: domain.Metadata{Position: domain.Pos(row)},
		})
	}
	return units, nil
}

func renderRow(header, record []string) string {
	var b strings.Builder
	blank := true
	for i, v := range record {
		v = strings.TrimSpace(v)
		if v != "" {
			blank = false
		}
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(header) && header[i] != "" {
			name = header[i]
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(v)
	}
	if blank {
		return ""
	}
	return b.String()
}
