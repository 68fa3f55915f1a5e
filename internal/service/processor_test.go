package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
	"docsearch/internal/llm"
	"docsearch/internal/loader"
	"docsearch/internal/router"
)

// lineLoader yields one unit per non-empty line of the file.
func lineLoader() domain.Loader {
	return loader.LoaderFunc(func(_ context.Context, path string) ([]domain.TextUnit, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var units []domain.TextUnit
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				units = append(units, domain.TextUnit{Content: line, Metadata: domain.Metadata{Position: domain.Pos(len(units))}})
			}
		}
		return units, nil
	})
}

func lineLoaders() loader.Registry {
	return loader.Registry{
		domain.KindPDF:  lineLoader(),
		domain.KindDOCX: lineLoader(),
		domain.KindCSV:  lineLoader(),
	}
}

// routedEcho answers the router prompt with route and echoes every other prompt.
func routedEcho(route string) domain.LanguageModel {
	return llm.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, router.Template[:30]) {
			return route, nil
		}
		return prompt, nil
	})
}

func newProcessor(m domain.LanguageModel) *Processor {
	return NewProcessor(analysis.MustNew(), lineLoaders(), m, Options{}, arbor.NewLogger())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ingest(t *testing.T, p *Processor, path string) {
	t.Helper()
	ok, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEmptyState(t *testing.T) {
	var calls atomic.Int32
	p := newProcessor(llm.Func(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "pdf", nil
	}))

	res := p.Query(context.Background(), "anything?")

	assert.False(t, res.Success)
	assert.Equal(t, domain.NotInitializedMessage, res.Error)
	assert.Equal(t, map[domain.Kind]int{domain.KindPDF: 0, domain.KindDOCX: 0, domain.KindCSV: 0}, p.DocumentCounts())
	assert.Equal(t, 0, p.TotalCount())
	assert.False(t, p.HasDocuments())
	assert.Zero(t, calls.Load())
}

func TestAliceBobTabularScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", "name,age,role\nAlice,30,Engineer\nBob,25,Designer\n")
	p := NewProcessor(analysis.MustNew(), loader.NewRegistry(loader.Options{SentencesPerChunk: 5, OverlapSentences: 1}),
		routedEcho("csv"), Options{}, arbor.NewLogger())

	ingest(t, p, path)
	res := p.Query(context.Background(), "Who is 30 years old?")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.KindCSV, res.Kind)
	assert.Equal(t, "Who is 30 years old?", res.Question)
	assert.Contains(t, res.Answer, "Context: name: Alice\nage: 30\nrole: Engineer\n\nname: Bob")
	assert.Equal(t, 1, p.DocumentCounts()[domain.KindCSV])
	assert.Equal(t, 2, p.UnitCounts()[domain.KindCSV])

	results, err := p.Retrieve(domain.KindCSV, "Who is 30 years old?")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "people.csv", results[0].Unit.Metadata.SourceName)
	assert.Equal(t, domain.KindCSV, results[0].Unit.Metadata.Kind)
	assert.Equal(t, 0, *results[0].Unit.Metadata.Position)
}

func TestZeroFilesScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	p := newProcessor(routedEcho("pdf"))

	counts, err := p.IngestDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, map[domain.Kind]int{domain.KindPDF: 0, domain.KindDOCX: 0, domain.KindCSV: 0}, counts)
	assert.DirExists(t, dir)
	assert.Equal(t, domain.NotInitializedMessage, p.Query(context.Background(), "q").Error)
}

func TestSequentialIngestionRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(routedEcho("csv"))

	ingest(t, p, writeFile(t, dir, "a.csv", "apples are red"))
	before, err := p.Retrieve(domain.KindCSV, "bananas")
	require.NoError(t, err)
	require.Len(t, before, 1)

	ingest(t, p, writeFile(t, dir, "b.csv", "bananas are yellow"))
	after, err := p.Retrieve(domain.KindCSV, "bananas")
	require.NoError(t, err)

	assert.Equal(t, 2, p.DocumentCounts()[domain.KindCSV])
	assert.Equal(t, 2, p.UnitCounts()[domain.KindCSV])
	require.Len(t, after, 2)
	assert.Equal(t, "bananas are yellow", after[0].Unit.Content)
	assert.Equal(t, "b.csv", after[0].Unit.Metadata.SourceName)
	assert.Equal(t, 1, after[0].Row)
}

func TestAdmissionMath(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(routedEcho("pdf"))
	for i := 0; i < 3; i++ {
		ingest(t, p, writeFile(t, dir, fmt.Sprintf("report%d.pdf", i), fmt.Sprintf("quarterly report number %d", i)))
	}
	for i := 0; i < 2; i++ {
		ingest(t, p, writeFile(t, dir, fmt.Sprintf("memo%d.docx", i), fmt.Sprintf("internal memo number %d", i)))
	}

	const maxDocuments = 5
	assert.Equal(t, 5, p.TotalCount())
	assert.Equal(t, map[domain.Kind]int{domain.KindPDF: 3, domain.KindDOCX: 2, domain.KindCSV: 0}, p.DocumentCounts())
	assert.False(t, p.TotalCount()+1 <= maxDocuments, "one more file must be rejected")
	assert.True(t, p.HasDocuments())
}

func TestUnsupportedKind(t *testing.T) {
	p := newProcessor(routedEcho("pdf"))
	path := writeFile(t, t.TempDir(), "notes.txt", "plain text")

	ok, err := p.IngestFile(context.Background(), path)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
	var uk *domain.UnsupportedKindError
	require.True(t, errors.As(err, &uk))
	assert.Equal(t, "txt", uk.Ext)
	assert.Equal(t, 0, p.TotalCount())
}

func TestLoadFailureLeavesCorpusUnchanged(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(routedEcho("csv"))
	ingest(t, p, writeFile(t, dir, "good.csv", "revenue grew"))

	tests := []struct {
		name string
		path string
	}{
		{"zero units", writeFile(t, dir, "empty.csv", "\n\n")},
		{"loader error", filepath.Join(dir, "missing.csv")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := p.IngestFile(context.Background(), tt.path)

			assert.False(t, ok)
			assert.ErrorIs(t, err, domain.ErrLoad)
			var le *domain.LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, domain.KindCSV, le.Kind)
		})
	}

	assert.Equal(t, 1, p.DocumentCounts()[domain.KindCSV])
	assert.Equal(t, 1, p.UnitCounts()[domain.KindCSV])
}

func TestFailedFirstFileCreatesNoPipeline(t *testing.T) {
	p := newProcessor(routedEcho("csv"))
	ok, err := p.IngestFile(context.Background(), writeFile(t, t.TempDir(), "stop.csv", "the and of"))

	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, domain.NotInitializedMessage, p.Query(context.Background(), "q").Error)
	_, err = p.Retrieve(domain.KindCSV, "q")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestFallbackSafety(t *testing.T) {
	dir := t.TempDir()
	for _, route := range []string{"pdf", "csv", "spreadsheet", "", "PDF."} {
		t.Run(route, func(t *testing.T) {
			p := newProcessor(routedEcho(route))
			ingest(t, p, writeFile(t, dir, "memo.docx", "the office moves in june"))

			res := p.Query(context.Background(), "When does the office move?")

			require.True(t, res.Success)
			assert.Equal(t, domain.KindDOCX, res.Kind)
		})
	}
}

func TestFallbackUsesFixedKindOrder(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(routedEcho("nonsense"))
	ingest(t, p, writeFile(t, dir, "data.csv", "rows of data"))
	ingest(t, p, writeFile(t, dir, "memo.docx", "memo text"))

	res := p.Query(context.Background(), "q")

	require.True(t, res.Success)
	assert.Equal(t, domain.KindDOCX, res.Kind)
}

func TestRouterModelErrorFallsBack(t *testing.T) {
	p := newProcessor(llm.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, router.Template[:30]) {
			return "", errors.New("rate limited")
		}
		return "fine", nil
	}))
	ingest(t, p, writeFile(t, t.TempDir(), "data.csv", "rows of data"))

	res := p.Query(context.Background(), "q")

	require.True(t, res.Success)
	assert.Equal(t, domain.KindCSV, res.Kind)
	assert.Equal(t, "fine", res.Answer)
}

func TestModelErrorBecomesStructuredFailure(t *testing.T) {
	p := newProcessor(llm.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, router.Template[:30]) {
			return "csv", nil
		}
		return "", &domain.ModelError{Provider: "test", Err: errors.New("upstream unavailable")}
	}))
	ingest(t, p, writeFile(t, t.TempDir(), "data.csv", "rows of data"))

	res := p.Query(context.Background(), "q")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "upstream unavailable")
	assert.Equal(t, domain.KindCSV, res.Kind)
}

func TestPanicBecomesStructuredFailure(t *testing.T) {
	p := newProcessor(llm.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, router.Template[:30]) {
			return "csv", nil
		}
		panic("model exploded")
	}))
	ingest(t, p, writeFile(t, t.TempDir(), "data.csv", "rows of data"))

	res := p.Query(context.Background(), "q")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "model exploded")
}

func TestQueryDeterminism(t *testing.T) {
	dir := t.TempDir()
	content := "alpha beta\nbeta gamma\ngamma delta\ndelta alpha"
	p1 := newProcessor(routedEcho("csv"))
	p2 := newProcessor(routedEcho("csv"))
	ingest(t, p1, writeFile(t, dir, "x.csv", content))
	ingest(t, p2, filepath.Join(dir, "x.csv"))

	a := p1.Query(context.Background(), "beta delta")
	b := p1.Query(context.Background(), "beta delta")
	c := p2.Query(context.Background(), "beta delta")

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestOrderInvarianceAcrossKinds(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "manual.pdf", "press the red button\nwait for the green light")
	csv := writeFile(t, dir, "sales.csv", "north sold 10 units\nsouth sold 12 units")

	p1 := newProcessor(routedEcho("csv"))
	ingest(t, p1, pdf)
	ingest(t, p1, csv)
	p2 := newProcessor(routedEcho("csv"))
	ingest(t, p2, csv)
	ingest(t, p2, pdf)

	for _, kind := range []domain.Kind{domain.KindPDF, domain.KindCSV} {
		r1, err := p1.Retrieve(kind, "red button sold")
		require.NoError(t, err)
		r2, err := p2.Retrieve(kind, "red button sold")
		require.NoError(t, err)
		assert.Equal(t, r1, r2, kind)
	}
	assert.Equal(t, p1.Query(context.Background(), "who sold units?"), p2.Query(context.Background(), "who sold units?"))
}

func TestOrderInvarianceWithinKind(t *testing.T) {
	files := map[string]string{
		"a.csv": "north sold 10 units\nnorth returned 2 units",
		"b.csv": "south sold 12 units",
		"c.csv": "east sold 7 units\nwest sold nothing",
	}
	batched, whole, late := t.TempDir(), t.TempDir(), t.TempDir()
	for name, content := range files {
		writeFile(t, whole, name, content)
		if name == "c.csv" {
			writeFile(t, late, name, content)
		} else {
			writeFile(t, batched, name, content)
		}
	}

	// {a, b} then {c}
	p1 := newProcessor(routedEcho("csv"))
	_, err := p1.IngestDirectory(context.Background(), batched)
	require.NoError(t, err)
	ingest(t, p1, filepath.Join(late, "c.csv"))

	// {a, b, c}
	p2 := newProcessor(routedEcho("csv"))
	_, err = p2.IngestDirectory(context.Background(), whole)
	require.NoError(t, err)

	assert.Equal(t, p2.DocumentCounts(), p1.DocumentCounts())
	assert.Equal(t, p2.UnitCounts(), p1.UnitCounts())
	for _, q := range []string{"north units", "who sold nothing", "south", "returned"} {
		r1, err := p1.Retrieve(domain.KindCSV, q)
		require.NoError(t, err)
		r2, err := p2.Retrieve(domain.KindCSV, q)
		require.NoError(t, err)
		assert.Equal(t, r2, r1, q)
	}
	assert.Equal(t, p2.Query(context.Background(), "who sold units?"), p1.Query(context.Background(), "who sold units?"))
}

func TestIngestFileWithoutRegisteredLoader(t *testing.T) {
	p := NewProcessor(analysis.MustNew(), loader.Registry{domain.KindCSV: lineLoader()}, routedEcho("csv"), Options{}, arbor.NewLogger())
	path := writeFile(t, t.TempDir(), "notes.docx", "some words")

	ok, err := p.IngestFile(context.Background(), path)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
	assert.False(t, p.HasDocuments())
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "second file row")
	writeFile(t, dir, "a.csv", "first file row")
	writeFile(t, dir, "c.pdf", "a page of text")
	writeFile(t, dir, "empty.docx", "")
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))
	p := newProcessor(routedEcho("csv"))

	counts, err := p.IngestDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, map[domain.Kind]int{domain.KindPDF: 1, domain.KindDOCX: 0, domain.KindCSV: 2}, counts)
	assert.Equal(t, counts, p.DocumentCounts())

	results, err := p.Retrieve(domain.KindCSV, "first")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a.csv", results[0].Unit.Metadata.SourceName)
	assert.Equal(t, 0, results[0].Row)
}

func TestIngestDirectoryCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "row")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	counts, err := newProcessor(routedEcho("csv")).IngestDirectory(ctx, dir)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, counts[domain.KindCSV])
}

func TestConcurrentQueriesDuringIngestion(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(routedEcho("csv"))
	ingest(t, p, writeFile(t, dir, "seed.csv", "seed row"))
	paths := make([]string, 10)
	for i := range paths {
		paths[i] = writeFile(t, dir, fmt.Sprintf("f%02d.csv", i), fmt.Sprintf("row %d of data", i))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var failures atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if !p.Query(context.Background(), "data row").Success {
					failures.Add(1)
				}
				_ = p.DocumentCounts()
			}
		}()
	}
	for _, path := range paths {
		ingest(t, p, path)
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 11, p.TotalCount())
}

func TestDigest(t *testing.T) {
	p := newProcessor(routedEcho("docx"))
	ingest(t, p, writeFile(t, t.TempDir(), "memo.docx",
		"Revenue grew in the north.\nThe weather was mild.\nRevenue grew in the south."))

	digest, err := p.Digest(domain.KindDOCX)
	require.NoError(t, err)
	assert.Contains(t, digest, "Revenue grew")

	empty, err := p.Digest(domain.KindPDF)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGenerationIDs(t *testing.T) {
	a := newProcessor(llm.Echo{})
	b := newProcessor(llm.Echo{})

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
