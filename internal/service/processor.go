package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
	"docsearch/internal/loader"
	"docsearch/internal/pipeline"
	"docsearch/internal/retriever"
	"docsearch/internal/router"
	"docsearch/internal/summarizer"
)

// Options tune a Processor.
type Options struct {
	Retriever retriever.Options
	// DigestSentences bounds the per-kind digest length.
	DigestSentences int
}

var errNoText = errors.New("no text extracted")

// corpus is the state owned for one kind. Every field is replaced whole so
// readers never observe a partially built value.
type corpus struct {
	units atomic.Pointer[[]domain.TextUnit]
	index atomic.Pointer[retriever.Index]
	pipe  atomic.Pointer[pipeline.Pipeline]
	files atomic.Int64
}

func (c *corpus) snapshot() []domain.TextUnit {
	if u := c.units.Load(); u != nil {
		return *u
	}
	return nil
}

// Processor owns the per-kind corpora, their indices and pipelines, and the
// router. Ingestion must be serialised by the caller; queries may run
// concurrently with ingestion.
type Processor struct {
	id         string
	analyzer   *analysis.Analyzer
	loaders    loader.Registry
	model      domain.LanguageModel
	summarizer domain.Summarizer
	opts       Options
	logger     arbor.ILogger

	corpora map[domain.Kind]*corpus
	router  atomic.Pointer[router.Router]
}

var _ domain.CorpusService = (*Processor)(nil)

func NewProcessor(a *analysis.Analyzer, loaders loader.Registry, model domain.LanguageModel, opts Options, logger arbor.ILogger) *Processor {
	corpora := make(map[domain.Kind]*corpus, len(domain.Kinds))
	for _, k := range domain.Kinds {
		corpora[k] = &corpus{}
	}
	if opts.DigestSentences <= 0 {
		opts.DigestSentences = 3
	}
	return &Processor{
		id:         uuid.NewString(),
		analyzer:   a,
		loaders:    loaders,
		model:      model,
		summarizer: summarizer.NewFrequencySummarizer(a),
		opts:       opts,
		logger:     logger,
		corpora:    corpora,
	}
}

// ID identifies this manager generation. A reinitialisation yields a new ID.
func (p *Processor) ID() string { return p.id }

// IngestFile loads path, appends its units to the kind's corpus and swaps in
// a rebuilt index. It returns an UnsupportedKindError for unknown extensions
// and false with a LoadError when the file could not be loaded or indexed.
// The corpus is left unchanged on failure.
func (p *Processor) IngestFile(ctx context.Context, path string) (bool, error) {
	kind, err := domain.KindFromPath(path)
	if err != nil {
		p.logger.Warn().Str("path", path).Msg("Skipping file with unsupported extension")
		return false, err
	}
	c := p.corpora[kind]

	units, err := p.load(ctx, kind, path)
	if err != nil {
		p.logger.Error().Err(err).Str("path", path).Str("kind", string(kind)).Msg("Failed to load file")
		return false, &domain.LoadError{Path: path, Kind: kind, Err: err}
	}

	name := filepath.Base(path)
	old := c.snapshot()
	merged := make([]domain.TextUnit, 0, len(old)+len(units))
	merged = append(merged, old...)
	for _, u := range units {
		u.Metadata.Kind = kind
		u.Metadata.SourceName = name
		merged = append(merged, u)
	}

	ix, err := retriever.Build(p.analyzer, kind, merged, p.opts.Retriever)
	if err != nil {
		p.logger.Error().Err(err).Str("path", path).Str("kind", string(kind)).Msg("Failed to rebuild index")
		return false, &domain.LoadError{Path: path, Kind: kind, Err: err}
	}

	// Index before pipeline: a reader that sees the pipeline always finds an index.
	c.units.Store(&merged)
	c.index.Store(ix)
	if c.pipe.Load() == nil {
		c.pipe.Store(pipeline.New(kind, c.index.Load, p.model))
	}
	p.ensureRouter()
	files := c.files.Add(1)

	p.logger.Info().
		Str("file", name).
		Str("kind", string(kind)).
		Int("units", len(units)).
		Int("corpus_units", len(merged)).
		Int("vocabulary", ix.Dimension()).
		Int("files", int(files)).
		Msg("File ingested")
	return true, nil
}

func (p *Processor) load(ctx context.Context, kind domain.Kind, path string) ([]domain.TextUnit, error) {
	units, err := p.loaders.Load(ctx, kind, path)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, errNoText
	}
	return units, nil
}

// IngestDirectory ingests every file of a recognised kind in dir, in name
// order, and returns the successes per kind. A missing dir is created.
func (p *Processor) IngestDirectory(ctx context.Context, dir string) (map[domain.Kind]int, error) {
	counts := make(map[domain.Kind]int, len(domain.Kinds))
	for _, k := range domain.Kinds {
		counts[k] = 0
	}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return counts, err
		}
		p.logger.Info().Str("dir", dir).Msg("Created empty document directory")
		return counts, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return counts, err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if e.IsDir() {
			continue
		}
		kind, err := domain.KindFromPath(e.Name())
		if err != nil {
			continue
		}
		if ok, _ := p.IngestFile(ctx, filepath.Join(dir, e.Name())); ok {
			counts[kind]++
		}
	}

	p.logger.Info().
		Str("dir", dir).
		Int("pdf", counts[domain.KindPDF]).
		Int("docx", counts[domain.KindDOCX]).
		Int("csv", counts[domain.KindCSV]).
		Msg("Directory ingested")
	return counts, nil
}

// Query routes question to a kind and answers it from that kind's pipeline.
// Every failure, including a panic, is reported in the result.
func (p *Processor) Query(ctx context.Context, question string) (res domain.QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("panic", fmt.Sprint(r)).Str("question", question).Msg("Query panicked")
			res = domain.QueryResult{Success: false, Error: fmt.Sprintf("query failed: %v", r), Question: question}
		}
	}()

	if !p.hasAnyPipeline() {
		return domain.QueryResult{Success: false, Error: domain.NotInitializedMessage}
	}

	kind, ok := p.ensureRouter().Route(ctx, question, p.hasPipeline)
	if !ok {
		return domain.QueryResult{Success: false, Error: domain.NotInitializedMessage}
	}

	answer, err := p.corpora[kind].pipe.Load().Answer(ctx, question)
	if err != nil {
		p.logger.Error().Err(err).Str("kind", string(kind)).Msg("Answer synthesis failed")
		return domain.QueryResult{Success: false, Error: err.Error(), Kind: kind, Question: question}
	}
	return domain.QueryResult{Success: true, Answer: answer, Kind: kind, Question: question}
}

// Retrieve returns the top units for question from kind's current index.
func (p *Processor) Retrieve(kind domain.Kind, question string) ([]domain.SearchResult, error) {
	c, ok := p.corpora[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, domain.ErrUnsupportedKind)
	}
	pipe := c.pipe.Load()
	if pipe == nil {
		return nil, fmt.Errorf("%s: %w", kind, domain.ErrNotInitialized)
	}
	return pipe.Retrieve(question)
}

func (p *Processor) ensureRouter() *router.Router {
	if r := p.router.Load(); r != nil {
		return r
	}
	p.router.CompareAndSwap(nil, router.New(p.model, p.logger))
	return p.router.Load()
}

func (p *Processor) hasPipeline(k domain.Kind) bool {
	c, ok := p.corpora[k]
	return ok && c.pipe.Load() != nil
}

func (p *Processor) hasAnyPipeline() bool {
	for _, k := range domain.Kinds {
		if p.hasPipeline(k) {
			return true
		}
	}
	return false
}

// DocumentCounts returns successfully ingested files per kind.
func (p *Processor) DocumentCounts() map[domain.Kind]int {
	out := make(map[domain.Kind]int, len(p.corpora))
	for k, c := range p.corpora {
		out[k] = int(c.files.Load())
	}
	return out
}

// TotalCount returns the number of successfully ingested files.
func (p *Processor) TotalCount() int {
	total := 0
	for _, c := range p.corpora {
		total += int(c.files.Load())
	}
	return total
}

// UnitCounts returns the number of indexed text units per kind.
func (p *Processor) UnitCounts() map[domain.Kind]int {
	out := make(map[domain.Kind]int, len(p.corpora))
	for k, c := range p.corpora {
		out[k] = len(c.snapshot())
	}
	return out
}

// HasDocuments reports whether any file has been ingested.
func (p *Processor) HasDocuments() bool {
	return p.TotalCount() > 0
}

// Digest summarises the kind's corpus in a few sentences.
func (p *Processor) Digest(kind domain.Kind) (string, error) {
	c, ok := p.corpora[kind]
	if !ok {
		return "", fmt.Errorf("%s: %w", kind, domain.ErrUnsupportedKind)
	}
	units := c.snapshot()
	if len(units) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, u := range units {
		b.WriteString(u.Content)
		b.WriteString("\n")
	}
	return p.summarizer.Summarize(b.String(), p.opts.DigestSentences)
}
