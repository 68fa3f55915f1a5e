package retriever

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/analysis"
	"docsearch/internal/domain"
)

func units(kind domain.Kind, contents ...string) []domain.TextUnit {
	out := make([]domain.TextUnit, len(contents))
	for i, c := range contents {
		out[i] = domain.TextUnit{
			Content:  c,
			Metadata: domain.Metadata{Kind: kind, SourceName: "test", Position: domain.Pos(i)},
		}
	}
	return out
}

func contents(res []domain.SearchResult) []string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.Unit.Content
	}
	return out
}

func TestOptionsK(t *testing.T) {
	var opts Options
	assert.Equal(t, 10, opts.K(domain.KindCSV))
	assert.Equal(t, 5, opts.K(domain.KindPDF))
	assert.Equal(t, 5, opts.K(domain.KindDOCX))

	opts.TopK = map[domain.Kind]int{domain.KindPDF: 3, domain.KindCSV: 0}
	assert.Equal(t, 3, opts.K(domain.KindPDF))
	assert.Equal(t, 10, opts.K(domain.KindCSV))
}

func TestBuildEmptyCorpus(t *testing.T) {
	_, err := Build(analysis.MustNew(), domain.KindCSV, nil, Options{})

	assert.True(t, errors.Is(err, domain.ErrEmptyCorpus))
}

func TestQueryRanksMatchingRowFirst(t *testing.T) {
	ix, err := Build(analysis.MustNew(), domain.KindCSV,
		units(domain.KindCSV, "Alice,30,Engineer", "Bob,25,Designer"), Options{})
	require.NoError(t, err)

	res, err := ix.Query("Who is 30 years old?", 0)
	require.NoError(t, err)

	require.Len(t, res, 2)
	assert.Equal(t, "Alice,30,Engineer", res[0].Unit.Content)
	assert.Greater(t, res[0].Score, res[1].Score)
	assert.Equal(t, 0, res[0].Row)
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	ix, err := Build(analysis.MustNew(), domain.KindPDF,
		units(domain.KindPDF, "apples grow", "bananas ripen", "cherries fall"), Options{})
	require.NoError(t, err)

	res, err := ix.Query("nothing relevant here", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"apples grow", "bananas ripen"}, contents(res))
}

func TestQueryIsDeterministic(t *testing.T) {
	corpus := units(domain.KindDOCX,
		"the quarterly report shows revenue growth",
		"revenue declined in the northern region",
		"staff headcount grew in march",
		"growth targets for next year",
	)
	ix, err := Build(analysis.MustNew(), domain.KindDOCX, corpus, Options{})
	require.NoError(t, err)

	first, err := ix.Query("revenue growth", 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := ix.Query("revenue growth", 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "the quarterly report shows revenue growth", first[0].Unit.Content)
}

func TestBuildSnapshotsUnits(t *testing.T) {
	corpus := units(domain.KindPDF, "alpha beta", "gamma delta")
	ix, err := Build(analysis.MustNew(), domain.KindPDF, corpus, Options{})
	require.NoError(t, err)

	corpus[0].Content = "mutated"

	res, err := ix.Query("alpha", 1)
	require.NoError(t, err)
	assert.Equal(t, "alpha beta", res[0].Unit.Content)
	assert.Equal(t, 2, ix.Len())
}

func TestBuildRespectsMaxFeatures(t *testing.T) {
	ix, err := Build(analysis.MustNew(), domain.KindPDF,
		units(domain.KindPDF, "one two three four five six"), Options{MaxFeatures: 4})
	require.NoError(t, err)

	assert.Equal(t, 4, ix.Dimension())
}
