package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVLoaderOneUnitPerRow(t *testing.T) {
	path := writeFile(t, "people.csv", "name,age,role\nAlice,30,Engineer\nBob,25,Designer\n")

	units, err := NewCSVLoader().Load(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "name: Alice\nage: 30\nrole: Engineer", units[0].Content)
	assert.Equal(t, "name: Bob\nage: 25\nrole: Designer", units[1].Content)
	require.NotNil(t, units[1].Metadata.Position)
	assert.Equal(t, 1, *units[1].Metadata.Position)
}

func TestCSVLoaderBOMAndExtraColumns(t *testing.T) {
	units, err := NewCSVLoader().parse(context.Background(),
		strings.NewReader("\ufeffcity, country\nParis,France,EU\n"))

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "city: Paris\ncountry: France\ncolumn_3: EU", units[0].Content)
}

func TestCSVLoaderSkipsBlankRows(t *testing.T) {
	units, err := NewCSVLoader().parse(context.Background(),
		strings.NewReader("a,b\n , \n1,2\n"))

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, 1, *units[0].Metadata.Position)
}

func TestCSVLoaderEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	_, err := NewCSVLoader().Load(context.Background(), path)

	assert.Error(t, err)
}

func TestCSVLoaderHeaderOnly(t *testing.T) {
	units, err := NewCSVLoader().parse(context.Background(), strings.NewReader("a,b\n"))

	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestCSVLoaderMissingFile(t *testing.T) {
	_, err := NewCSVLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))

	assert.Error(t, err)
}

func TestCSVLoaderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVLoader().parse(ctx, strings.NewReader("a\n1\n"))

	assert.ErrorIs(t, err, context.Canceled)
}
