package vectorstore

import "docsearch/internal/domain"

// Storage holds unit vectors and supports similarity search.
type Storage interface {
	Init(dimension int) error
	Upsert(units []domain.TextUnit, vectors [][]float64) error
	Search(vector []float64, topK int) ([]domain.SearchResult, error)
	Len() int
}
