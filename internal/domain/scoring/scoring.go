// Package scoring ranks search results by how complete their metadata is.
package scoring

import (
	"sort"

	"github.com/okian/bookfinder/internal/domain/model"
)

// Default completeness weights.
const (
	defaultCoverWeight  = 10
	defaultISBN13Weight = 5
	defaultRatingWeight = 2
	defaultDateWeight   = 1
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights overrides the completeness weights. Negative values are ignored.
func WithWeights(cover, isbn13, rating, date int) Option {
	return func(s *Scorer) {
		if cover >= 0 {
			s.cover = cover
		}
		if isbn13 >= 0 {
			s.isbn13 = isbn13
		}
		if rating >= 0 {
			s.rating = rating
		}
		if date >= 0 {
			s.date = date
		}
	}
}

// Scorer assigns a completeness score to search results. Results with a
// cover and an ISBN-13 rank above bare records.
type Scorer struct {
	cover  int
	isbn13 int
	rating int
	date   int
}

// New creates a Scorer with the default weights.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		cover:  defaultCoverWeight,
		isbn13: defaultISBN13Weight,
		rating: defaultRatingWeight,
		date:   defaultDateWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the completeness score of r.
func (s *Scorer) Score(r model.SearchResult) int {
	score := 0
	if r.CoverURL != "" {
		score += s.cover
	}
	if r.ISBN13 != "" {
		score += s.isbn13
	}
	if r.AverageRating != nil && *r.AverageRating != 0 {
		score += s.rating
	}
	if r.PublishedDate != "" {
		score += s.date
	}
	return score
}

// Rank sorts results by descending score. Ties keep their input order.
func (s *Scorer) Rank(results []model.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return s.Score(results[i]) > s.Score(results[j])
	})
}
