package service

import (
	"errors"

	"github.com/okian/bookfinder/internal/domain/genres"
)

// Sentinel errors returned by Service operations. The HTTP layer maps them
// to status codes with errors.Is.
var (
	// ErrInvalidISBN reports an ISBN that fails the checksum.
	ErrInvalidISBN = errors.New("invalid isbn")
	// ErrInvalidLCCN reports an empty or malformed control number.
	ErrInvalidLCCN = errors.New("invalid lccn")
	// ErrInvalidWorkKey reports a work key that is not an OL…W id.
	ErrInvalidWorkKey = errors.New("invalid work key")
	// ErrMissingQuery reports a search without a query.
	ErrMissingQuery = errors.New("missing query")
	// ErrUnknownTaxonomy reports a genre taxonomy other than fiction or non-fiction.
	ErrUnknownTaxonomy = genres.ErrUnknownTaxonomy

	ErrBookNotFound   = errors.New("book not found")
	ErrAuthorNotFound = errors.New("author not found")
	ErrWorkNotFound   = errors.New("work not found")
)
