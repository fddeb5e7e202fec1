// Package model contains domain models passed between layers.
// JSON tags mirror the public API response bodies.
package model

// Author is a contributor attached to a book or search result.
type Author struct {
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
	Bio  string `json:"bio,omitempty"`
}

// Series is a detected series membership.
type Series struct {
	Name  string `json:"name"`
	Order *int   `json:"order,omitempty"`
}

// GoogleCoverLinks are the Google Books image links, upgraded to https.
type GoogleCoverLinks struct {
	Thumbnail      string `json:"thumbnail,omitempty"`
	SmallThumbnail string `json:"smallThumbnail,omitempty"`
	Small          string `json:"small,omitempty"`
	Medium         string `json:"medium,omitempty"`
	Large          string `json:"large,omitempty"`
	ExtraLarge     string `json:"extraLarge,omitempty"`
}

// First returns the first list-sized cover in preference order.
func (g GoogleCoverLinks) First() string {
	for _, u := range []string{g.Thumbnail, g.SmallThumbnail, g.Small, g.Medium} {
		if u != "" {
			return u
		}
	}
	return ""
}

// OpenLibraryCoverLinks are the ISBN based cover URLs.
type OpenLibraryCoverLinks struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// Dimensions of a physical edition as reported by Google Books.
type Dimensions struct {
	Height    string `json:"height,omitempty"`
	Width     string `json:"width,omitempty"`
	Thickness string `json:"thickness,omitempty"`
}

// Price is a monetary amount.
type Price struct {
	Amount       *float64 `json:"amount,omitempty"`
	CurrencyCode string   `json:"currencyCode,omitempty"`
}

// SaleInfo mirrors the Google Books saleInfo block.
type SaleInfo struct {
	Country     string `json:"country,omitempty"`
	Saleability string `json:"saleability,omitempty"`
	IsEbook     bool   `json:"isEbook"`
	BuyLink     string `json:"buyLink,omitempty"`
	ListPrice   *Price `json:"listPrice,omitempty"`
	RetailPrice *Price `json:"retailPrice,omitempty"`
}

// AccessInfo mirrors the Google Books accessInfo block.
type AccessInfo struct {
	Country       string         `json:"country,omitempty"`
	Viewability   string         `json:"viewability,omitempty"`
	PDF           map[string]any `json:"pdf,omitempty"`
	EPUB          map[string]any `json:"epub,omitempty"`
	WebReaderLink string         `json:"webReaderLink,omitempty"`
}

// Data source names reported in MergedBook.DataSources.
const (
	SourceGoogleBooks       = "google_books"
	SourceOpenLibrary       = "open_library"
	SourceLibraryOfCongress = "library_of_congress"
)

// MergedBook is the full record served by the book lookup endpoints.
type MergedBook struct {
	Title                 string                 `json:"title"`
	Subtitle              string                 `json:"subtitle,omitempty"`
	Authors               []Author               `json:"authors"`
	ISBN13                string                 `json:"isbn_13,omitempty"`
	ISBN10                string                 `json:"isbn_10,omitempty"`
	GoogleBookID          string                 `json:"google_book_id,omitempty"`
	Description           string                 `json:"description,omitempty"`
	Publisher             string                 `json:"publisher,omitempty"`
	PublishedDate         string                 `json:"published_date,omitempty"`
	PageCount             *int                   `json:"page_count,omitempty"`
	AverageRating         *float64               `json:"average_rating,omitempty"`
	RatingsCount          *int                   `json:"ratings_count,omitempty"`
	Dimensions            *Dimensions            `json:"dimensions,omitempty"`
	SaleInfo              *SaleInfo              `json:"sale_info,omitempty"`
	AccessInfo            *AccessInfo            `json:"access_info,omitempty"`
	GoogleCoverLinks      *GoogleCoverLinks      `json:"google_cover_links,omitempty"`
	OpenLibraryID         string                 `json:"open_library_id,omitempty"`
	Subjects              []string               `json:"subjects"`
	OpenLibraryCoverLinks *OpenLibraryCoverLinks `json:"open_library_cover_links,omitempty"`
	CoverURL              string                 `json:"cover_url,omitempty"`
	Series                *Series                `json:"series,omitempty"`
	FormatTag             string                 `json:"format_tag,omitempty"`
	RelatedISBNs          []string               `json:"related_isbns"`
	ContentFlag           string                 `json:"content_flag,omitempty"`
	LCCN                  []string               `json:"lccn"`
	CallNumber            string                 `json:"call_number,omitempty"`
	LOCURL                string                 `json:"loc_url,omitempty"`
	DataSource            string                 `json:"data_source"`
	DataSources           []string               `json:"data_sources"`
}

// SearchResult is a compact record used by search, new releases and author pages.
type SearchResult struct {
	Title             string   `json:"title"`
	Subtitle          string   `json:"subtitle,omitempty"`
	Authors           []Author `json:"authors"`
	ISBN13            string   `json:"isbn_13,omitempty"`
	ISBN10            string   `json:"isbn_10,omitempty"`
	Publisher         string   `json:"publisher,omitempty"`
	PublishedDate     string   `json:"published_date,omitempty"`
	AverageRating     *float64 `json:"average_rating,omitempty"`
	RatingsCount      *int     `json:"ratings_count,omitempty"`
	Categories        []string `json:"categories"`
	GoogleBookID      string   `json:"google_book_id,omitempty"`
	OpenLibraryWorkID string   `json:"open_library_work_id,omitempty"`
	CoverURL          string   `json:"cover_url,omitempty"`
	Series            *Series  `json:"series,omitempty"`
	FormatTag         string   `json:"format_tag,omitempty"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query    string         `json:"query"`
	Subject  string         `json:"subject,omitempty"`
	NumFound int            `json:"num_found"`
	Results  []SearchResult `json:"results"`
}

// NewReleasesResponse is the body of GET /new-releases.
type NewReleasesResponse struct {
	Subject  string         `json:"subject,omitempty"`
	NumFound int            `json:"num_found"`
	Results  []SearchResult `json:"results"`
}

// Author profile sources.
const (
	ProfileOpenLibrary = "open_library"
	ProfileGoogleBooks = "google_books"
)

// AuthorProfile is the body of GET /author/{id}.
type AuthorProfile struct {
	Key       string         `json:"key"`
	Name      string         `json:"name"`
	Bio       string         `json:"bio,omitempty"`
	BirthDate string         `json:"birth_date,omitempty"`
	DeathDate string         `json:"death_date,omitempty"`
	PhotoURL  string         `json:"photo_url,omitempty"`
	Books     []SearchResult `json:"books"`
	Source    string         `json:"source"`
}

// WorkEdition is one edition of an Open Library work.
type WorkEdition struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	PublishDate string   `json:"publish_date,omitempty"`
	ISBN13      []string `json:"isbn_13"`
	ISBN10      []string `json:"isbn_10"`
}

// WorkEditions is the body of GET /work/{key}.
type WorkEditions struct {
	Key     string        `json:"key"`
	Size    int           `json:"size"`
	Entries []WorkEdition `json:"entries"`
}
