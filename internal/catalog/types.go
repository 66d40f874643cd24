// Package catalog defines the movie data model shared by the crawl
// pipeline and the search API, together with the parse helpers for the
// stringly typed fields the source site produces.
package catalog

// Fallback values applied when a detail page is missing a field. These
// are stored verbatim, so consumers compare against them directly.
const (
	PlaceholderID   = "N/A"
	UnknownValue    = "Unknown"
	DefaultQuality  = "HD"
	DefaultOverview = "No description available"
)

// MovieRecord is one catalog entry. All fields keep the source site's
// text representation; duration is normalized to integer minutes only
// at write time. The lower-cased JSON names for the image/link fields
// mirror the storage column names the frontend already consumes.
type MovieRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Genre         string `json:"genre"`
	Quality       string `json:"quality"`
	Rating        string `json:"rating"`
	Overview      string `json:"overview"`
	Released      string `json:"released"`
	Casts         string `json:"casts"`
	Duration      string `json:"duration"`
	Country       string `json:"country"`
	Production    string `json:"production"`
	ThumbnailURL  string `json:"thumbnailurl"`
	BackgroundURL string `json:"backgroundurl"`
	WatchLink     string `json:"watchlink"`
}

// Degraded reports whether the record carries the placeholder id, i.e.
// the internal identifier lookup failed during extraction.
func (r MovieRecord) Degraded() bool {
	return r.ID == "" || r.ID == PlaceholderID
}

// CrawlProgress is the singleton crawl checkpoint persisted across
// process restarts.
type CrawlProgress struct {
	LastProcessedIndex int64 `json:"lastProcessedIndex"`
	IsRunning          bool  `json:"isRunning"`
}

// SearchQuery carries the optional conjunctive predicates for a ranked
// catalog read. Nil pointer fields mean the predicate was not supplied.
type SearchQuery struct {
	Text        string
	Genre       string
	Quality     string
	MinRating   *float64
	ReleaseYear *int
	Limit       int
}
