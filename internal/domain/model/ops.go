package model

// Health statuses.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// ServiceHealth is the state of one dependency.
type ServiceHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// Healthy reports whether every dependency is ok.
func (h HealthResponse) Healthy() bool { return h.Status == StatusOK }

// CacheStats is the body of GET /cache/stats.
type CacheStats struct {
	Status     string `json:"status"`
	Backend    string `json:"backend"`
	KeyCount   int64  `json:"key_count"`
	UsedMemory string `json:"used_memory"`
	RedisURL   string `json:"redis_url"`
}

// LOCRecord is a normalized Library of Congress item.
type LOCRecord struct {
	Title           string   `json:"title"`
	Authors         []Author `json:"authors"`
	PublishedDate   string   `json:"published_date,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	Edition         string   `json:"edition,omitempty"`
	Subjects        []string `json:"subjects"`
	Description     string   `json:"description,omitempty"`
	LCCN            []string `json:"lccn"`
	CallNumber      string   `json:"call_number,omitempty"`
	LOCURL          string   `json:"loc_url,omitempty"`
	Format          string   `json:"format"`
	IsPrimarySource bool     `json:"is_primary_source,omitempty"`
}

// PrimarySourcesResponse is the body of GET /primary-sources.
type PrimarySourcesResponse struct {
	Query    string      `json:"query"`
	NumFound int         `json:"num_found"`
	Results  []LOCRecord `json:"results"`
}
