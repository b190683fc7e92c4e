package models

import (
	"fmt"
	"time"
)

// Record is one (digest, field) row of the records table
type Record struct {
	ID          int64     `json:"id"`
	DateAdded   time.Time `json:"date_added"`
	ContentType string    `json:"content_type"`
	Digest      string    `json:"digest"`
	Field       string    `json:"field"`
}

// SearchLogic selects how requested fields are matched against a schema
type SearchLogic string

const (
	// SearchLogicAll requires every requested field to be present
	SearchLogicAll SearchLogic = "all"
	// SearchLogicAny matches schemas holding at least one similar field
	SearchLogicAny SearchLogic = "any"
)

// ParseSearchLogic validates raw query input; empty input selects SearchLogicAny
func ParseSearchLogic(raw string) (SearchLogic, error) {
	switch SearchLogic(raw) {
	case "":
		return SearchLogicAny, nil
	case SearchLogicAll, SearchLogicAny:
		return SearchLogic(raw), nil
	}
	return "", fmt.Errorf("logic must be one of %q, %q; got %q", SearchLogicAll, SearchLogicAny, raw)
}

// StatusComment tells the uploader whether the schema is new to the catalog
type StatusComment string

const (
	StatusJustAdded  StatusComment = "Just added by you."
	StatusSeenBefore StatusComment = "Seen before."
)

// Status describes when a schema first entered the catalog
type Status struct {
	Comment   StatusComment `json:"comment"`
	DateAdded time.Time     `json:"date_added"`
}

// UploadResponse is returned by POST /file
type UploadResponse struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Fields      []string       `json:"fields"`
	Schema      map[string]any `json:"schema"`
	Status      Status         `json:"status"`
}

// SearchResponse is returned by GET /search.
// SimilarFields is nil for SearchLogicAll.
type SearchResponse struct {
	Fields        []string         `json:"fields"`
	SimilarFields []string         `json:"similar_fields"`
	Logic         SearchLogic      `json:"logic"`
	Schemas       []map[string]any `json:"schemas"`
}

// SchemaEntry summarizes one catalogued digest
type SchemaEntry struct {
	Digest      string         `json:"digest"`
	ContentType string         `json:"content_type"`
	Fields      []string       `json:"fields"`
	DateAdded   time.Time      `json:"date_added"`
	Schema      map[string]any `json:"schema"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Detail string `json:"detail"`
}
