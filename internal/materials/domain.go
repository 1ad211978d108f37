// Package materials serves the read-only material catalog. Catalog rows are
// maintained out of band; the API only searches and reads active entries.
package materials

import "time"

// Material is a catalog entry. Specifications holds the parsed JSONB
// attributes, an empty map when the column is null.
type Material struct {
	ID             int64          `json:"id"`
	MaterialCode   string         `json:"material_code"`
	MaterialName   string         `json:"material_name"`
	Category       string         `json:"category"`
	Unit           string         `json:"unit"`
	Specifications map[string]any `json:"specifications"`
	Description    string         `json:"description"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SearchFilter narrows a catalog listing. Search matches name, code,
// category and description case-insensitively; Category is an exact match.
type SearchFilter struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}
