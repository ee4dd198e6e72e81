package store

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec represents a row of the openapi_specs table.
type Spec struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Title     *string   `json:"title,omitempty" db:"title"`
	Version   *string   `json:"version,omitempty" db:"version"`
	Content   string    `json:"spec_content" db:"spec_content"`
	Format    string    `json:"file_format" db:"file_format"`
	Size      int       `json:"file_size" db:"file_size"`
	Active    bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewSpec creates an active Spec for the given document. Format is "json"
// when the content is a JSON object and "yaml" otherwise; title and version
// are taken from the document's info block when present.
func NewSpec(name string, content []byte) *Spec {
	spec := &Spec{
		Name:    name,
		Content: string(content),
		Format:  DetectFormat(content),
		Size:    len(content),
		Active:  true,
	}

	var doc struct {
		Info struct {
			Title   string `yaml:"title"`
			Version string `yaml:"version"`
		} `yaml:"info"`
	}
	if err := yaml.Unmarshal(content, &doc); err == nil {
		if doc.Info.Title != "" {
			spec.Title = &doc.Info.Title
		}
		if doc.Info.Version != "" {
			spec.Version = &doc.Info.Version
		}
	}
	return spec
}

// DetectFormat reports "json" or "yaml".
func DetectFormat(content []byte) string {
	if strings.HasPrefix(strings.TrimSpace(string(content)), "{") {
		return "json"
	}
	return "yaml"
}

// DisplayTitle returns the title or the name when no title is stored.
func (s *Spec) DisplayTitle() string {
	if s.Title != nil && *s.Title != "" {
		return *s.Title
	}
	return s.Name
}
