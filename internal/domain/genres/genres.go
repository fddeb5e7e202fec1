// Package genres serves the static fiction and non-fiction taxonomies used by
// clients to build browse filters.
package genres

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Taxonomy names accepted by Lookup.
const (
	Fiction    = "fiction"
	NonFiction = "non-fiction"
)

// ErrUnknownTaxonomy is returned by Lookup for names other than Fiction and NonFiction.
var ErrUnknownTaxonomy = errors.New("unknown taxonomy")

// Subgenre is a leaf of the taxonomy with optional filter tags.
type Subgenre struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	Setting       string   `yaml:"setting" json:"setting,omitempty"`
	Themes        []string `yaml:"themes" json:"themes,omitempty"`
	Tropes        []string `yaml:"tropes" json:"tropes,omitempty"`
	MainCharacter string   `yaml:"main_character" json:"main_character,omitempty"`
	TimePeriod    string   `yaml:"time_period" json:"time_period,omitempty"`
	Subject       string   `yaml:"subject" json:"subject,omitempty"`
	Tone          string   `yaml:"tone" json:"tone,omitempty"`
	Format        string   `yaml:"format" json:"format,omitempty"`
}

// Genre groups subgenres under an umbrella category.
type Genre struct {
	Umbrella    string     `yaml:"umbrella" json:"umbrella"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Subgenres   []Subgenre `yaml:"subgenres" json:"subgenres"`
}

var (
	//go:embed fiction.yaml
	fictionYAML []byte
	//go:embed non_fiction.yaml
	nonFictionYAML []byte

	taxonomies = map[string][]Genre{
		Fiction:    mustParse(Fiction, fictionYAML),
		NonFiction: mustParse(NonFiction, nonFictionYAML),
	}
)

// Lookup returns the named taxonomy. Names are case-insensitive.
// The returned slice must not be modified.
func Lookup(name string) ([]Genre, error) {
	g, ok := taxonomies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaxonomy, name)
	}
	return g, nil
}

// Names lists the available taxonomies.
func Names() []string { return []string{Fiction, NonFiction} }

func mustParse(name string, data []byte) []Genre {
	var out []Genre
	if err := yaml.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("genres: parse %s taxonomy: %v", name, err))
	}
	return out
}
