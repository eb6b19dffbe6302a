// Package content serves the static informational pages: FAQ and patch notes.
package content

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/Dosada05/lunch-roulette/models"
	"gopkg.in/yaml.v3"
)

//go:embed faq.yaml
var faqYAML []byte

//go:embed patchnotes.yaml
var patchNotesYAML []byte

type Catalog struct {
	FAQ        []models.FAQ
	PatchNotes []models.PatchNote
}

// Load parses the embedded documents. Patch notes are ordered newest first.
func Load() (*Catalog, error) {
	return Parse(faqYAML, patchNotesYAML)
}

func Parse(faq, patchNotes []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(faq, &c.FAQ); err != nil {
		return nil, fmt.Errorf("failed to parse faq: %w", err)
	}
	if err := yaml.Unmarshal(patchNotes, &c.PatchNotes); err != nil {
		return nil, fmt.Errorf("failed to parse patch notes: %w", err)
	}
	if c.FAQ == nil {
		c.FAQ = []models.FAQ{}
	}
	if c.PatchNotes == nil {
		c.PatchNotes = []models.PatchNote{}
	}
	// ISO даты сравниваются как строки.
	slices.SortStableFunc(c.PatchNotes, func(a, b models.PatchNote) int {
		if d := strings.Compare(b.CreatedAt, a.CreatedAt); d != 0 {
			return d
		}
		return b.ID - a.ID
	})
	return c, nil
}
