package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Len(t, c.FAQ, 7)
	require.Len(t, c.PatchNotes, 3)
	assert.Equal(t, "1.0.2", c.PatchNotes[0].Version)
	assert.Equal(t, "1.0.0", c.PatchNotes[2].Version)
}

func TestParse_NewestFirstWithTies(t *testing.T) {
	notes := []byte(`
- {id: 1, created_at: "2025-01-01", version: "a", content: ""}
- {id: 3, created_at: "2025-02-01", version: "c", content: ""}
- {id: 2, created_at: "2025-01-01", version: "b", content: ""}
`)
	c, err := Parse([]byte("[]"), notes)
	require.NoError(t, err)

	var versions []string
	for _, n := range c.PatchNotes {
		versions = append(versions, n.Version)
	}
	assert.Equal(t, []string{"c", "b", "a"}, versions)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("{not: [yaml"), nil)
	assert.Error(t, err)
}
