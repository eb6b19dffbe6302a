package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Dosada05/lunch-roulette/share"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "")
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"sharetoken", "encode",
		"--x", "127.1", "--y", "37.4", "--radius", "300", "--exclude", "b", "--exclude", "a"})
	require.NoError(t, err)
	token := strings.TrimSpace(out.String())

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"sharetoken", "decode", token}))

	var st share.State
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, 300, st.RadiusMeters)
	assert.Equal(t, []string{"a", "b"}, st.ExcludedIDs)
	assert.InDelta(t, 127.1, st.OriginX, 1e-9)
}

func TestEncode_PrintsLink(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"sharetoken", "encode",
		"--x", "1", "--y", "2", "--base-url", "https://lunch.example.com"})
	require.NoError(t, err)
	link := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(link, "https://lunch.example.com/map?s=1"), link)

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"sharetoken", "decode", link}))
	assert.Contains(t, out.String(), `"d": 100`)
}

func TestTokenFromArg(t *testing.T) {
	tok, err := tokenFromArg("1abc")
	require.NoError(t, err)
	assert.Equal(t, "1abc", tok)

	tok, err = tokenFromArg("https://x.test/map?s=1xyz")
	require.NoError(t, err)
	assert.Equal(t, "1xyz", tok)

	_, err = tokenFromArg("https://x.test/map")
	assert.Error(t, err)
}
