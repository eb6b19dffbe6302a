// Package share encodes the browsing state of a session into a short,
// URL-safe token and restores it again.
//
// Token layout: a one character format version followed by unpadded
// URL-safe base64 of the DEFLATE-compressed canonical JSON document.
package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/klauspost/compress/flate"
)

const (
	formatV1 = '1'

	// maxDocumentSize caps the inflated document so a crafted token cannot
	// expand without bound.
	maxDocumentSize = 64 << 10
)

// ErrInvalidToken is wrapped by every Decode failure.
var ErrInvalidToken = errors.New("invalid share token")

// State is the part of a session that a share link restores.
type State struct {
	ExcludedIDs  []string `json:"ex,omitempty"`
	OriginX      float64  `json:"x"`
	OriginY      float64  `json:"y"`
	RadiusMeters int      `json:"d"`
	Keyword      string   `json:"q,omitempty"`
}

// document is the wire form; pointers tell "missing" apart from zero.
type document struct {
	ExcludedIDs []string `json:"ex,omitempty"`
	OriginX     *float64 `json:"x"`
	OriginY     *float64 `json:"y"`
	Radius      *float64 `json:"d"`
	Keyword     string   `json:"q,omitempty"`
}

// Encode serializes s. Excluded ids are sorted and de-duplicated first, so
// equal states always produce the same token.
func Encode(s State) (string, error) {
	x, y, d := s.OriginX, s.OriginY, float64(s.RadiusMeters)
	doc := document{
		ExcludedIDs: canonicalIDs(s.ExcludedIDs),
		OriginX:     &x,
		OriginY:     &y,
		Radius:      &d,
		Keyword:     s.Keyword,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("share: marshal state: %w", err)
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("share: create compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("share: compress state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("share: compress state: %w", err)
	}

	return string(formatV1) + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode restores a State from token. Any failure, including a corrupt or
// foreign token, yields an error wrapping ErrInvalidToken.
func Decode(token string) (State, error) {
	if token == "" {
		return State{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if token[0] != formatV1 {
		return State{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidToken, token[0])
	}

	compressed, err := base64.RawURLEncoding.DecodeString(token[1:])
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, maxDocumentSize+1))
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(raw) > maxDocumentSize {
		return State{}, fmt.Errorf("%w: document too large", ErrInvalidToken)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return doc.validate()
}

func (d document) validate() (State, error) {
	switch {
	case d.OriginX == nil:
		return State{}, fmt.Errorf("%w: missing origin x", ErrInvalidToken)
	case d.OriginY == nil:
		return State{}, fmt.Errorf("%w: missing origin y", ErrInvalidToken)
	case d.Radius == nil:
		return State{}, fmt.Errorf("%w: missing radius", ErrInvalidToken)
	}
	if !finite(*d.OriginX) || !finite(*d.OriginY) {
		return State{}, fmt.Errorf("%w: origin is not a finite number", ErrInvalidToken)
	}
	radius := *d.Radius
	if !finite(radius) || radius <= 0 || radius != math.Trunc(radius) || radius > math.MaxInt32 {
		return State{}, fmt.Errorf("%w: radius must be a positive whole number of meters", ErrInvalidToken)
	}

	excluded := d.ExcludedIDs
	if excluded == nil {
		excluded = []string{}
	}
	return State{
		ExcludedIDs:  excluded,
		OriginX:      *d.OriginX,
		OriginY:      *d.OriginY,
		RadiusMeters: int(radius),
		Keyword:      d.Keyword,
	}, nil
}

func canonicalIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
