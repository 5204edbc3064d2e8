// Package cache persists the playlist cache (title to pointer record) and the
// library key cache between runs.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nomadcxx/strmsync/internal/playlist"
)

// Variant tags the shape a record was loaded from
type Variant int

const (
	// VariantPointer is a structured record with a known pointer path
	VariantPointer Variant = iota
	// VariantLegacy is a bare URL string; the pointer location is unknown
	VariantLegacy
	// VariantUnknown is any other JSON value, preserved untouched
	VariantUnknown
)

func (v Variant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantUnknown:
		return "unknown"
	default:
		return "pointer"
	}
}

// Record is one playlist cache value
type Record struct {
	Variant Variant
	URL     string
	Path    string
	Kind    playlist.Kind

	raw json.RawMessage // VariantUnknown only
}

// PointerRecord builds a structured record
func PointerRecord(url, path string, kind playlist.Kind) Record {
	return Record{Variant: VariantPointer, URL: url, Path: path, Kind: kind}
}

// LegacyRecord builds a record of the historical bare-URL shape
func LegacyRecord(url string) Record {
	return Record{Variant: VariantLegacy, URL: url}
}

// IsPointer reports whether the record knows where its pointer lives
func (r Record) IsPointer() bool {
	return r.Variant == VariantPointer
}

type pointerJSON struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Kind string `json:"kind,omitempty"`
}

// KindInferrer guesses a kind from a pointer path for records saved without one
type KindInferrer func(path string) playlist.Kind

// decodeRecord decides the variant of a raw value once, at load time
func decodeRecord(raw json.RawMessage, infer KindInferrer) (Record, error) {
	trimmed := strings.TrimSpace(string(raw))

	if strings.HasPrefix(trimmed, `"`) {
		var url string
		if err := json.Unmarshal(raw, &url); err != nil {
			return unknownRecord(raw), fmt.Errorf("decode legacy value: %w", err)
		}
		return LegacyRecord(url), nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var p pointerJSON
		if err := json.Unmarshal(raw, &p); err != nil {
			return unknownRecord(raw), fmt.Errorf("decode record: %w", err)
		}
		if p.URL == "" || p.Path == "" {
			return unknownRecord(raw), fmt.Errorf("record without url or path")
		}

		kind, err := playlist.ParseKind(p.Kind)
		if err != nil {
			if p.Kind != "" {
				return unknownRecord(raw), err
			}
			kind = playlist.Movie
			if infer != nil {
				kind = infer(p.Path)
			}
		}
		return PointerRecord(p.URL, p.Path, kind), nil
	}

	return unknownRecord(raw), fmt.Errorf("unexpected value %s", truncate(trimmed, 40))
}

func unknownRecord(raw json.RawMessage) Record {
	return Record{Variant: VariantUnknown, raw: append(json.RawMessage{}, raw...)}
}

func (r Record) encode() (json.RawMessage, error) {
	switch r.Variant {
	case VariantLegacy:
		return json.Marshal(r.URL)
	case VariantUnknown:
		return r.raw, nil
	default:
		return json.Marshal(pointerJSON{URL: r.URL, Path: r.Path, Kind: r.Kind.String()})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
