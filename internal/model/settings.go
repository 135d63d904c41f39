// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Settings is an opaque key/value payload attached to modules and
// module translations. The engine never interprets individual keys; it
// only stores, copies and compares whole payloads.
type Settings map[string]any

// Encode serializes the settings to JSON for storage. A nil map
// encodes as an empty object so stored payloads stay comparable.
func (s Settings) Encode() (string, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return string(b), nil
}

// DecodeSettings parses a stored JSON payload. Empty input decodes to
// an empty map.
func DecodeSettings(raw string) (Settings, error) {
	if raw == "" {
		return Settings{}, nil
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if s == nil {
		s = Settings{}
	}
	return s, nil
}

// Equal compares two payloads by canonical JSON encoding.
// encoding/json writes map keys in sorted order, so the comparison is
// insensitive to key ordering in the source maps.
func (s Settings) Equal(other Settings) bool {
	a, err := json.Marshal(normalizeNil(s))
	if err != nil {
		return false
	}
	b, err := json.Marshal(normalizeNil(other))
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Clone returns a deep copy of the payload via a JSON round trip.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return Settings{}
	}
	var out Settings
	if err := json.Unmarshal(b, &out); err != nil {
		return Settings{}
	}
	return out
}

// Merge overlays other on top of s and returns the result. Keys from
// other win; neither input is modified.
func (s Settings) Merge(other Settings) Settings {
	out := s.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func normalizeNil(s Settings) Settings {
	if s == nil {
		return Settings{}
	}
	return s
}
