// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "github.com/cespare/xxhash/v2"

// AttrKey indexes the fixed discovery attribute table.
type AttrKey uint8

const (
	AttrMode AttrKey = iota
	AttrMap
	AttrVersion
	AttrPlaylist
	AttrVariant
	AttrRequiredContent
	AttrLanguage
	AttrSkill
	AttrActiveStatus

	NumAttributes
)

var attrNames = [NumAttributes]string{
	AttrMode:            "mode",
	AttrMap:             "map",
	AttrVersion:         "version",
	AttrPlaylist:        "playlist",
	AttrVariant:         "variant",
	AttrRequiredContent: "required_content",
	AttrLanguage:        "language",
	AttrSkill:           "skill",
	AttrActiveStatus:    "active_status",
}

func (k AttrKey) String() string {
	if k < NumAttributes {
		return attrNames[k]
	}
	return "unknown"
}

// Attributes is the small typed key/value table used by external session discovery.
type Attributes struct {
	values [NumAttributes]uint32
}

func (a *Attributes) Get(k AttrKey) uint32 {
	if k >= NumAttributes {
		return 0
	}
	return a.values[k]
}

// Set stores v and reports whether the value changed.
func (a *Attributes) Set(k AttrKey, v uint32) bool {
	if k >= NumAttributes || a.values[k] == v {
		return false
	}
	a.values[k] = v
	return true
}

// Map returns a name-keyed copy, used for adverts and status output.
func (a *Attributes) Map() map[string]uint32 {
	out := make(map[string]uint32, NumAttributes)
	for i := AttrKey(0); i < NumAttributes; i++ {
		out[i.String()] = a.values[i]
	}
	return out
}

// Reset zeroes every attribute.
func (a *Attributes) Reset() { a.values = [NumAttributes]uint32{} }

// HashName reduces a mode or map name to the 32-bit value stored in the table.
func HashName(name string) uint32 {
	if name == "" {
		return 0
	}
	return uint32(xxhash.Sum64String(name))
}
