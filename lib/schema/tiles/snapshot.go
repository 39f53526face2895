// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"encoding/json"
	"fmt"
)

// UndefinedID marks a tile with no collector-assigned identifier
// (for example a tile the user added by hand).
const UndefinedID = -1

// Tile is one visible tile in a Snapshot.
type Tile struct {
	ID       int
	Pinned   bool
	Position int
}

// Snapshot lists the visible tiles, left to right then top to bottom,
// at the moment of an event.
//
// The JSON form is compact: "id" is omitted for UndefinedID, "pin" is
// present only when true, and "pos" is present only when the tile's
// position differs from its array offset.
type Snapshot struct {
	tiles []Tile
}

// Add appends a tile to the snapshot.
func (s *Snapshot) Add(id int, pinned bool, position int) {
	s.tiles = append(s.tiles, Tile{ID: id, Pinned: pinned, Position: position})
}

// Tiles returns a copy of the snapshot's tiles.
func (s *Snapshot) Tiles() []Tile {
	return append([]Tile(nil), s.tiles...)
}

// Len returns the number of tiles.
func (s *Snapshot) Len() int { return len(s.tiles) }

// wireTile is the compact JSON form of a Tile.
type wireTile struct {
	ID       *int `json:"id,omitempty"`
	Pinned   bool `json:"pin,omitempty"`
	Position *int `json:"pos,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	wire := make([]wireTile, len(s.tiles))
	for offset, tile := range s.tiles {
		if tile.ID != UndefinedID {
			id := tile.ID
			wire[offset].ID = &id
		}
		wire[offset].Pinned = tile.Pinned
		if tile.Position != offset {
			position := tile.Position
			wire[offset].Position = &position
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler, restoring omitted fields
// to their defaults.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var wire []wireTile
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("tiles: decoding snapshot: %w", err)
	}
	s.tiles = make([]Tile, len(wire))
	for offset, entry := range wire {
		tile := Tile{ID: UndefinedID, Pinned: entry.Pinned, Position: offset}
		if entry.ID != nil {
			tile.ID = *entry.ID
		}
		if entry.Position != nil {
			tile.Position = *entry.Position
		}
		s.tiles[offset] = tile
	}
	return nil
}

// Encode returns the snapshot's JSON as the opaque blob stored with
// each event.
func (s *Snapshot) Encode() (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage("[]"), nil
	}
	return s.MarshalJSON()
}
