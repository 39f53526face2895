// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EventKind identifies what the user did with the tiles. The set is
// closed: the collector rejects batches containing anything else.
type EventKind string

const (
	// KindClick records a tap on the tile at the event's index.
	KindClick EventKind = "click"
	// KindPin records the tile at the event's index being pinned.
	KindPin EventKind = "pin"
	// KindUnpin records the tile at the event's index being unpinned.
	KindUnpin EventKind = "unpin"
	// KindView records the tiles being shown. Views have no index.
	KindView EventKind = "view"
)

// IsKnown reports whether k is one of the four defined kinds.
func (k EventKind) IsKnown() bool {
	switch k {
	case KindClick, KindPin, KindUnpin, KindView:
		return true
	}
	return false
}

// IsAction reports whether k is a user action on a single tile (click,
// pin, unpin). Actions always carry an index; views never do.
func (k EventKind) IsAction() bool {
	switch k {
	case KindClick, KindPin, KindUnpin:
		return true
	}
	return false
}

// ParseEventKind converts a wire name to an EventKind.
func ParseEventKind(name string) (EventKind, error) {
	kind := EventKind(name)
	if !kind.IsKnown() {
		return "", &UnknownEventKindError{Kind: kind}
	}
	return kind, nil
}

// Index is an optional tile position. The zero value is NoIndex.
type Index struct {
	position int
	set      bool
}

// NoIndex is the absent index carried by view events.
var NoIndex = Index{}

// At returns an Index for the given tile position.
func At(position int) Index {
	return Index{position: position, set: true}
}

// Position returns the index value and whether one is present.
func (i Index) Position() (int, bool) {
	return i.position, i.set
}

// IsSet reports whether an index is present.
func (i Index) IsSet() bool { return i.set }

func (i Index) String() string {
	if !i.set {
		return "none"
	}
	return strconv.Itoa(i.position)
}

// Validate checks that index presence matches the kind: actions need
// an index, views must not have one. Unknown kinds are rejected too.
func Validate(kind EventKind, index Index) error {
	if !kind.IsKnown() {
		return &InvalidEventError{Kind: kind, Index: index, Reason: "unknown event kind"}
	}
	if kind.IsAction() && !index.IsSet() {
		return &InvalidEventError{Kind: kind, Index: index, Reason: "action requires an index"}
	}
	if !kind.IsAction() && index.IsSet() {
		return &InvalidEventError{Kind: kind, Index: index, Reason: "view must not carry an index"}
	}
	return nil
}

// InvalidEventError is returned for a malformed producer call. It is
// surfaced to the caller immediately; the event is not recorded.
type InvalidEventError struct {
	Kind   EventKind
	Index  Index
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("tiles: invalid %q event (index %s): %s", e.Kind, e.Index, e.Reason)
}

// UnknownEventKindError reports an event kind outside the closed set.
// Reaching serialization with one is a producer/consumer contract
// violation, not a retryable condition.
type UnknownEventKindError struct {
	Kind EventKind
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("tiles: unknown event kind %q", e.Kind)
}

// Event is a recorded tile event with the clock metadata captured at
// insertion. Events are immutable once created.
type Event struct {
	Kind  EventKind
	Index Index

	// Tiles is the JSON-encoded Snapshot, treated as opaque.
	Tiles json.RawMessage

	// Epoch is the boot epoch the event was recorded in.
	Epoch int

	// Realtime is the boot-clock reading at recording.
	Realtime time.Duration

	// EstimatedServerTime is the best guess at the server time of the
	// event, zero when no anchor was usable.
	EstimatedServerTime time.Time

	// MinServerTime is the server time the event cannot precede, zero
	// when no upload had ever succeeded.
	MinServerTime time.Time
}

// Entry converts the event to its upload form.
func (e Event) Entry() Entry {
	return Entry{
		Kind:  e.Kind,
		Index: e.Index,
		TS:    EventTimeSync(e.Epoch, e.Realtime, e.MinServerTime, e.EstimatedServerTime),
		Tiles: e.Tiles,
	}
}
