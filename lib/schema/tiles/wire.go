// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiles

import (
	"encoding/json"
	"time"
)

// ContentType is the media type of an upload body.
const ContentType = "application/json; charset=utf-8"

// TimeSync is the "ts" block. The top-level block describes the
// device at upload time; each entry's block describes the device when
// the event was recorded.
type TimeSync struct {
	// Clock is the boot epoch.
	Clock int `json:"clock"`

	// Realtime is milliseconds since boot.
	Realtime int64 `json:"realtime"`

	// MinTime is the last confirmed server time in Unix milliseconds.
	// The event happened no earlier than this.
	MinTime int64 `json:"mintime,omitempty"`

	// CalcTime is the estimated server time in Unix milliseconds.
	CalcTime int64 `json:"calctime,omitempty"`
}

// EventTimeSync builds an entry's time block. A calculated time is
// never sent without a floor: calctime is dropped whenever mintime is
// absent.
func EventTimeSync(clock int, realtime time.Duration, minimum, calculated time.Time) TimeSync {
	sync := TimeSync{
		Clock:    clock,
		Realtime: DurationMillis(realtime),
	}
	if minimum := TimeMillis(minimum); minimum > 0 {
		sync.MinTime = minimum
		if calculated := TimeMillis(calculated); calculated > 0 {
			sync.CalcTime = calculated
		}
	}
	return sync
}

// Entry is one event in an upload batch. It marshals with the event
// kind as a key holding the index (actions only), next to "ts" and
// "tiles".
type Entry struct {
	Kind  EventKind
	Index Index
	TS    TimeSync
	Tiles json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	if !e.Kind.IsKnown() {
		return nil, &UnknownEventKindError{Kind: e.Kind}
	}
	tiles := e.Tiles
	if len(tiles) == 0 {
		tiles = json.RawMessage("[]")
	}
	object := map[string]any{
		"ts":    e.TS,
		"tiles": tiles,
	}
	if position, ok := e.Index.Position(); ok && e.Kind.IsAction() {
		object[string(e.Kind)] = position
	}
	return json.Marshal(object)
}

// Payload is the complete upload body.
type Payload struct {
	TS    TimeSync `json:"ts"`
	Batch []Entry  `json:"batch"`
}

// TimeMillis converts a server time to Unix milliseconds, 0 for the
// zero time.
func TimeMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// MillisTime is the inverse of TimeMillis.
func MillisTime(milliseconds int64) time.Time {
	if milliseconds == 0 {
		return time.Time{}
	}
	return time.UnixMilli(milliseconds).UTC()
}

// DurationMillis converts a monotonic reading to milliseconds.
func DurationMillis(d time.Duration) int64 {
	return d.Milliseconds()
}
