// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// record mirrors the integer-keyed layout of on-disk spool records.
type record struct {
	Kind     string `cbor:"1,keyasint"`
	Index    int    `cbor:"2,keyasint,omitempty"`
	Tiles    []byte `cbor:"3,keyasint,omitempty"`
	Realtime int64  `cbor:"4,keyasint"`
}

// recordV2 adds a field, as a newer binary would.
type recordV2 struct {
	Kind     string `cbor:"1,keyasint"`
	Index    int    `cbor:"2,keyasint,omitempty"`
	Tiles    []byte `cbor:"3,keyasint,omitempty"`
	Realtime int64  `cbor:"4,keyasint"`
	Source   string `cbor:"5,keyasint"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := []record{
		{Kind: "click", Index: 3, Tiles: []byte(`[{"id":1}]`), Realtime: 1_500_000_000},
		{Kind: "view", Realtime: 1_600_000_000},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded []record
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("decoded %d records, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i].Kind != original[i].Kind ||
			decoded[i].Index != original[i].Index ||
			!bytes.Equal(decoded[i].Tiles, original[i].Tiles) ||
			decoded[i].Realtime != original[i].Realtime {
			t.Errorf("record %d = %+v, want %+v", i, decoded[i], original[i])
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestKeyAsIntUsesIntegerKeys(t *testing.T) {
	data, err := Marshal(record{Kind: "pin", Realtime: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// Map of two entries: 1 => "pin", 4 => 1.
	want := []byte{0xa2, 0x01, 0x63, 'p', 'i', 'n', 0x04, 0x01}
	if !bytes.Equal(data, want) {
		t.Errorf("encoding = %x, want %x", data, want)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(recordV2{Kind: "unpin", Index: 2, Realtime: 9, Source: "relay"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var older record
	if err := Unmarshal(data, &older); err != nil {
		t.Fatalf("Unmarshal into older layout: %v", err)
	}
	if older.Kind != "unpin" || older.Index != 2 || older.Realtime != 9 {
		t.Errorf("decoded = %+v", older)
	}
}

func TestLargeArraysDecode(t *testing.T) {
	// Above fxamacker's default MaxArrayElements.
	values := make([]bool, 200_000)
	data, err := Marshal(values)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded []bool
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != len(values) {
		t.Fatalf("decoded %d elements, want %d", len(decoded), len(values))
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(record{Kind: "view", Realtime: 5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"view"`) {
		t.Errorf("Diagnose = %q, want the kind string", diagnostic)
	}
}
