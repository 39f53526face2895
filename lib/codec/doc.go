// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration for tiles'
// on-disk formats.
//
// Tiles uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the collector upload body, the
//     relay's producer endpoint, and status output.
//   - CBOR for local state: the spooled event batch in the state
//     database.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Spooling the same queue twice produces identical bytes, which
// keeps the LZ4 ratio stable and lets tests compare encodings.
//
//	data, err := codec.Marshal(records)
//	err = codec.Unmarshal(data, &records)
//
// # Struct tags
//
// On-disk records use integer keys (`cbor:"1,keyasint"`). Renaming a
// Go field never changes the stored format; only renumbering does.
// Types that are also served as JSON carry `json` tags only, which
// fxamacker/cbor reads as a fallback. Never put both tags on a field.
package codec
