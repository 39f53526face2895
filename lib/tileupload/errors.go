// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileupload

import "fmt"

// UnreachableError reports that no network interface was available,
// so the cycle did not attempt an upload.
type UnreachableError struct{}

func (e *UnreachableError) Error() string {
	return "tileupload: network unreachable"
}

// UploadTransportError reports a failed POST: either the collector
// answered with a non-2xx status, or the request never completed
// (connection failure, timeout). Exactly one of StatusCode and Err is
// meaningful.
type UploadTransportError struct {
	// StatusCode is the HTTP status for a non-2xx response, 0 when the
	// request failed before a response arrived.
	StatusCode int

	// Body is the start of the collector's error response, if any.
	Body string

	// Err is the transport failure when StatusCode is 0.
	Err error
}

func (e *UploadTransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("tileupload: collector returned HTTP %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("tileupload: collector returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("tileupload: upload failed: %v", e.Err)
}

func (e *UploadTransportError) Unwrap() error { return e.Err }
