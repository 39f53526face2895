// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tileschema "github.com/bureau-foundation/tiles/lib/schema/tiles"
	"github.com/bureau-foundation/tiles/lib/tiles"
	"github.com/bureau-foundation/tiles/lib/tileupload"
)

// maxRequestBytes bounds a producer request body.
const maxRequestBytes = 1 << 20

// relay serves the local producer endpoint for one pipeline.
type relay struct {
	pipeline *tiles.Pipeline
	owner    *owner
	logger   *slog.Logger
}

func newRelay(pipeline *tiles.Pipeline, logger *slog.Logger) *relay {
	return &relay{
		pipeline: pipeline,
		owner:    newOwner(pipeline.Recorder()),
		logger:   logger,
	}
}

func (r *relay) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/events/action", r.handleAction)
	mux.HandleFunc("POST /v1/events/view", r.handleView)
	mux.HandleFunc("POST /v1/flush", r.handleFlush)
	mux.HandleFunc("POST /v1/upload", r.handleUpload)
	mux.HandleFunc("GET /v1/status", r.handleStatus)
	return mux
}

func (r *relay) shutdown(ctx context.Context) error {
	return r.owner.shutdown(ctx)
}

// actionRequest is the body of POST /v1/events/action.
type actionRequest struct {
	Action string              `json:"action"`
	Index  *int                `json:"index"`
	Tiles  tileschema.Snapshot `json:"tiles"`
}

// viewRequest is the body of POST /v1/events/view.
type viewRequest struct {
	Tiles tileschema.Snapshot `json:"tiles"`
}

// acceptedResponse acknowledges a queued event.
type acceptedResponse struct {
	Queued int `json:"queued"`
}

// uploadResponse reports a manually triggered upload cycle.
type uploadResponse struct {
	State      tileupload.State `json:"state"`
	Uploaded   bool             `json:"uploaded"`
	Sent       int              `json:"sent"`
	Discarded  int              `json:"discarded,omitempty"`
	Digest     string           `json:"digest,omitempty"`
	ServerTime time.Time        `json:"server_time,omitzero"`
	Error      string           `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r *relay) handleAction(writer http.ResponseWriter, request *http.Request) {
	var body actionRequest
	if !r.decode(writer, request, &body) {
		return
	}
	kind, err := tileschema.ParseEventKind(body.Action)
	if err != nil {
		r.writeError(writer, err)
		return
	}
	if body.Index == nil {
		r.writeError(writer, &tileschema.InvalidEventError{Kind: kind, Reason: "index is required"})
		return
	}
	snapshot, err := body.Tiles.Encode()
	if err != nil {
		r.writeError(writer, err)
		return
	}

	err = r.owner.do(request.Context(), func(recorder *tiles.Recorder) error {
		return recorder.RecordAction(kind, *body.Index, snapshot)
	})
	if err != nil {
		r.writeError(writer, err)
		return
	}
	r.writeJSON(writer, http.StatusAccepted, acceptedResponse{Queued: r.pipeline.Status().QueueLength})
}

func (r *relay) handleView(writer http.ResponseWriter, request *http.Request) {
	var body viewRequest
	if !r.decode(writer, request, &body) {
		return
	}
	snapshot, err := body.Tiles.Encode()
	if err != nil {
		r.writeError(writer, err)
		return
	}

	err = r.owner.do(request.Context(), func(recorder *tiles.Recorder) error {
		return recorder.RecordView(snapshot)
	})
	if err != nil {
		r.writeError(writer, err)
		return
	}
	r.writeJSON(writer, http.StatusAccepted, acceptedResponse{Queued: r.pipeline.Status().QueueLength})
}

func (r *relay) handleFlush(writer http.ResponseWriter, request *http.Request) {
	err := r.owner.do(request.Context(), func(recorder *tiles.Recorder) error {
		return recorder.Flush(request.Context())
	})
	if err != nil {
		r.writeError(writer, err)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

func (r *relay) handleUpload(writer http.ResponseWriter, request *http.Request) {
	if r.pipeline.Status().Closed {
		r.writeError(writer, tiles.ErrShutdown)
		return
	}
	result := r.pipeline.Upload(request.Context())
	response := uploadResponse{
		State:      result.State,
		Uploaded:   result.Uploaded,
		Sent:       result.Sent,
		Discarded:  result.Discarded,
		Digest:     result.Digest,
		ServerTime: result.ServerTime,
	}
	if result.Err != nil {
		response.Error = result.Err.Error()
	}

	status := http.StatusOK
	switch result.State {
	case tileupload.Failed:
		status = http.StatusBadGateway
	case tileupload.Skipped:
		status = http.StatusConflict
	}
	r.writeJSON(writer, status, response)
}

func (r *relay) handleStatus(writer http.ResponseWriter, request *http.Request) {
	r.writeJSON(writer, http.StatusOK, r.pipeline.Status())
}

// decode reads a JSON request body into target. On failure it writes
// a 400 and returns false.
func (r *relay) decode(writer http.ResponseWriter, request *http.Request, target any) bool {
	request.Body = http.MaxBytesReader(writer, request.Body, maxRequestBytes)
	decoder := json.NewDecoder(request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		r.writeJSON(writer, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decoding request: %v", err)})
		return false
	}
	return true
}

// writeError maps a recorder error onto an HTTP status.
func (r *relay) writeError(writer http.ResponseWriter, err error) {
	var (
		invalid  *tileschema.InvalidEventError
		unknown  *tileschema.UnknownEventKindError
		affinity *tiles.AffinityError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalid), errors.As(err, &unknown):
		status = http.StatusBadRequest
	case errors.Is(err, tiles.ErrShutdown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case errors.As(err, &affinity):
		r.logger.Error("recorder called off its owner goroutine", "error", err)
	default:
		r.logger.Error("tile request failed", "error", err)
	}
	r.writeJSON(writer, status, errorResponse{Error: err.Error()})
}

func (r *relay) writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(value); err != nil {
		r.logger.Debug("writing response failed", "error", err)
	}
}
