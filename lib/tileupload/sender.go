// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tileupload

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/tiles/lib/netutil"
	"github.com/bureau-foundation/tiles/lib/schema/tiles"
)

// BatchDigestHeader carries the hex BLAKE3-256 digest of the
// uncompressed request body. A resent batch carries the same digest.
const BatchDigestHeader = "X-Tiles-Batch"

// maxErrorBody bounds the collector response text kept in an
// UploadTransportError.
const maxErrorBody = 512

// Compression selects the request body encoding.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Receipt is what the coordinator needs from a successful POST.
type Receipt struct {
	StatusCode int

	// Date is the raw Date response header, empty if absent.
	Date string
}

// Sender delivers one serialized batch. A non-nil error means the
// batch was not accepted; implementations should return an
// *UploadTransportError.
type Sender interface {
	Send(ctx context.Context, body []byte) (Receipt, error)
}

// HTTPConfig configures an HTTPSender.
type HTTPConfig struct {
	// URL is the collector endpoint. Required.
	URL string

	// Timeout bounds each request, including reading the response
	// headers. Zero means 30 seconds.
	Timeout time.Duration

	// UserAgent is sent on every request. Empty omits the header
	// override and Go's default is used.
	UserAgent string

	// Compression selects Content-Encoding. Empty means none.
	Compression Compression

	// Client is the HTTP client. If nil, a client with default
	// transport settings is used.
	Client *http.Client

	// Logger receives per-request debug messages. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// HTTPSender POSTs batches to the collector.
type HTTPSender struct {
	url         string
	timeout     time.Duration
	userAgent   string
	compression Compression
	client      *http.Client
	logger      *slog.Logger
	zstdEncoder *zstd.Encoder
}

// NewHTTPSender validates cfg and returns a sender.
func NewHTTPSender(cfg HTTPConfig) (*HTTPSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("tileupload: collector URL is required")
	}
	sender := &HTTPSender{
		url:         cfg.URL,
		timeout:     cfg.Timeout,
		userAgent:   cfg.UserAgent,
		compression: cfg.Compression,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}
	if sender.timeout <= 0 {
		sender.timeout = 30 * time.Second
	}
	if sender.compression == "" {
		sender.compression = CompressionNone
	}
	if sender.client == nil {
		sender.client = &http.Client{}
	}
	if sender.logger == nil {
		sender.logger = slog.New(slog.DiscardHandler)
	}

	switch sender.compression {
	case CompressionNone, CompressionGzip:
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("tileupload: creating zstd encoder: %w", err)
		}
		sender.zstdEncoder = encoder
	default:
		return nil, fmt.Errorf("tileupload: unknown compression %q", cfg.Compression)
	}
	return sender, nil
}

// BatchDigest returns the hex BLAKE3-256 digest of body.
func BatchDigest(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Send POSTs body to the collector. Any 2xx status is success.
func (s *HTTPSender) Send(ctx context.Context, body []byte) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	encoded, err := s.encode(body)
	if err != nil {
		return Receipt{}, &UploadTransportError{Err: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(encoded))
	if err != nil {
		return Receipt{}, &UploadTransportError{Err: err}
	}
	request.Header.Set("Content-Type", tiles.ContentType)
	request.Header.Set(BatchDigestHeader, BatchDigest(body))
	if s.userAgent != "" {
		request.Header.Set("User-Agent", s.userAgent)
	}
	if s.compression != CompressionNone {
		request.Header.Set("Content-Encoding", string(s.compression))
	}

	response, err := s.client.Do(request)
	if err != nil {
		return Receipt{}, &UploadTransportError{Err: err}
	}
	defer response.Body.Close()

	s.logger.Debug("collector responded",
		"status", response.StatusCode,
		"body_bytes", len(body),
		"sent_bytes", len(encoded),
		"compression", s.compression,
	)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return Receipt{}, &UploadTransportError{
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body, maxErrorBody),
		}
	}
	netutil.Drain(response.Body)
	return Receipt{
		StatusCode: response.StatusCode,
		Date:       response.Header.Get("Date"),
	}, nil
}

func (s *HTTPSender) encode(body []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(body); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return buffer.Bytes(), nil
	case CompressionZstd:
		return s.zstdEncoder.EncodeAll(body, nil), nil
	default:
		return body, nil
	}
}
