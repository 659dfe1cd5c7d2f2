package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/lineproto"
	"github.com/aaronlmathis/vsflux/internal/version"
)

// maxErrorBody caps how much of a failed response body is kept
const maxErrorBody = 4096

// TransportError is returned when the write endpoint answers with a non-2xx status
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("write endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPSink posts each record to a line-protocol write URL. Credentials in the
// URL userinfo are sent as basic auth.
type HTTPSink struct {
	logger   *zap.Logger
	writeURL string
	redacted string
	client   *http.Client
}

// NewHTTPSink creates a sink posting to writeURL
func NewHTTPSink(logger *zap.Logger, writeURL string, timeout time.Duration) (*HTTPSink, error) {
	u, err := url.Parse(writeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse write URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("write URL must be http or https, got %q", u.Scheme)
	}

	return &HTTPSink{
		logger:   logger,
		writeURL: writeURL,
		redacted: u.Redacted(),
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Write posts one record. Non-2xx responses are not retried.
func (s *HTTPSink) Write(ctx context.Context, record lineproto.Record) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.writeURL, strings.NewReader(record.Payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", version.UserAgent())

	s.logger.Debug("Posting record",
		zap.String("url", s.redacted),
		zap.String("entity", record.Entity),
		zap.Int("bytes", len(record.Payload)))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", s.redacted, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
