package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/firecat-notes/firecat/internal/common"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/wire"
)

const maxResponseBytes = 8 << 20

type httpTransport struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

func newHTTPTransport(baseURL string, hc *http.Client, log logging.Logger) *httpTransport {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &httpTransport{baseURL: strings.TrimRight(baseURL, "/"), http: hc, log: log}
}

// withAccessToken sets the bearer token on req, replacing any previous one.
func withAccessToken(req *http.Request, token string) {
	req.Header.Del(common.AuthorizationHeader)
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
}

// roundTrip sends in as JSON and decodes the response into out. Requests
// with a Query method carry it in the URL; GET requests have no body.
// Non-2xx responses become sentinel errors via mapStatus.
func (t *httpTransport) roundTrip(ctx context.Context, ep endpoint, token string, in, out any) error {
	var query url.Values
	if q, ok := in.(interface{ Query() url.Values }); ok {
		query = q.Query()
	}

	var body io.Reader
	if in != nil && ep.method != http.MethodGet {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := t.baseURL + ep.path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	withAccessToken(req, token)
	if cid, ok := logging.CorrelationID(ctx); ok {
		req.Header.Set(common.CorrelationIDHeader, cid)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Debug(ctx, "request failed", "method", ep.method, "path", ep.path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var st wire.Status
		_ = json.Unmarshal(data, &st)
		return mapStatus(resp.StatusCode, st.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
