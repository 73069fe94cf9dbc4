package federation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxRemoteBody = 4 << 20

var ErrPeerDisabled = errors.New("peer disabled")

// RemoteResult is what a peer answered.
type RemoteResult struct {
	Status      int
	Body        []byte
	ContentType string
}

// UpstreamError is a failed peer call: a non-2xx answer carries the peer's
// status and body, a transport failure is reported as 502 or 504.
type UpstreamError struct {
	Peer        string
	Status      int
	Body        []byte
	ContentType string
	Err         error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("peer %s: %d: %v", e.Peer, e.Status, e.Err)
	}
	return fmt.Sprintf("peer %s returned %d", e.Peer, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Client performs single authenticated calls to peers. There is no retry.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient bounds every peer call by timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: util.Name + "/" + util.GetVersion(),
	}
}

// Deliver POSTs payload to the peer's inboxPath, relative to its base URL.
// payload may be raw JSON bytes or any value to be marshalled.
func (c *Client) Deliver(ctx context.Context, peer *domain.Peer, inboxPath string, payload any, creds domain.Credentials) (*RemoteResult, error) {
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case jsoniter.RawMessage:
		body = p
	default:
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, errors.Wrap(err, "marshal payload")
		}
	}

	res, err := c.do(ctx, peer, http.MethodPost, inboxPath, body, creds)
	if err != nil {
		log.Warn().Err(err).Str("peer", peer.BaseURL).Str("path", inboxPath).Msg("Delivery: failed")
		return nil, err
	}
	log.Info().Str("peer", peer.BaseURL).Str("path", inboxPath).Int("status", res.Status).Msg("Delivery: sent")
	return res, nil
}

// ProxyRead GETs resourcePath from the peer. The body is returned verbatim.
func (c *Client) ProxyRead(ctx context.Context, peer *domain.Peer, resourcePath string, creds domain.Credentials) (*RemoteResult, error) {
	res, err := c.do(ctx, peer, http.MethodGet, resourcePath, nil, creds)
	if err != nil {
		log.Warn().Err(err).Str("peer", peer.BaseURL).Str("path", resourcePath).Msg("Proxy: read failed")
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, peer *domain.Peer, method, path string, body []byte, creds domain.Credentials) (*RemoteResult, error) {
	if !peer.Enabled {
		return nil, &UpstreamError{Peer: peer.BaseURL, Status: http.StatusServiceUnavailable, Err: ErrPeerDisabled}
	}

	target := peer.BaseURL + strings.TrimPrefix(path, "/")
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Peer: peer.BaseURL, Status: transportStatus(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, &UpstreamError{Peer: peer.BaseURL, Status: transportStatus(err), Err: err}
	}
	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Peer: peer.BaseURL, Status: resp.StatusCode, Body: data, ContentType: contentType}
	}
	return &RemoteResult{Status: resp.StatusCode, Body: data, ContentType: contentType}, nil
}

func transportStatus(err error) int {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// Reshape normalizes a peer's collection answer to {type, items}. A bare
// array is wrapped, an object that already has items is kept verbatim, and
// an object carrying the list under legacyKey has it moved to items.
func Reshape(body []byte, collection, legacyKey string) ([]byte, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Body: body, Err: errors.Wrap(err, "peer sent invalid JSON")}
	}

	switch v := decoded.(type) {
	case []any:
		return json.Marshal(map[string]any{"type": collection, "items": v})
	case map[string]any:
		if _, ok := v["items"]; ok {
			return body, nil
		}
		if legacyKey != "" {
			if items, ok := v[legacyKey]; ok {
				return json.Marshal(map[string]any{"type": collection, "items": items})
			}
		}
	}
	return body, nil
}
