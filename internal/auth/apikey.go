package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader is the header Shlink reads the REST API key from.
const DefaultAPIKeyHeader = "X-Api-Key"

// ErrEmptyAPIKey is returned by NewAPIKeyProvider for a blank key.
var ErrEmptyAPIKey = errors.New("auth: api key is empty")

// APIKeyProvider sends a static API key in a request header.
type APIKeyProvider struct {
	header string
	key    string
}

// NewAPIKeyProvider returns a provider sending key in header, or in
// X-Api-Key when header is empty.
func NewAPIKeyProvider(header, key string) (*APIKeyProvider, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyAPIKey
	}
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyProvider{header: http.CanonicalHeaderKey(header), key: key}, nil
}

func (p *APIKeyProvider) InjectHeader(_ context.Context, req *http.Request) error {
	req.Header.Set(p.header, p.key)
	return nil
}

func (p *APIKeyProvider) Close() error {
	return nil
}

// String hides the key when the provider is logged.
func (p *APIKeyProvider) String() string {
	return p.header + ": <redacted>"
}
