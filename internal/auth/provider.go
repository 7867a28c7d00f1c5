// Package auth attaches credentials to requests sent to the target service.
package auth

import (
	"context"
	"net/http"
)

// Provider injects credentials into outgoing requests.
type Provider interface {
	// InjectHeader sets the credential headers on req.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// Noop leaves requests untouched. Redirect lookups are public.
type Noop struct{}

func (Noop) InjectHeader(context.Context, *http.Request) error { return nil }

func (Noop) Close() error { return nil }
