package auth

import (
	"context"
	"net/http"
	"strings"
)

// AuthEngine decorates an outgoing request with credentials.
type AuthEngine interface {
	SetApiKey(ctx context.Context, request *http.Request) error
}

type BearerAuth struct {
	apiKey string
}

func (b *BearerAuth) GetApiKey() string {
	return b.apiKey
}

func (b *BearerAuth) SetApiKey(_ context.Context, request *http.Request) error {
	request.Header.Set("Authorization", "Bearer "+b.apiKey)
	return nil
}

func NewBearerAuth(apiKey string) *BearerAuth {
	if apiKey == "" {
		return nil
	}
	return &BearerAuth{apiKey: apiKey}
}

// TokenAuth takes the bearer from a Manager on every request.
type TokenAuth struct {
	manager *Manager
	header  string
	prefix  string
}

func NewTokenAuth(manager *Manager) *TokenAuth {
	return &TokenAuth{manager: manager, header: "Authorization", prefix: "Bearer "}
}

// NewTokenHeaderAuth sends the raw token in a custom header (x-amz-access-token).
func NewTokenHeaderAuth(manager *Manager, header string) *TokenAuth {
	return &TokenAuth{manager: manager, header: header}
}

func (t *TokenAuth) SetApiKey(ctx context.Context, request *http.Request) error {
	token, err := t.manager.GetValidToken(ctx)
	if err != nil {
		return err
	}
	request.Header.Set(t.header, t.prefix+token.AccessToken)
	return nil
}

type BasicAuth struct {
	username string
	password string
}

func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{username: username, password: password}
}

func (b *BasicAuth) SetApiKey(_ context.Context, request *http.Request) error {
	request.SetBasicAuth(b.username, b.password)
	return nil
}

// HeaderAuth sets static API key headers (x-api-key, X-Shopify-Access-Token, Client-Id/Api-Key).
type HeaderAuth struct {
	headers map[string]string
}

func NewHeaderAuth(headers map[string]string) *HeaderAuth {
	cp := make(map[string]string, len(headers))
	for k, v := range headers {
		cp[k] = v
	}
	return &HeaderAuth{headers: cp}
}

func (h *HeaderAuth) SetApiKey(_ context.Context, request *http.Request) error {
	for k, v := range h.headers {
		request.Header.Set(k, v)
	}
	return nil
}

// Chain applies engines in order and stops on the first error.
type Chain []AuthEngine

func (c Chain) SetApiKey(ctx context.Context, request *http.Request) error {
	for _, engine := range c {
		if engine == nil {
			continue
		}
		if err := engine.SetApiKey(ctx, request); err != nil {
			return err
		}
	}
	return nil
}

// ExtractBearer returns the token of an "Authorization: Bearer ..." header, or "".
func ExtractBearer(header string) string {
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		return header[7:]
	}
	return ""
}
