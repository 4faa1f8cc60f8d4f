package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/developkariyer/IWApim/internal/core"
)

// Exchanger performs the marketplace-specific auth exchange.
// current is the last known token (possibly expired, possibly nil).
type Exchanger interface {
	Exchange(ctx context.Context, current *Token) (*Token, error)
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
}

func (r tokenResponse) toToken() (*Token, error) {
	access := r.AccessToken
	if access == "" {
		access = r.Token
	}
	if access == "" {
		return nil, fmt.Errorf("%w: token response without access token", core.ErrAuth)
	}
	var expires int64
	if r.ExpiresIn != "" {
		n, err := r.ExpiresIn.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: expires_in %q", core.ErrAuth, r.ExpiresIn)
		}
		expires = n
	}
	return &Token{
		AccessToken:  access,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    expires,
	}, nil
}

func postToken(ctx context.Context, client *http.Client, req *http.Request) (*Token, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %w", core.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: token response: %w", core.ErrAuth, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s", core.ErrAuth, resp.StatusCode, truncate(body))
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %w", core.ErrAuth, err)
	}
	return tr.toToken()
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// BasicExchanger trades client id/secret sent as basic auth for a bearer (Bol.com, eBay).
type BasicExchanger struct {
	URL          string
	ClientID     string
	ClientSecret string
	// Form is sent url-encoded; grant_type defaults to client_credentials.
	Form   url.Values
	Client *http.Client
}

func (e *BasicExchanger) Exchange(ctx context.Context, _ *Token) (*Token, error) {
	form := url.Values{}
	for k, v := range e.Form {
		form[k] = v
	}
	if form.Get("grant_type") == "" {
		form.Set("grant_type", "client_credentials")
	}
	req, err := http.NewRequest(http.MethodPost, e.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	req.SetBasicAuth(e.ClientID, e.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return postToken(ctx, e.Client, req)
}

// ClientCredentialsExchanger posts a JSON client_credentials grant (Wayfair).
type ClientCredentialsExchanger struct {
	URL          string
	ClientID     string
	ClientSecret string
	Audience     string
	Client       *http.Client
}

func (e *ClientCredentialsExchanger) Exchange(ctx context.Context, _ *Token) (*Token, error) {
	payload := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     e.ClientID,
		"client_secret": e.ClientSecret,
	}
	if e.Audience != "" {
		payload["audience"] = e.Audience
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	req, err := http.NewRequest(http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return postToken(ctx, e.Client, req)
}

// RefreshExchanger performs the refresh_token grant (Amazon LWA, Etsy).
// A rotated refresh token from the previous exchange takes precedence over the configured one.
type RefreshExchanger struct {
	URL          string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Client       *http.Client
}

func (e *RefreshExchanger) Exchange(ctx context.Context, current *Token) (*Token, error) {
	refresh := e.RefreshToken
	if current != nil && current.RefreshToken != "" {
		refresh = current.RefreshToken
	}
	if refresh == "" {
		return nil, fmt.Errorf("%w: no refresh token", core.ErrAuth)
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)
	form.Set("client_id", e.ClientID)
	if e.ClientSecret != "" {
		form.Set("client_secret", e.ClientSecret)
	}
	req, err := http.NewRequest(http.MethodPost, e.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	token, err := postToken(ctx, e.Client, req)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refresh
	}
	return token, nil
}

// PasswordExchanger logs in with email and password and reads a "token" field (Wisersell).
type PasswordExchanger struct {
	URL      string
	Email    string
	Password string
	Client   *http.Client
}

func (e *PasswordExchanger) Exchange(ctx context.Context, _ *Token) (*Token, error) {
	body, err := json.Marshal(map[string]string{"email": e.Email, "password": e.Password})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	req, err := http.NewRequest(http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return postToken(ctx, e.Client, req)
}
