package wisersell

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/transport"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/filecache"
	"github.com/developkariyer/IWApim/pkg/logger"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

const (
	DefaultBaseURL = "https://dev2.wisersell.com/restapi"
	// sessionLifetime applies to tokens that carry no expiry of their own.
	sessionLifetime = 3600
)

type Config struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email" validate:"required_with=Password"`
	Password string `yaml:"password"`
}

func (c Config) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

// sessionExchanger logs in with email and password.
type sessionExchanger struct {
	auth.PasswordExchanger
}

func (e *sessionExchanger) Exchange(ctx context.Context, current *auth.Token) (*auth.Token, error) {
	token, err := e.PasswordExchanger.Exchange(ctx, current)
	if err != nil {
		return nil, err
	}
	if token.ExpiresIn == 0 {
		token.ExpiresIn = sessionLifetime
	}
	return token, nil
}

// Client talks to the Wisersell REST API with a bearer token from /token.
type Client struct {
	fetcher *transport.Fetcher
}

// NewClient keeps the session token as wisersell_access_token.json in store.
func NewClient(cfg Config, store *filecache.Store, policy pacing.Policy, clk clock.Clock, httpClient *http.Client, log logger.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	tokenURL, _ := url.JoinPath(base, "token")
	tokens := auth.NewManager("wisersell", auth.NewCacheStore(store, "wisersell"), &sessionExchanger{
		PasswordExchanger: auth.PasswordExchanger{
			URL:      tokenURL,
			Email:    cfg.Email,
			Password: cfg.Password,
			Client:   httpClient,
		},
	}, clk, log)
	return &Client{
		fetcher: transport.New(transport.Config{
			Marketplace: "wisersell",
			BaseURL:     base,
			Auth:        auth.NewTokenAuth(tokens),
			Pacer:       pacing.New(policy, clk),
			Client:      httpClient,
			Logger:      log,
		}),
	}
}

func (c *Client) call(ctx context.Context, operation, method, path string, body, out interface{}) error {
	return c.fetcher.JSON(ctx, transport.Request{Operation: operation, Method: method, Path: path, JSON: body}, out)
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.call(ctx, "category", http.MethodGet, "category", nil, &out); err != nil {
		return nil, fmt.Errorf("wisersell categories: %w", err)
	}
	return out, nil
}

func (c *Client) CreateCategories(ctx context.Context, categories []Category) ([]Category, error) {
	var out []Category
	if err := c.call(ctx, "category", http.MethodPost, "category", categories, &out); err != nil {
		return nil, fmt.Errorf("wisersell create categories: %w", err)
	}
	return out, nil
}

// SearchProducts returns one page of products; an empty code lists everything.
func (c *Client) SearchProducts(ctx context.Context, code string, page, pageSize int) (int, []Product, error) {
	var out productPage
	req := searchRequest{Code: code, Page: page, PageSize: pageSize}
	if err := c.call(ctx, "product/search", http.MethodPost, "product/search", req, &out); err != nil {
		return 0, nil, fmt.Errorf("wisersell product search: %w", err)
	}
	return out.Count, out.Rows, nil
}

func (c *Client) CreateProducts(ctx context.Context, products []Product) ([]Product, error) {
	var out []Product
	if err := c.call(ctx, "product", http.MethodPost, "product", products, &out); err != nil {
		return nil, fmt.Errorf("wisersell create products: %w", err)
	}
	return out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, p Product) error {
	if err := c.call(ctx, "product/update", http.MethodPut, "product/"+url.PathEscape(p.ID.String()), p, nil); err != nil {
		return fmt.Errorf("wisersell update product %s: %w", p.ID, err)
	}
	return nil
}

func (c *Client) Stores(ctx context.Context) ([]Store, error) {
	var out []Store
	if err := c.call(ctx, "store", http.MethodGet, "store", nil, &out); err != nil {
		return nil, fmt.Errorf("wisersell stores: %w", err)
	}
	return out, nil
}

func (c *Client) SearchListings(ctx context.Context, storeID ID, page, pageSize int) (int, []Listing, error) {
	var out listingPage
	req := searchRequest{StoreID: storeID, Page: page, PageSize: pageSize}
	if err := c.call(ctx, "listing/search", http.MethodPost, "listing/search", req, &out); err != nil {
		return 0, nil, fmt.Errorf("wisersell listing search: %w", err)
	}
	return out.Count, out.Rows, nil
}

func (c *Client) CreateListings(ctx context.Context, listings []Listing) ([]Listing, error) {
	var out []Listing
	if err := c.call(ctx, "listing", http.MethodPost, "listing", listings, &out); err != nil {
		return nil, fmt.Errorf("wisersell create listings: %w", err)
	}
	return out, nil
}

// Pause waits between page downloads.
func (c *Client) Pause(ctx context.Context, d time.Duration) error {
	return c.fetcher.Pacer().Pause(ctx, d)
}
