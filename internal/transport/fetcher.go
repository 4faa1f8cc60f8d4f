package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/metrics"
	"github.com/developkariyer/IWApim/pkg/logger"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

const maxErrorBody = 512

type Request struct {
	// Operation labels the call in logs and metrics.
	Operation string
	Method    string
	// Path is joined to the base URL unless it is absolute.
	Path        string
	Query       url.Values
	Header      http.Header
	JSON        interface{}
	Body        []byte
	ContentType string
	Accept      string
	// Anonymous skips the auth engine (pre-signed download links).
	Anonymous bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: decode response: %v", core.ErrData, err)
	}
	return nil
}

type Config struct {
	// Marketplace labels metrics.
	Marketplace string
	BaseURL     string
	Auth        auth.AuthEngine
	Pacer       *pacing.Pacer
	Client      *http.Client
	Logger      logger.Logger
	UserAgent   string
	Header      http.Header
}

// Fetcher serializes the calls of one connector: pace, authorize, send, classify.
type Fetcher struct {
	marketplace string
	baseURL     string
	auth        auth.AuthEngine
	pacer       *pacing.Pacer
	client      *http.Client
	log         logger.Logger
	userAgent   string
	header      http.Header
}

func New(cfg Config) *Fetcher {
	if cfg.Pacer == nil {
		cfg.Pacer = pacing.New(pacing.Policy{}, nil)
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Fetcher{
		marketplace: cfg.Marketplace,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		auth:        cfg.Auth,
		pacer:       cfg.Pacer,
		client:      cfg.Client,
		log:         cfg.Logger,
		userAgent:   cfg.UserAgent,
		header:      cfg.Header,
	}
}

func (f *Fetcher) Pacer() *pacing.Pacer {
	return f.pacer
}

func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Do retries transport failures, 5xx and 429 with linear backoff up to MaxRetries.
// Other 4xx answers come back as *StatusError without a retry.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Operation == "" {
		req.Operation = req.Path
	}
	maxRetries := f.pacer.Policy().MaxRetries

	for attempt := 0; ; attempt++ {
		if err := f.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		httpReq, err := f.build(ctx, req)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := f.send(httpReq)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		metrics.RecordRequest(f.marketplace, req.Operation, status, time.Since(start))

		var retryErr error
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request was cancelled: %w", ctx.Err())
			}
			retryErr = fmt.Errorf("%w: %s: %w", core.ErrTransport, req.Operation, err)
		case resp.StatusCode == http.StatusTooManyRequests:
			retryErr = fmt.Errorf("%w: %w", core.ErrRateLimit, statusError(req.Operation, resp))
		case resp.StatusCode >= 500:
			retryErr = fmt.Errorf("%w: %w", core.ErrTransport, statusError(req.Operation, resp))
		case resp.StatusCode >= 400:
			se := statusError(req.Operation, resp)
			f.log.Warn("%v", se)
			return nil, se
		default:
			return resp, nil
		}

		if attempt >= maxRetries {
			f.log.Error("%s: giving up after %d attempts: %v", req.Operation, attempt+1, retryErr)
			return nil, retryErr
		}
		failures := f.pacer.Failure()
		f.log.Warn("%s: attempt %d failed (failures=%d, backoff %s): %v",
			req.Operation, attempt+1, failures, f.pacer.BackoffDelay(), retryErr)
		if err := f.pacer.Backoff(ctx); err != nil {
			return nil, err
		}
	}
}

// JSON is a shortcut for Do followed by Decode.
func (f *Fetcher) JSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := f.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(out)
}

func (f *Fetcher) build(ctx context.Context, req Request) (*http.Request, error) {
	target, err := f.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := req.ContentType
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range f.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	accept := req.Accept
	if accept == "" && httpReq.Header.Get("Accept") == "" {
		accept = "application/json"
	}
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	if f.auth != nil && !req.Anonymous {
		if err := f.auth.SetApiKey(ctx, httpReq); err != nil {
			return nil, err
		}
	}
	return httpReq, nil
}

func (f *Fetcher) resolve(path string, query url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = f.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (f *Fetcher) send(req *http.Request) (*Response, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func statusError(operation string, resp *Response) *StatusError {
	body := resp.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
}
