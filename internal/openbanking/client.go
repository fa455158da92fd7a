package openbanking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/textutils"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept in an HTTPError.
const maxErrorBody = 512

// Authenticator obtains and applies provider credentials.
type Authenticator interface {
	// Authenticate returns a fresh credential. previous is the last credential the
	// cache held, possibly nil or expired; flows with refresh tokens may use it.
	Authenticate(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error)
	// Apply sets the credential on an outgoing request.
	Apply(req *http.Request, token *oauth2.Token)
}

// ClientOptions configures a Client. Zero values select defaults.
type ClientOptions struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     logging.Logger
}

// Client performs authenticated JSON calls against one provider. A 401 response
// triggers exactly one credential renewal and one retry of the same request.
type Client struct {
	provider   string
	auth       Authenticator
	creds      *CredentialCache
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// NewClient returns a Client for provider.
func NewClient(provider string, auth Authenticator, creds *CredentialCache, opts ClientOptions) *Client {
	if creds == nil {
		creds = NewCredentialCache(time.Hour)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		provider:   provider,
		auth:       auth,
		creds:      creds,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		logger:     logging.OrDefault(opts.Logger).WithField(logging.FieldProvider, provider),
	}
}

// HTTPClient returns the underlying HTTP client, shared with the authenticator.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Credential returns the cached credential, authenticating when there is none.
func (c *Client) Credential(ctx context.Context) (*oauth2.Token, error) {
	if token, ok := c.creds.Get(); ok {
		return token, nil
	}
	return c.authenticate(ctx, c.creds.Last())
}

// Renew discards the cached credential and authenticates again.
func (c *Client) Renew(ctx context.Context) (*oauth2.Token, error) {
	previous := c.creds.Invalidate()
	return c.authenticate(ctx, previous)
}

func (c *Client) authenticate(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.auth.Authenticate(ctx, previous)
	if err != nil {
		return nil, err
	}
	c.creds.Set(token)
	c.logger.Debug("Obtained provider credential",
		logging.Field{Key: "ttl", Value: c.creds.TTLFor(token).String()})
	return token, nil
}

// GetJSON performs an authenticated GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.DoJSON(ctx, http.MethodGet, url, nil, out)
}

// DoJSON performs an authenticated request with an optional JSON payload and decodes
// the JSON response into out (skipped when out is nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", c.provider, err)
		}
	}

	token, err := c.Credential(ctx)
	if err != nil {
		return err
	}
	status, respBody, err := c.send(ctx, method, url, body, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.logger.Warn("Provider rejected credential, renewing",
			logging.Field{Key: logging.FieldOperation, Value: method + " " + url})
		if token, err = c.Renew(ctx); err != nil {
			return err
		}
		if status, respBody, err = c.send(ctx, method, url, body, token); err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return &AuthError{Provider: c.provider, Status: status, Err: fmt.Errorf("credential rejected after renewal")}
		}
	}

	if status < 200 || status > 299 {
		return &HTTPError{
			Provider: c.provider,
			Method:   method,
			URL:      url,
			Status:   status,
			Body:     textutils.Snippet(string(respBody), maxErrorBody),
		}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return DecodeJSON(respBody, out)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, token *oauth2.Token) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	req, err := NewJSONRequest(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	c.auth.Apply(req, token)
	return Send(c.httpClient, req)
}

// NewJSONRequest builds a request with JSON headers.
func NewJSONRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Send executes req and returns the status code and the full body.
func Send(httpClient *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// DecodeJSON decodes data into out, keeping numbers as json.Number so amounts keep
// their exact decimal text.
func DecodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PostCredentials sends a JSON credential request to an auth endpoint and decodes the
// JSON response into out. decorate, when set, adjusts the request (basic auth).
// Any non-2xx answer is an AuthError.
func PostCredentials(ctx context.Context, httpClient *http.Client, provider, endpoint string, payload any, decorate func(*http.Request), out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to encode credentials: %w", provider, err)
	}
	req, err := NewJSONRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	if decorate != nil {
		decorate(req)
	}
	status, respBody, err := Send(httpClient, req)
	if err != nil {
		return &AuthError{Provider: provider, Err: err}
	}
	if status < 200 || status > 299 {
		return &AuthError{
			Provider: provider,
			Status:   status,
			Err:      fmt.Errorf("%s", textutils.Snippet(string(respBody), maxErrorBody)),
		}
	}
	if err := DecodeJSON(respBody, out); err != nil {
		return &AuthError{Provider: provider, Status: status, Err: err}
	}
	return nil
}
