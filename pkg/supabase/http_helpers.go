package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// authMode selects the bearer token sent with a request.
type authMode int

const (
	// authAnon sends the anon key, for endpoints that establish a session.
	authAnon authMode = iota
	// authUser sends the resolved user token, or the anon key without one.
	authUser
	// authAdmin sends the admin token or service-role key, never the anon key.
	authAdmin
)

type request struct {
	method string
	url    string
	query  url.Values
	body   any // JSON encoded when non-nil
	auth   authMode
	token  string // explicit user token, bypasses the resolver
	header http.Header
}

// bearer picks the Authorization token for r.
func (c *Client) bearer(ctx context.Context, r request) (string, error) {
	if r.token != "" {
		return r.token, nil
	}

	switch r.auth {
	case authAdmin:
		if c.admin != nil {
			if token := c.admin.AdminToken(ctx); token != "" {
				return token, nil
			}
		}
		if c.opts.ServiceRoleKey != "" {
			return c.opts.ServiceRoleKey, nil
		}
		return "", ErrNoAdminToken
	case authUser:
		if c.tokens != nil {
			if token := c.tokens.Token(ctx); token != "" {
				return token, nil
			}
		}
	}
	return c.opts.APIKey, nil
}

// do builds and sends r. The caller owns the response body.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	token, err := c.bearer(ctx, r)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := r.url
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.opts.APIKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range r.header {
		req.Header[key] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// send performs r and decodes a 2xx body into out. A nil out discards the body.
func (c *Client) send(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// decodeJSON reads the response once, turning non-2xx answers into an
// *APIError and decoding 2xx answers into target.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(resp, bodyBytes)
	}

	if target == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
