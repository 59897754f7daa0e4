package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// RPCClient calls Postgres functions exposed by PostgREST at
// {url}/rest/v1/rpc/{procedure}. The client returned by New calls as admin;
// AsUser returns a copy that forwards the user's token instead so row level
// security applies.
type RPCClient struct {
	c      *Client
	admin  bool
	schema string
}

// AsUser returns a copy of r that authenticates with the resolved user token.
func (r *RPCClient) AsUser() *RPCClient {
	cp := *r
	cp.admin = false
	return &cp
}

// ForSchema returns a copy of r that targets a schema other than the
// project's default one.
func (r *RPCClient) ForSchema(schema string) *RPCClient {
	cp := *r
	cp.schema = schema
	return &cp
}

// Call invokes procedure with params encoded as a JSON object and decodes
// the result into out. Nil params send an empty object; nil out discards the
// result.
func (r *RPCClient) Call(ctx context.Context, procedure string, params, out any) error {
	procedure = strings.TrimSpace(procedure)
	if procedure == "" || strings.Contains(procedure, "/") {
		return ErrInvalidProcedure
	}
	if params == nil {
		params = struct{}{}
	}

	auth := authUser
	if r.admin {
		auth = authAdmin
	}

	var header http.Header
	if r.schema != "" {
		header = http.Header{
			"Content-Profile": {r.schema},
			"Accept-Profile":  {r.schema},
		}
	}

	return r.c.send(ctx, request{
		method: http.MethodPost,
		url:    r.c.opts.RestURL() + "/rpc/" + url.PathEscape(procedure),
		body:   params,
		auth:   auth,
		header: header,
	}, out)
}

// Exec invokes procedure and ignores its result.
func (r *RPCClient) Exec(ctx context.Context, procedure string, params any) error {
	return r.Call(ctx, procedure, params, nil)
}
