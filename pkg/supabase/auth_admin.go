package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Admin endpoints need the service-role key or an AdminTokenResolver; a
// user's token is never sent to them.

func (a *AuthClient) userEndpoint(id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", ErrInvalidUserID
	}
	return a.endpoint("/admin/users/" + id.String()), nil
}

// Invite creates a user and emails them an invite link.
func (a *AuthClient) Invite(ctx context.Context, email string, data any) (*InviteResponse, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}

	body := map[string]any{"email": email}
	if data != nil {
		body["data"] = data
	}

	var invite InviteResponse
	err := a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/invite"),
		body:   body,
		auth:   authAdmin,
	}, &invite)
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// CreateUser creates a user directly, skipping sign up.
func (a *AuthClient) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Email == "" && req.Phone == "" {
		return nil, fmt.Errorf("%w: email or phone is required", ErrInvalidCredentials)
	}

	var user User
	err := a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/admin/users"),
		body:   req,
		auth:   authAdmin,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns one page of users. Pages start at 1; zero values use
// the server defaults.
func (a *AuthClient) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}

	var list userList
	err := a.c.send(ctx, request{
		method: http.MethodGet,
		url:    a.endpoint("/admin/users"),
		query:  query,
		auth:   authAdmin,
	}, &list)
	if err != nil {
		return nil, err
	}
	return list.Users, nil
}

// GetUser fetches a user by id.
func (a *AuthClient) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	endpoint, err := a.userEndpoint(id)
	if err != nil {
		return nil, err
	}

	var user User
	err = a.c.send(ctx, request{
		method: http.MethodGet,
		url:    endpoint,
		auth:   authAdmin,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserAsAdmin changes any user, including role, ban and app metadata.
func (a *AuthClient) UpdateUserAsAdmin(ctx context.Context, id uuid.UUID, update UserUpdate) (*User, error) {
	endpoint, err := a.userEndpoint(id)
	if err != nil {
		return nil, err
	}

	var user User
	err = a.c.send(ctx, request{
		method: http.MethodPut,
		url:    endpoint,
		body:   update,
		auth:   authAdmin,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user.
func (a *AuthClient) DeleteUser(ctx context.Context, id uuid.UUID) error {
	endpoint, err := a.userEndpoint(id)
	if err != nil {
		return err
	}
	return a.c.send(ctx, request{
		method: http.MethodDelete,
		url:    endpoint,
		auth:   authAdmin,
	}, nil)
}

// GenerateLink returns a signup, invite, magic link or recovery link
// without sending any email.
func (a *AuthClient) GenerateLink(ctx context.Context, req GenerateLinkRequest) (*GenerateLinkResponse, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: link type is required", ErrInvalidCredentials)
	}
	if req.Type == LinkTypeSignup && req.Password == "" {
		return nil, fmt.Errorf("%w: password is required for signup links", ErrInvalidCredentials)
	}

	var link GenerateLinkResponse
	err := a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/admin/generate_link"),
		body:   req,
		auth:   authAdmin,
	}, &link)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
