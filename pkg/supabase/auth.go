package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// AuthClient talks to GoTrue at {url}/auth/v1.
type AuthClient struct {
	c *Client
}

func (a *AuthClient) endpoint(path string) string {
	return a.c.opts.AuthURL() + path
}

// validateCredentials requires a password and exactly one of email or phone.
func validateCredentials(email, phone, password string) error {
	switch {
	case password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	case email == "" && phone == "":
		return fmt.Errorf("%w: email or phone is required", ErrInvalidCredentials)
	case email != "" && phone != "":
		return fmt.Errorf("%w: email and phone cannot both be set", ErrInvalidCredentials)
	}
	return nil
}

// ============================================================================
// Sessions
// ============================================================================

// SignInWithPassword exchanges an email and password for a session.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.passwordGrant(ctx, credentials{Email: email, Password: password})
}

// SignInWithPhone exchanges a phone number and password for a session.
func (a *AuthClient) SignInWithPhone(ctx context.Context, phone, password string) (*Session, error) {
	return a.passwordGrant(ctx, credentials{Phone: phone, Password: password})
}

func (a *AuthClient) passwordGrant(ctx context.Context, creds credentials) (*Session, error) {
	if err := validateCredentials(creds.Email, creds.Phone, creds.Password); err != nil {
		return nil, err
	}
	return a.token(ctx, "password", creds)
}

// RefreshSession trades a refresh token for a new session.
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrInvalidCredentials)
	}
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (a *AuthClient) token(ctx context.Context, grantType string, body any) (*Session, error) {
	var session Session
	err := a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/token"),
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
		auth:   authAnon,
	}, &session)
	if err != nil {
		return nil, err
	}
	return a.stamp(&session), nil
}

// stamp fills ExpiresAt for servers that only send expires_in.
func (a *AuthClient) stamp(s *Session) *Session {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = a.c.now().Unix() + s.ExpiresIn
	}
	return s
}

// SignUp registers a user by email. When the project requires email
// confirmation the returned session carries only User.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, data any) (*Session, error) {
	return a.signUp(ctx, signUpRequest{Email: email, Password: password, Data: data})
}

// SignUpWithPhone registers a user by phone number.
func (a *AuthClient) SignUpWithPhone(ctx context.Context, phone, password string, data any) (*Session, error) {
	return a.signUp(ctx, signUpRequest{Phone: phone, Password: password, Data: data})
}

func (a *AuthClient) signUp(ctx context.Context, req signUpRequest) (*Session, error) {
	if err := validateCredentials(req.Email, req.Phone, req.Password); err != nil {
		return nil, err
	}
	return a.postSignUp(ctx, req)
}

// SignInAnonymously creates an anonymous user and returns its session.
// data, when non-nil, becomes the user's metadata.
func (a *AuthClient) SignInAnonymously(ctx context.Context, data any) (*Session, error) {
	body := map[string]any{}
	if data != nil {
		body["data"] = data
	}
	return a.postSignUp(ctx, body)
}

func (a *AuthClient) postSignUp(ctx context.Context, body any) (*Session, error) {
	var raw json.RawMessage
	err := a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/signup"),
		body:   body,
		auth:   authAnon,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return a.decodeSignUp(raw)
}

// decodeSignUp accepts both answers GoTrue gives to /signup: a session, or
// the bare user when confirmation is still pending.
func (a *AuthClient) decodeSignUp(raw json.RawMessage) (*Session, error) {
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if session.AccessToken != "" {
		return a.stamp(&session), nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &Session{User: &user}, nil
}

// Logout revokes the refresh tokens of the current user's session.
func (a *AuthClient) Logout(ctx context.Context) error {
	return a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/logout"),
		auth:   authUser,
	}, nil)
}

// ============================================================================
// Passwordless
// ============================================================================

// SignInWithOTP sends a one-time code or magic link to an email or phone.
func (a *AuthClient) SignInWithOTP(ctx context.Context, req OTPRequest) error {
	switch {
	case req.Email == "" && req.Phone == "":
		return fmt.Errorf("%w: email or phone is required", ErrInvalidCredentials)
	case req.Email != "" && req.Phone != "":
		return fmt.Errorf("%w: email and phone cannot both be set", ErrInvalidCredentials)
	}

	var query url.Values
	if req.EmailRedirectTo != "" {
		query = url.Values{"redirect_to": {req.EmailRedirectTo}}
	}
	return a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/otp"),
		query:  query,
		body:   req,
		auth:   authAnon,
	}, nil)
}

// VerifyOTP completes a passwordless sign in. Type defaults to email.
func (a *AuthClient) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*Session, error) {
	if req.TokenHash == "" && req.Token == "" {
		return nil, fmt.Errorf("%w: token or token hash is required", ErrInvalidCredentials)
	}
	if req.Token != "" && req.Email == "" && req.Phone == "" {
		return nil, fmt.Errorf("%w: email or phone is required with a token", ErrInvalidCredentials)
	}
	if req.Type == "" {
		req.Type = OTPTypeEmail
	}

	var session Session
	err := a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/verify"),
		body:   req,
		auth:   authAnon,
	}, &session)
	if err != nil {
		return nil, err
	}
	return a.stamp(&session), nil
}

// Recover sends a password recovery email.
func (a *AuthClient) Recover(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}
	return a.c.send(ctx, request{
		method: http.MethodPost,
		url:    a.endpoint("/recover"),
		body:   map[string]string{"email": email},
		auth:   authAnon,
	}, nil)
}

// ============================================================================
// Current user
// ============================================================================

// Settings returns the project's public auth settings.
func (a *AuthClient) Settings(ctx context.Context) (*Settings, error) {
	var settings Settings
	err := a.c.send(ctx, request{
		method: http.MethodGet,
		url:    a.endpoint("/settings"),
		auth:   authAnon,
	}, &settings)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// GetCurrentUser returns the user the resolved access token belongs to.
func (a *AuthClient) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	err := a.c.send(ctx, request{
		method: http.MethodGet,
		url:    a.endpoint("/user"),
		auth:   authUser,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateCurrentUser changes the signed-in user's email, phone, password or
// metadata (UserUpdate.Data).
func (a *AuthClient) UpdateCurrentUser(ctx context.Context, update UserUpdate) (*User, error) {
	var user User
	err := a.c.send(ctx, request{
		method: http.MethodPut,
		url:    a.endpoint("/user"),
		body:   update,
		auth:   authUser,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
