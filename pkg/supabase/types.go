package supabase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// GoTrue Response Types
// ============================================================================

// Session is what GoTrue returns from /token and /signup.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// Sessions without an expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && !now.Before(time.Unix(s.ExpiresAt, 0))
}

// User is a GoTrue user record.
type User struct {
	ID               uuid.UUID      `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	PhoneConfirmedAt *time.Time     `json:"phone_confirmed_at,omitempty"`
	ConfirmedAt      *time.Time     `json:"confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	BannedUntil      *time.Time     `json:"banned_until,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	IsAnonymous      bool           `json:"is_anonymous,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      AppMetadata    `json:"app_metadata"`
	Identities       []Identity     `json:"identities,omitempty"`
}

// AppMetadata is the server controlled part of a user.
type AppMetadata struct {
	Provider  string   `json:"provider,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// Identity links a user to one sign-in provider. ID is the provider's own
// subject (not a UUID for most providers).
type Identity struct {
	ID           string         `json:"id"`
	IdentityID   uuid.UUID      `json:"identity_id"`
	UserID       uuid.UUID      `json:"user_id"`
	Provider     string         `json:"provider"`
	IdentityData map[string]any `json:"identity_data,omitempty"`
	Email        string         `json:"email,omitempty"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Settings are the project's public auth settings.
type Settings struct {
	External          map[string]bool `json:"external"`
	DisableSignup     bool            `json:"disable_signup"`
	MailerAutoconfirm bool            `json:"mailer_autoconfirm"`
	PhoneAutoconfirm  bool            `json:"phone_autoconfirm"`
	SMSProvider       string          `json:"sms_provider,omitempty"`
}

// ProviderEnabled reports whether an external provider such as "github" is on.
func (s *Settings) ProviderEnabled(provider string) bool {
	return s.External[provider]
}

type userList struct {
	Users []User `json:"users"`
	Aud   string `json:"aud,omitempty"`
}

// InviteResponse is the user record created by an invite.
type InviteResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`
	InvitedAt          *time.Time `json:"invited_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// GenerateLinkResponse is the user plus the generated link properties.
type GenerateLinkResponse struct {
	User

	ActionLink       string   `json:"action_link"`
	EmailOTP         string   `json:"email_otp"`
	HashedToken      string   `json:"hashed_token"`
	VerificationType LinkType `json:"verification_type"`
	RedirectTo       string   `json:"redirect_to"`
}

// ============================================================================
// GoTrue Request Types
// ============================================================================

type credentials struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// signUpRequest registers a user with an email or a phone number.
type signUpRequest struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
	Data     any    `json:"data,omitempty"`
}

// CreateUserRequest is the admin variant of sign up.
type CreateUserRequest struct {
	Role         string       `json:"role,omitempty"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Password     string       `json:"password,omitempty"`
	EmailConfirm bool         `json:"email_confirm,omitempty"`
	PhoneConfirm bool         `json:"phone_confirm,omitempty"`
	UserMetadata any          `json:"user_metadata,omitempty"`
	AppMetadata  *AppMetadata `json:"app_metadata,omitempty"`
	BanDuration  string       `json:"ban_duration,omitempty"`
}

// OTPRequest starts a passwordless sign in. GoTrue creates unknown users
// unless CreateUser is explicitly false.
type OTPRequest struct {
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	CreateUser      *bool  `json:"create_user,omitempty"`
	Data            any    `json:"data,omitempty"`
	EmailRedirectTo string `json:"-"`
}

// VerifyOTPRequest completes a passwordless sign in, either with the token
// hash from a link or with the code sent to the email or phone.
type VerifyOTPRequest struct {
	Type      OTPType `json:"type"`
	TokenHash string  `json:"token_hash,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Token     string  `json:"token,omitempty"`
}

type OTPType string

const (
	OTPTypeEmail       OTPType = "email"
	OTPTypeSMS         OTPType = "sms"
	OTPTypeMagicLink   OTPType = "magiclink"
	OTPTypeSignup      OTPType = "signup"
	OTPTypeInvite      OTPType = "invite"
	OTPTypeRecovery    OTPType = "recovery"
	OTPTypeEmailChange OTPType = "email_change"
)

// GenerateLinkRequest asks GoTrue for an action link without sending mail.
type GenerateLinkRequest struct {
	Type       LinkType `json:"type"`
	Email      string   `json:"email"`
	Password   string   `json:"password,omitempty"`
	Data       any      `json:"data,omitempty"`
	RedirectTo string   `json:"redirect_to,omitempty"`
}

// LinkType is the kind of link /admin/generate_link produces.
type LinkType string

const (
	LinkTypeSignup             LinkType = "signup"
	LinkTypeInvite             LinkType = "invite"
	LinkTypeMagicLink          LinkType = "magiclink"
	LinkTypeRecovery           LinkType = "recovery"
	LinkTypeEmailChangeCurrent LinkType = "email_change_current"
	LinkTypeEmailChangeNew     LinkType = "email_change_new"
)

// UserUpdate changes the signed-in user, or any user when sent as admin.
// Nil fields are left untouched.
type UserUpdate struct {
	Email        *string      `json:"email,omitempty"`
	Phone        *string      `json:"phone,omitempty"`
	Password     *string      `json:"password,omitempty"`
	Nonce        *string      `json:"nonce,omitempty"`
	Role         *string      `json:"role,omitempty"`
	BanDuration  *string      `json:"ban_duration,omitempty"`
	EmailConfirm *bool        `json:"email_confirm,omitempty"`
	PhoneConfirm *bool        `json:"phone_confirm,omitempty"`
	Data         any          `json:"data,omitempty"`
	UserMetadata any          `json:"user_metadata,omitempty"`
	AppMetadata  *AppMetadata `json:"app_metadata,omitempty"`
}

// DecodeMetadata converts a metadata map (User.UserMetadata,
// Identity.IdentityData) into a caller supplied type.
func DecodeMetadata[T any](m map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("supabase: encode metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("supabase: decode metadata: %w", err)
	}
	return out, nil
}
