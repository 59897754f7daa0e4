package jwtx_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
	"github.com/aussiebroadwan/supabase/pkg/slogx"
)

func captureLogs(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return slogx.WithContext(context.Background(), logger), &buf
}

func TestDecodeUnverified(t *testing.T) {
	iss := newIssuer(t)

	t.Run("empty token is silent", func(t *testing.T) {
		ctx, logs := captureLogs(t)
		require.Nil(t, jwtx.DecodeUnverified(ctx, ""))
		require.Empty(t, logs.String())
	})

	t.Run("malformed token warns", func(t *testing.T) {
		ctx, logs := captureLogs(t)
		require.Nil(t, jwtx.DecodeUnverified(ctx, "definitely.not.jwt"))
		require.Contains(t, logs.String(), "level=WARN")
		require.Contains(t, logs.String(), "jwt decode failed")
	})

	t.Run("unknown algorithm still decodes", func(t *testing.T) {
		enc := base64.RawURLEncoding.EncodeToString
		token := enc([]byte(`{"alg":"XYZ","typ":"JWT"}`)) + "." + enc([]byte(`{"sub":"user"}`)) + ".c2ln"

		ctx, logs := captureLogs(t)
		c := jwtx.DecodeUnverified(ctx, token)
		require.NotNil(t, c)
		require.Equal(t, "user", c.Subject())
		require.Empty(t, logs.String())
	})

	t.Run("wrong segment count warns", func(t *testing.T) {
		ctx, logs := captureLogs(t)
		require.Nil(t, jwtx.DecodeUnverified(ctx, "abc.def"))
		require.Contains(t, logs.String(), "three segments")
	})

	t.Run("expired token still decodes", func(t *testing.T) {
		claims := iss.Claims("user-9")
		claims["exp"] = epoch.Add(-24 * time.Hour).Unix()

		c := jwtx.DecodeUnverified(context.Background(), iss.Token(claims))
		require.NotNil(t, c)
		require.Equal(t, "user-9", c.Subject())
		require.Equal(t, "user-9", c.Map()["sub"])
	})
}

func TestDecodeAndVerify(t *testing.T) {
	iss := newIssuer(t)
	v := newValidator(t, iss)

	t.Run("valid token is verified", func(t *testing.T) {
		c, verified, err := jwtx.DecodeAndVerify(context.Background(), v, iss.Token(iss.Claims("user-1")))
		require.NoError(t, err)
		require.True(t, verified)
		require.Equal(t, "user-1", c.Subject())
	})

	t.Run("rejected token falls back to unverified claims", func(t *testing.T) {
		claims := iss.Claims("user-2")
		claims["exp"] = epoch.Add(-time.Hour).Unix()

		c, verified, err := jwtx.DecodeAndVerify(context.Background(), v, iss.Token(claims))
		require.NoError(t, err)
		require.False(t, verified)
		require.NotNil(t, c)
		require.Equal(t, "user-2", c.Subject())
	})

	t.Run("garbage yields nothing", func(t *testing.T) {
		c, verified, err := jwtx.DecodeAndVerify(context.Background(), v, "garbage")
		require.NoError(t, err)
		require.False(t, verified)
		require.Nil(t, c)
	})
}

func TestDecodeAndVerify_UnavailableIsNotDegraded(t *testing.T) {
	iss := newIssuer(t)
	token := iss.Token(iss.Claims("user"))
	iss.FailWith(http.StatusBadGateway)
	v := newValidator(t, iss)

	c, verified, err := jwtx.DecodeAndVerify(context.Background(), v, token)
	require.True(t, jwtx.IsUnavailable(err))
	require.False(t, verified)
	require.Nil(t, c)
}

func TestUserMetadataAs(t *testing.T) {
	iss := newIssuer(t)

	type profile struct {
		DisplayName string `json:"display_name"`
		Tier        int    `json:"tier"`
	}

	claims := iss.Claims("user")
	claims["user_metadata"] = map[string]any{"display_name": "Ada", "tier": 3}
	c := jwtx.DecodeUnverified(context.Background(), iss.Token(claims))

	p, err := jwtx.UserMetadataAs[profile](c)
	require.NoError(t, err)
	require.Equal(t, profile{DisplayName: "Ada", Tier: 3}, p)

	_, err = jwtx.ClaimAs[string](c, "missing")
	require.Error(t, err)

	_, err = jwtx.ClaimAs[int](c, "sub")
	require.Error(t, err)
}
