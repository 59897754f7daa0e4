package jwtx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/supabase/pkg/slogx"
)

var unverifiedParser = jwt.NewParser()

// DecodeUnverified reads the payload of token without checking anything
// about it. It is meant for logging and display only. An empty token yields
// nil silently; a token that cannot be decoded yields nil and a warning on
// the context logger. The header's algorithm is not looked at, so tokens
// signed with algorithms this package does not know still decode.
func DecodeUnverified(ctx context.Context, token string) *ClaimSet {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	claims, err := decodePayload(token)
	if err != nil {
		slogx.FromContext(ctx).Warn("jwt decode failed", "err", err)
		return nil
	}
	return newClaimSet(claims)
}

func decodePayload(token string) (jwt.MapClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token must have three segments")
	}

	rawHeader, err := unverifiedParser.DecodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	var header map[string]any
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	rawClaims, err := unverifiedParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(rawClaims, &claims); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return claims, nil
}

// DecodeAndVerify validates token and falls back to DecodeUnverified when
// the token itself is rejected. The returned error is non-nil only when the
// validator could not reach a verdict (IsUnavailable); in that case no
// claims are returned so an outage never turns into an unverified identity.
//
// The second return distinguishes verified claims from the fallback.
func DecodeAndVerify(ctx context.Context, v *Validator, token string) (*ClaimSet, bool, error) {
	vc, err := v.Validate(ctx, token)
	switch {
	case err == nil:
		return &vc.ClaimSet, true, nil
	case IsUnavailable(err):
		return nil, false, err
	default:
		slogx.FromContext(ctx).Debug("token rejected, decoding unverified", "err", err)
		return DecodeUnverified(ctx, token), false, nil
	}
}
