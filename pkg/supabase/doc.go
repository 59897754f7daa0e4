/*
Package supabase is a client for a Supabase project: GoTrue auth, PostgREST
RPC and verification of the access tokens GoTrue issues.

# Client

Build Options with DefaultOptions, adjust them, and create a Client:

	opts := supabase.DefaultOptions("https://abcd.supabase.co", anonKey)
	opts.ServiceRoleKey = serviceRoleKey

	client, err := supabase.New(opts)
	if err != nil {
		return err
	}
	client.Start()       // background JWKS refresh
	defer client.Close()

Every request carries the anon key in the "apikey" header. The bearer token
depends on the call:

  - Session endpoints (sign in, sign up, OTP, recover) send the anon key.
  - User endpoints (GetCurrentUser, Logout, RPC via AsUser) send the token
    from the TokenResolver, falling back to the anon key.
  - Admin endpoints and RPC send the AdminTokenResolver's token or the
    service-role key, and fail with ErrNoAdminToken when neither exists.

The default TokenResolver reads the token stored with WithAccessToken, so a
server can forward each caller's identity:

	ctx = supabase.WithAccessToken(ctx, bearer)
	user, err := client.Auth.GetCurrentUser(ctx)

# Token verification

With EnableAsymmetricKeys (the default) tokens are verified against the
project's JWKS, fetched from {url}/auth/v1/.well-known/jwks.json, cached and
refreshed with jitter. Projects still on the legacy shared secret set
EnableAsymmetricKeys to false and JWTSecret instead.

	if !client.IsValidTokenString(ctx, token, "authenticated") {
		return errUnauthorized
	}

ValidateToken returns the verified claims and a *jwtx.ValidationError on
failure. Use jwtx.IsUnavailable to tell "keys could not be fetched" apart
from "the token is bad".

# Errors

Non-2xx answers are returned as *APIError, carrying the status and whatever
GoTrue or PostgREST put in the body:

	_, err := client.Auth.GetUser(ctx, id)
	if supabase.IsNotFound(err) {
		...
	}
*/
package supabase
