package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/supabase/internal/cli"
	"github.com/aussiebroadwan/supabase/pkg/jwtx"
	"github.com/aussiebroadwan/supabase/pkg/jwtx/jwxtest"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := cli.Execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func newProject(t *testing.T) *jwxtest.Issuer {
	t.Helper()
	iss := jwxtest.NewIssuer()
	t.Cleanup(iss.Close)

	t.Setenv("SUPABASE_URL", iss.URL())
	t.Setenv("SUPABASE_API_KEY", "anon-key")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-role-key")
	t.Setenv("SUPABASE_LOG_LEVEL", "error")
	return iss
}

func TestDecode(t *testing.T) {
	iss := jwxtest.NewIssuer()
	defer iss.Close()
	token := iss.Token(iss.Claims("user-1"))

	code, out, _ := run(t, "decode", token)
	require.Equal(t, 0, code)

	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "authenticated", claims["role"])
}

func TestDecode_Stdin(t *testing.T) {
	iss := jwxtest.NewIssuer()
	defer iss.Close()

	var out bytes.Buffer
	root := cli.NewRootCmd(&out, io.Discard)
	root.SetIn(strings.NewReader(iss.Token(iss.Claims("user-1")) + "\n"))
	root.SetArgs([]string{"decode", "-"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), `"sub": "user-1"`)
}

func TestDecode_Malformed(t *testing.T) {
	code, _, errOut := run(t, "decode", "not-a-token")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "could not be decoded")
}

func TestValidate(t *testing.T) {
	iss := newProject(t)
	token := iss.Token(iss.Claims("user-1"))

	code, out, errOut := run(t, "validate", token, "--role", "authenticated")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "valid")
	require.Contains(t, out, "sub:  user-1")

	code, _, errOut = run(t, "validate", token, "--role", "service_role")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, `want "service_role"`)

	claims := iss.Claims("user-1")
	claims["aud"] = "someone-else"
	code, _, errOut = run(t, "validate", iss.Token(claims))
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "audience mismatch")
}

func TestValidate_KeysUnavailable(t *testing.T) {
	iss := newProject(t)
	token := iss.Token(iss.Claims("user-1"))
	iss.FailWith(http.StatusServiceUnavailable)

	code, _, errOut := run(t, "validate", token)
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "signing keys unavailable")
}

func TestValidate_MissingConfig(t *testing.T) {
	code, _, errOut := run(t, "validate", "token")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "invalid options")
}

func TestJWKS(t *testing.T) {
	iss := newProject(t)
	iss.AddES256Key("test-key-2")

	code, out, errOut := run(t, "jwks")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "KID")
	require.Contains(t, out, jwxtest.DefaultKID)
	require.Contains(t, out, "test-key-2")
	require.Contains(t, out, "ES256")

	code, out, errOut = run(t, "jwks", "--pem")
	require.Equal(t, 0, code, errOut)
	require.Equal(t, 2, strings.Count(out, "-----BEGIN PUBLIC KEY-----"))
	require.Contains(t, out, "# kid="+jwxtest.DefaultKID)
}

func TestRPC(t *testing.T) {
	iss := newProject(t)

	var auth, profile string
	iss.Handle("/rest/v1/rpc/echo", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		profile = r.Header.Get("Accept-Profile")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, r.Body)
	}))

	code, out, errOut := run(t, "rpc", "echo", "--params", `{"n":1}`, "--schema", "api")
	require.Equal(t, 0, code, errOut)
	require.JSONEq(t, `{"n":1}`, out)
	require.Equal(t, "Bearer service-role-key", auth)
	require.Equal(t, "api", profile)

	code, _, errOut = run(t, "rpc", "echo", "--token", "user-token")
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "Bearer user-token", auth)

	code, _, errOut = run(t, "rpc", "echo", "--params", "{nope")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "not valid JSON")
}

func TestKeygen(t *testing.T) {
	t.Run("ES256", func(t *testing.T) {
		code, out, errOut := run(t, "keygen", "--kid", "local-1")
		require.Equal(t, 0, code, errOut)

		pemKey, doc, ok := strings.Cut(out, "-----END PRIVATE KEY-----\n")
		require.True(t, ok)

		signer, err := jwtx.NewSignerES256("local-1", []byte(pemKey+"-----END PRIVATE KEY-----\n"))
		require.NoError(t, err)

		set, err := jwtx.ParseKeySet([]byte(doc))
		require.NoError(t, err)
		require.Equal(t, []string{"local-1"}, set.IDs())

		// The published key verifies what the private key signs.
		v, err := jwtx.NewValidator(jwtx.StaticKeys{Set: set}, jwtx.ValidationConfig{
			Algorithms:          []string{"ES256"},
			RequireSignedTokens: true,
		})
		require.NoError(t, err)
		require.True(t, v.IsValid(context.Background(), jwxtest.Sign(signer, jwt.MapClaims{"sub": "x"})))
	})

	t.Run("HS256", func(t *testing.T) {
		code, out, errOut := run(t, "keygen", "--alg", "hs256")
		require.Equal(t, 0, code, errOut)
		require.GreaterOrEqual(t, len(strings.TrimSpace(out)), 32)
	})

	t.Run("unsupported", func(t *testing.T) {
		code, _, errOut := run(t, "keygen", "--alg", "RS256")
		require.Equal(t, 1, code)
		require.Contains(t, errOut, "unsupported algorithm")
	})
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	newProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	var out, errOut bytes.Buffer
	go func() {
		done <- cli.Execute(ctx, []string{"serve", "--addr", "127.0.0.1:0"}, &out, &errOut)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServe_BadAddr(t *testing.T) {
	newProject(t)

	code, _, errOut := run(t, "serve", "--addr", "not-an-addr")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "listen")
}
