package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityProvider serves discovery and a one-key JWKS for the test issuer.
type identityProvider struct {
	srv *httptest.Server
	key *rsa.PrivateKey
}

func newIdentityProvider(t *testing.T) *identityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &identityProvider{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                                idp.srv.URL,
			"jwks_uri":                              idp.srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (idp *identityProvider) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(idp.key)
	require.NoError(t, err)
	return raw
}

func TestOIDCMiddleware(t *testing.T) {
	idp := newIdentityProvider(t)
	v, err := NewOIDCVerifier(context.Background(), idp.srv.URL)
	require.NoError(t, err)

	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserID(r.Context())))
	}))
	call := func(tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	exp := time.Now().Add(time.Minute).Unix()

	rec := call(idp.sign(t, jwt.MapClaims{"iss": idp.srv.URL, "sub": "usher-7", "aud": "door-app", "exp": exp, "role": "usher"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usher-7", rec.Body.String())

	hs, err := SignToken([]byte(secret), "usher-7", "", time.Minute)
	require.NoError(t, err)
	for name, tok := range map[string]string{
		"wrong issuer": idp.sign(t, jwt.MapClaims{"iss": "https://elsewhere.example", "sub": "usher-7", "exp": exp}),
		"expired":      idp.sign(t, jwt.MapClaims{"iss": idp.srv.URL, "sub": "usher-7", "exp": time.Now().Add(-time.Minute).Unix()}),
		"shared key":   hs,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, call(tok).Code)
		})
	}
}

func TestOIDCVerifierClaims(t *testing.T) {
	idp := newIdentityProvider(t)
	v, err := NewOIDCVerifier(context.Background(), idp.srv.URL)
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), idp.sign(t, jwt.MapClaims{
		"iss": idp.srv.URL, "sub": "screen-1", "exp": time.Now().Add(time.Minute).Unix(), "role": "display",
	}))
	require.NoError(t, err)
	assert.Equal(t, "screen-1", claims.Subject)
	assert.Equal(t, "display", claims.Role)
	assert.Equal(t, idp.srv.URL, claims.Issuer)

	_, err = v.Verify(context.Background(), "")
	assert.Error(t, err)
}

func TestNewOIDCVerifierFailsWithoutDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewOIDCVerifier(context.Background(), srv.URL)
	assert.Error(t, err)
}
