package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-for-roomchat")

func TestCredentials_ResolvePriority(t *testing.T) {
	all := Credentials{Header: "h", InBand: "a", Cookie: "c"}
	tests := []struct {
		name  string
		class ClientClass
		creds Credentials
		want  string
	}{
		{"mobile prefers header", ClassMobile, all, "h"},
		{"mobile falls back to in-band", ClassMobile, Credentials{InBand: "a", Cookie: "c"}, "a"},
		{"mobile uses cookie last", ClassMobile, Credentials{Cookie: "c"}, "c"},
		{"web prefers cookie", ClassWeb, all, "c"},
		{"web falls back to header", ClassWeb, Credentials{Header: "h", InBand: "a"}, "h"},
		{"web uses in-band last", ClassWeb, Credentials{InBand: "a"}, "a"},
		{"nothing presented", ClassWeb, Credentials{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.creds.Resolve(tt.class))
		})
	}
}

func TestFromRequest(t *testing.T) {
	req := require.New(t)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc.def")
	r.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})

	creds := FromRequest(r, "token")
	req.Equal("abc.def", creds.Header)
	req.Equal("cookie-token", creds.Cookie)
	req.Empty(creds.InBand)

	req.Empty(BearerToken("Basic Zm9vOmJhcg=="))
	req.Equal("xyz", BearerToken("bearer xyz"))
	req.Equal(ClassMobile, ParseClientClass(" Mobile "))
	req.Equal(ClassWeb, ParseClientClass(""))
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)

	// Given a token issued for u1
	token, err := NewIssuer(secret, "roomchat").Issue("u1", time.Hour)
	req.NoError(err)

	// When it is verified with the same secret
	id, err := NewJWTVerifier(secret, "roomchat").Verify(context.Background(), token)

	// Then the identity is recovered
	req.NoError(err)
	req.Equal(chat.Identity("u1"), id)
}

func TestJWTVerifier_Rejections(t *testing.T) {
	valid, err := NewIssuer(secret, "roomchat").Issue("u1", time.Hour)
	require.NoError(t, err)

	expiredIssuer := NewIssuer(secret, "roomchat")
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue("u1", time.Minute)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noUser, err := NewIssuer(secret, "roomchat").Issue("", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *JWTVerifier
		token    string
		want     error
	}{
		{"missing", NewJWTVerifier(secret, ""), "", chat.ErrMissingCredential},
		{"garbage", NewJWTVerifier(secret, ""), "not-a-token", chat.ErrInvalidCredential},
		{"wrong secret", NewJWTVerifier([]byte("other"), ""), valid, chat.ErrInvalidCredential},
		{"wrong issuer", NewJWTVerifier(secret, "someone-else"), valid, chat.ErrInvalidCredential},
		{"expired", NewJWTVerifier(secret, ""), expired, chat.ErrInvalidCredential},
		{"alg none", NewJWTVerifier(secret, ""), unsigned, chat.ErrInvalidCredential},
		{"no user", NewJWTVerifier(secret, ""), noUser, chat.ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, chat.ErrAuthentication)
		})
	}
}
