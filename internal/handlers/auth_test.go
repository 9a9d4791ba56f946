package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/openblog/apiserver/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email":     "a@x.com",
		"password":  "pw123",
		"firstName": "A",
		"lastName":  "B",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody[handlers.MessageResponse](t, resp)
	assert.Equal(t, "You have successfully signed up. You can sign in now.", body.Message)

	// The stored record holds a hash, never the plaintext password.
	user, err := env.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "pw123", user.PasswordHash)
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "pw123", "A", "B")

	resp := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email":    "a@x.com",
		"password": "other",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	body := decodeBody[handlers.MessageResponse](t, resp)
	assert.Equal(t, "This email is in use.", body.Message)
}

func TestSignupEmailCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "pw123", "A", "B")

	resp := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email":    "A@X.COM",
		"password": "other",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	body := decodeBody[handlers.MessageResponse](t, resp)
	assert.Equal(t, "This email is in use.", body.Message)
}

func TestSignupMissingFields(t *testing.T) {
	env := newTestEnv(t)

	for _, payload := range []map[string]string{
		{"password": "pw123"},
		{"email": "a@x.com"},
		{},
	} {
		resp := env.do(t, http.MethodPost, "/api/signup", "", payload)
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		body := decodeBody[handlers.MessageResponse](t, resp)
		assert.Equal(t, "You must provide both email and password.", body.Message)
	}
}

func TestSignin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "pw123", "A", "B")

	resp := env.do(t, http.MethodPost, "/api/signin", "", map[string]string{
		"email":    "a@x.com",
		"password": "pw123",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody[handlers.SigninResponse](t, resp)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "A B", body.Username)

	// The issued token resolves back to the account.
	user, err := env.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	subject, err := env.tokens.Verify(body.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
}

func TestSigninFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "pw123", "A", "B")

	wrongPassword := env.do(t, http.MethodPost, "/api/signin", "", map[string]string{
		"email":    "a@x.com",
		"password": "nope",
	})
	unknownEmail := env.do(t, http.MethodPost, "/api/signin", "", map[string]string{
		"email":    "nobody@x.com",
		"password": "pw123",
	})

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// Identical responses: no hint whether the email exists.
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestVerifyJWT(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	resp := env.do(t, http.MethodGet, "/api/verify_jwt", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody[handlers.VerifyResponse](t, resp)
	assert.Equal(t, "A B", body.Username)
}

func TestVerifyJWTRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	cases := map[string]string{
		"missing":   "",
		"garbage":   "not.a.token",
		"truncated": token[:len(token)-8],
	}
	for name, badToken := range cases {
		t.Run(name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/verify_jwt", badToken, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestBearerPrefixAccepted(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "a@x.com", "pw123", "A", "B")

	resp := env.do(t, http.MethodGet, "/api/verify_jwt", "Bearer "+token, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestTokenFromDeletedUserRejected(t *testing.T) {
	env := newTestEnv(t)

	// A structurally valid token whose subject has no account behind it.
	token, err := env.tokens.Issue(12345)
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/verify_jwt", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
