package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// This file contains unit tests for the remote account client: client
// side validation, status mapping and session secret persistence.

type accountFixture struct {
	client  *AccountClient
	storage *MemoryFlagStorage
}

func newFakeAccountBackend(t *testing.T, register func(*httprouter.Router)) *accountFixture {
	t.Helper()
	router := httprouter.New()
	register(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	config := &Config{
		Remote: RemoteConfig{
			Endpoint:       server.URL,
			ProjectID:      "test-project",
			RequestTimeout: 5 * time.Second,
		},
	}
	storage := NewMemoryFlagStorage()
	return &accountFixture{
		client:  NewAccountClient(zap.NewNop(), config, server.Client(), storage),
		storage: storage,
	}
}

// TestAccountClient_RegisterValidation ensures obviously bad input is
// rejected before any request leaves the device.
func TestAccountClient_RegisterValidation(t *testing.T) {
	fixture := newFakeAccountBackend(t, func(router *httprouter.Router) {
		router.POST("/account", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			t.Fatal("request should not reach the backend")
		})
	})

	cases := []struct {
		name, userName, email, password string
	}{
		{"missing name", "", "ana@books.test", "secret-pass"},
		{"missing email", "Ana", "", "secret-pass"},
		{"bad email format", "Ana", "not-an-email", "secret-pass"},
		{"short password", "Ana", "ana@books.test", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fixture.client.Register(context.Background(), tc.userName, tc.email, tc.password)
			assert.Error(t, err)
		})
	}
}

// TestAccountClient_Register ensures the backend generates the user id
// and a conflict maps to the email-in-use error.
func TestAccountClient_Register(t *testing.T) {
	fixture := newFakeAccountBackend(t, func(router *httprouter.Router) {
		router.POST("/account", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			assert.Equal(t, "test-project", r.Header.Get("X-Appwrite-Project"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "unique()", body["userId"])

			if body["email"] == "taken@books.test" {
				w.WriteHeader(http.StatusConflict)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"$id":   "u:1",
				"name":  body["name"],
				"email": body["email"],
			})
		})
	})

	account, err := fixture.client.Register(context.Background(), "Ana", "ana@books.test", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "u:1", account.ID)
	assert.Equal(t, "Ana", account.Name)

	_, err = fixture.client.Register(context.Background(), "Ana", "taken@books.test", "secret-pass")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

// TestAccountClient_Login ensures a confirmed session persists its
// secret and bad credentials map to the dedicated error without touching
// any previously stored secret.
func TestAccountClient_Login(t *testing.T) {
	fixture := newFakeAccountBackend(t, func(router *httprouter.Router) {
		router.POST("/account/sessions/email", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["password"] != "secret-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"$id": "s:1", "secret": "new-session-secret"})
		})
	})

	err := fixture.client.Login(context.Background(), "ana@books.test", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = fixture.storage.Get(context.Background(), SessionKey)
	assert.ErrorIs(t, err, ErrFlagNotFound)

	require.NoError(t, fixture.client.Login(context.Background(), "ana@books.test", "secret-pass"))
	secret, err := fixture.storage.Get(context.Background(), SessionKey)
	require.NoError(t, err)
	assert.Equal(t, "new-session-secret", secret)
}

// TestAccountClient_Me ensures the stored secret rides the session
// header and its absence short-circuits to the not-logged-in error.
func TestAccountClient_Me(t *testing.T) {
	fixture := newFakeAccountBackend(t, func(router *httprouter.Router) {
		router.GET("/account", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			if r.Header.Get("X-Appwrite-Session") != "stored-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"$id": "u:1", "name": "Ana", "email": "ana@books.test"})
		})
	})

	_, err := fixture.client.Me(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, fixture.storage.Set(context.Background(), SessionKey, "stored-secret"))
	account, err := fixture.client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ana@books.test", account.Email)

	// An expired secret is still cached locally but rejected remotely.
	require.NoError(t, fixture.storage.Set(context.Background(), SessionKey, "expired-secret"))
	_, err = fixture.client.Me(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

// TestAccountClient_Logout ensures the local secret is dropped even when
// the remote session is already gone.
func TestAccountClient_Logout(t *testing.T) {
	status := http.StatusNoContent
	fixture := newFakeAccountBackend(t, func(router *httprouter.Router) {
		router.DELETE("/account/sessions/current", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.WriteHeader(status)
		})
	})

	require.NoError(t, fixture.storage.Set(context.Background(), SessionKey, "stored-secret"))
	require.NoError(t, fixture.client.Logout(context.Background()))
	_, err := fixture.storage.Get(context.Background(), SessionKey)
	assert.ErrorIs(t, err, ErrFlagNotFound)

	// Remote already forgot the session: logout still clears locally.
	status = http.StatusUnauthorized
	require.NoError(t, fixture.storage.Set(context.Background(), SessionKey, "stale-secret"))
	require.NoError(t, fixture.client.Logout(context.Background()))
	_, err = fixture.storage.Get(context.Background(), SessionKey)
	assert.ErrorIs(t, err, ErrFlagNotFound)

	// No session at all short-circuits before any request.
	err = fixture.client.Logout(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

// TestAccountClient_Recover ensures recovery validates the email and
// succeeds on a 2xx response.
func TestAccountClient_Recover(t *testing.T) {
	fixture := newFakeAccountBackend(t, func(router *httprouter.Router) {
		router.POST("/account/recovery", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://app.test/reset", body["url"])
			w.WriteHeader(http.StatusCreated)
		})
	})

	assert.Error(t, fixture.client.Recover(context.Background(), "not-an-email", "https://app.test/reset"))
	assert.NoError(t, fixture.client.Recover(context.Background(), "ana@books.test", "https://app.test/reset"))
}
