package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Account represents the authenticated user profile.
type Account struct {
	ID    string `json:"$id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// session mirrors the wire shape of a created session.
type session struct {
	ID     string `json:"$id"`
	Secret string `json:"secret"`
}

// AccountClient drives the remote account API: registration, email
// sessions and password recovery. The active session secret is persisted
// through the flag store so it survives process restarts.
type AccountClient struct {
	logger  *zap.Logger
	config  *Config
	client  *http.Client
	storage FlagStorage
}

// NewAccountClient provides an account client bound to the configured
// remote project.
func NewAccountClient(logger *zap.Logger, config *Config, client *http.Client, storage FlagStorage) *AccountClient {
	if client == nil {
		client = &http.Client{Timeout: config.Remote.RequestTimeout}
	}
	return &AccountClient{
		logger:  logger,
		config:  config,
		client:  client,
		storage: storage,
	}
}

// Register creates a new account then reports the created profile. The
// backend generates the user id. Validation happens client side first so
// obviously bad input never leaves the device.
func (ac *AccountClient) Register(ctx context.Context, name, email, password string) (Account, error) {
	var account Account
	if err := ValidateRegistration(name, email, password); err != nil {
		return account, err
	}

	body := map[string]string{
		"userId":   "unique()",
		"email":    email,
		"password": password,
		"name":     name,
	}
	resp, err := ac.do(ctx, http.MethodPost, "/account", body, "")
	if err != nil {
		return account, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return account, ErrEmailInUse
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return account, fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	if err = json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return account, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	ac.logger.Info("account: user registered", zap.String("account.id", account.ID))
	return account, nil
}

// Login opens an email/password session and stores its secret. A prior
// stored secret is only replaced once the new session is confirmed.
func (ac *AccountClient) Login(ctx context.Context, email, password string) error {
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}

	body := map[string]string{"email": email, "password": password}
	resp, err := ac.do(ctx, http.MethodPost, "/account/sessions/email", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var s session
	if err = json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	if err = ac.storage.Set(ctx, SessionKey, s.Secret); err != nil {
		return err
	}
	ac.logger.Info("account: session opened", zap.String("session.id", s.ID))
	return nil
}

// Me fetches the profile of the active session holder. It backs both the
// startup auth check and the profile screen.
func (ac *AccountClient) Me(ctx context.Context) (Account, error) {
	var account Account
	secret, err := ac.sessionSecret(ctx)
	if err != nil {
		return account, err
	}

	resp, err := ac.do(ctx, http.MethodGet, "/account", nil, secret)
	if err != nil {
		return account, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return account, ErrNotLoggedIn
	case resp.StatusCode != http.StatusOK:
		return account, fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	if err = json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return account, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return account, nil
}

// Logout closes the current session remotely then drops the stored
// secret. The local secret is cleared even when the remote call cannot
// find the session anymore.
func (ac *AccountClient) Logout(ctx context.Context) error {
	secret, err := ac.sessionSecret(ctx)
	if err != nil {
		return err
	}

	resp, err := ac.do(ctx, http.MethodDelete, "/account/sessions/current", nil, secret)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	if err = ac.storage.Delete(ctx, SessionKey); err != nil {
		return err
	}
	ac.logger.Info("account: session closed")
	return nil
}

// Recover triggers the password recovery email flow.
func (ac *AccountClient) Recover(ctx context.Context, email, redirectURL string) error {
	if len(email) == 0 {
		return missingFieldError("email")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("email format is not valid")
	}

	body := map[string]string{"email": email, "url": redirectURL}
	resp, err := ac.do(ctx, http.MethodPost, "/account/recovery", body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}

// sessionSecret loads the stored session secret, mapping its absence to
// the not-logged-in condition.
func (ac *AccountClient) sessionSecret(ctx context.Context) (string, error) {
	secret, err := ac.storage.Get(ctx, SessionKey)
	if errors.Is(err, ErrFlagNotFound) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

// do performs one account API call with the project header and, when
// provided, the session secret header set.
func (ac *AccountClient) do(ctx context.Context, method, path string, body interface{}, secret string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, ac.config.Remote.Endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("X-Appwrite-Project", ac.config.Remote.ProjectID)
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Appwrite-Session", secret)
	}

	resp, err := ac.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return resp, nil
}
