package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the tool's secrets in the OS keychain.
const KeyringService = "job-site-monitor"

// Keyring accounts and their environment overrides.
const (
	SessionCookieAccount = "session-cookie"
	SessionCookieEnv     = "JSM_SESSION_COOKIE"

	ReportTokenAccount = "report-token"
	ReportTokenEnv     = "REPORT_API_PASSWORD"
)

// ErrSecretNotFound is returned when neither the environment nor the keyring
// holds a secret.
var ErrSecretNotFound = errors.New("secret not found")

// ResolveSecret returns the value of envVar, falling back to the keyring
// entry for account.
func ResolveSecret(envVar, account string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v, nil
	}
	if strings.TrimSpace(account) == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, envVar)
	}

	v, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s (keyring: %v)", ErrSecretNotFound, account, err)
	}
	return "", fmt.Errorf("%w: set %s or store %q in the keyring", ErrSecretNotFound, envVar, account)
}

// SetSecret stores a secret in the keyring.
func SetSecret(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, strings.TrimSpace(value))
}

// DeleteSecret removes a secret from the keyring.
func DeleteSecret(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// ResolveSecrets fills the session cookie and report token. Both are
// optional: a missing cookie sends no Cookie header and a missing token
// leaves publishing unconfigured.
func (c *Config) ResolveSecrets() {
	if v, err := ResolveSecret(SessionCookieEnv, SessionCookieAccount); err == nil {
		c.API.Cookie = v
	}
	if v, err := ResolveSecret(ReportTokenEnv, ReportTokenAccount); err == nil {
		c.Report.Token = v
	}
}
