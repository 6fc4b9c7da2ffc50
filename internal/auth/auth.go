// Package auth provides trading API authentication using an API key paired
// with a per-user key.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Header names carrying the credentials on REST requests.
const (
	HeaderAPIKey  = "x-api-key"
	HeaderUserKey = "x-user-key"
)

// ErrMissingCredentials is returned when either key is empty.
var ErrMissingCredentials = errors.New("api key and user key are required")

// Credentials holds the application API key and the account user key.
type Credentials struct {
	APIKey  string // application key issued by the broker
	UserKey string // key identifying the trading account
}

// LoadCredentials builds credentials from an API key and a user key. When
// userKeyPath is non-empty the user key is read from that file instead.
func LoadCredentials(apiKey, userKey, userKeyPath string) (*Credentials, error) {
	if userKeyPath != "" {
		key, err := ReadKeyFile(userKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load user key: %w", err)
		}
		userKey = key
	}

	creds := &Credentials{APIKey: apiKey, UserKey: userKey}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// ReadKeyFile reads a key stored on its own in a file, trimming surrounding
// whitespace.
func ReadKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}

// Validate reports ErrMissingCredentials when either key is empty.
func (c *Credentials) Validate() error {
	if c == nil || c.APIKey == "" || c.UserKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Apply sets the authentication headers on an outgoing request.
func (c *Credentials) Apply(h http.Header) {
	if c == nil {
		return
	}
	if c.APIKey != "" {
		h.Set(HeaderAPIKey, c.APIKey)
	}
	if c.UserKey != "" {
		h.Set(HeaderUserKey, c.UserKey)
	}
}

// WebSocketData returns the payload of the WebSocket Authenticate operation.
func (c *Credentials) WebSocketData() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	return map[string]string{
		"apiKey":  c.APIKey,
		"userKey": c.UserKey,
	}
}

// String masks both keys so credentials are safe to log.
func (c *Credentials) String() string {
	if c == nil {
		return "Credentials{}"
	}
	return fmt.Sprintf("Credentials{APIKey:%s UserKey:%s}", mask(c.APIKey), mask(c.UserKey))
}

func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}
