package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrKeyNotFound reports that no credential is available for a provider. The
// orchestrator treats it as a skip, not a terminal failure.
var ErrKeyNotFound = errors.New("provider credential not found")

// Keyring resolves upstream provider credentials. Secret storage itself is an
// external concern; this interface is the only thing the engine sees.
type Keyring interface {
	APIKey(provider string) (string, error)
}

// Env resolves credentials from environment variables, the default
// deployment shape. Provider names map to <PROVIDER>_API_KEY unless an
// explicit mapping is registered.
type Env struct {
	vars map[string]string
}

// NewEnv builds an environment-backed keyring with the standard mappings.
func NewEnv() *Env {
	return &Env{vars: map[string]string{
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}}
}

// Map registers or overrides the environment variable for a provider.
func (e *Env) Map(provider, envVar string) {
	e.vars[provider] = envVar
}

// APIKey implements Keyring.
func (e *Env) APIKey(provider string) (string, error) {
	envVar, ok := e.vars[provider]
	if !ok {
		envVar = strings.ToUpper(provider) + "_API_KEY"
	}
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrKeyNotFound)
	}
	return key, nil
}

// Static is a fixed in-memory keyring, used in tests and for config-file
// supplied credentials.
type Static map[string]string

// APIKey implements Keyring.
func (s Static) APIKey(provider string) (string, error) {
	key, ok := s[provider]
	if !ok || key == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrKeyNotFound)
	}
	return key, nil
}
