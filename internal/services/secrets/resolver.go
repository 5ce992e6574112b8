package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/interfaces"
)

// Resolver resolves credential references against the key/value store with an
// environment variable fallback. References are logical names such as
// "browserbase_api_key"; the resolved value is the secret itself and must
// never appear in logs or errors.
type Resolver struct {
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewResolver creates a secret resolver backed by the key/value store
func NewResolver(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) interfaces.SecretResolver {
	return &Resolver{
		kvStorage: kvStorage,
		logger:    logger,
	}
}

// Resolve looks up ref in the key/value store first, then falls back to the
// VISO_<REF> and <REF> environment variables.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("secret reference is required")
	}

	if r.kvStorage != nil {
		value, err := r.kvStorage.Get(ctx, ref)
		if err == nil && value != "" {
			return value, nil
		}
		if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
			r.logger.Warn().Err(err).Str("ref", ref).Msg("Key/value lookup failed, trying environment")
		}
	}

	envName := strings.ToUpper(ref)
	if value := os.Getenv("VISO_" + envName); value != "" {
		return value, nil
	}
	if value := os.Getenv(envName); value != "" {
		return value, nil
	}

	return "", fmt.Errorf("secret %q is not configured", ref)
}
