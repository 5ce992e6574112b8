package interfaces

import "context"

// SecretResolver returns named secret values by reference. References are
// key names (e.g. "browserbase_api_key"), never the values themselves.
type SecretResolver interface {
	// Resolve returns the value for ref. A missing or empty value is an
	// error; callers treat it as a configuration failure.
	Resolve(ctx context.Context, ref string) (string, error)
}
