package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs a resolved runtime
// configuration summary.
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Viso", GetVersion())

	if logger == nil || config == nil {
		return
	}

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("listen", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)).
		Str("storage", config.Storage.Badger.Path).
		Msg("Viso starting")
}
