package badger

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// LoadEnvFile seeds the key/value store from a .env style file. Supported
// format:
//   - KEY=value
//   - KEY="value" or KEY='value' (quotes stripped)
//   - # comments and empty lines are ignored
//
// A missing file is not an error. Credentials can also arrive through real
// environment variables, the secret resolver checks both.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		m.logger.Debug().Str("file", filePath).Msg("Env file does not exist, skipping")
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to open env file")
		return nil // Non-fatal
	}
	defer file.Close()

	loadedCount := 0
	skippedCount := 0

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			m.logger.Warn().
				Str("file", filePath).
				Int("line", lineNum).
				Msg("Invalid line format, expected KEY=value")
			skippedCount++
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if key == "" {
			skippedCount++
			continue
		}

		// Strip surrounding quotes from the value
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if value == "" {
			m.logger.Warn().
				Str("file", filePath).
				Str("key", key).
				Msg("Skipping variable with empty value")
			skippedCount++
			continue
		}

		isNew, err := m.kv.Upsert(ctx, key, value, "Seeded from env file")
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable from env file")
			skippedCount++
			continue
		}

		if isNew {
			m.logger.Debug().Str("key", key).Msg("Loaded new variable from env file")
		} else {
			m.logger.Debug().Str("key", key).Msg("Updated existing variable from env file")
		}
		loadedCount++
	}

	if err := scanner.Err(); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Error reading env file")
	}

	m.logger.Info().
		Str("file", filePath).
		Int("loaded", loadedCount).
		Int("skipped", skippedCount).
		Msg("Seeded key/value store from env file")

	return nil
}
