package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
)

// LogEntry is one parsed service log line for the ops surface.
type LogEntry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// LogsHandler serves recent service logs from arbor's memory writer.
type LogsHandler struct {
	config *common.WebSocketConfig
	logger arbor.ILogger
}

// NewLogsHandler creates a logs handler
func NewLogsHandler(config *common.WebSocketConfig, logger arbor.ILogger) *LogsHandler {
	return &LogsHandler{
		config: config,
		logger: logger,
	}
}

// GetRecentLogsHandler returns recent service log lines as JSON. The memory
// writer may not be registered; that yields an empty list, not an error.
func (h *LogsHandler) GetRecentLogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	logs := []LogEntry{}

	memWriter := arbor.GetRegisteredMemoryWriter(arbor.WRITER_MEMORY)
	if memWriter != nil {
		entries, err := memWriter.GetEntriesWithLimit(100)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to get log entries")
			WriteError(w, http.StatusInternalServerError, "failed to retrieve logs")
			return
		}

		// Keys are timestamps, so a string sort gives chronological order
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		minRank := levelRank(h.minLevel())

		for _, key := range keys {
			line := entries[key]
			if h.excluded(line) {
				continue
			}
			if entry, ok := parseLogLine(line, len(logs)); ok {
				if levelRank(entry.Level) < minRank {
					continue
				}
				logs = append(logs, entry)
			}
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

func (h *LogsHandler) minLevel() string {
	if h.config == nil || h.config.MinLevel == "" {
		return "info"
	}
	return h.config.MinLevel
}

// levelRank orders log levels for the minimum-level filter. Accepts both
// arbor's short codes and full level names.
func levelRank(level string) int {
	switch strings.ToUpper(level) {
	case "DBG", "DEBUG":
		return 0
	case "INF", "INFO":
		return 1
	case "WRN", "WARN":
		return 2
	case "ERR", "ERROR", "FATAL", "PANIC":
		return 3
	default:
		return 1
	}
}

func (h *LogsHandler) excluded(line string) bool {
	if h.config == nil {
		return false
	}
	for _, pattern := range h.config.ExcludePatterns {
		if strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}

// parseLogLine splits an arbor "LEVEL | datetime | message" line.
func parseLogLine(line string, index int) (LogEntry, bool) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 {
		return LogEntry{}, false
	}

	levelStr := strings.TrimSpace(parts[0])
	dateTime := strings.TrimSpace(parts[1])
	message := strings.TrimSpace(parts[2])

	timeParts := strings.Fields(dateTime)
	timestamp := time.Now().Format("15:04:05")
	if len(timeParts) >= 1 {
		timestamp = timeParts[len(timeParts)-1]
	}

	level := "INF"
	switch levelStr {
	case "ERR", "ERROR", "FATAL", "PANIC":
		level = "ERR"
	case "WRN", "WARN":
		level = "WRN"
	case "DBG", "DEBUG":
		level = "DBG"
	}

	return LogEntry{
		Index:     index,
		Timestamp: timestamp,
		Level:     level,
		Message:   message,
	}, true
}
