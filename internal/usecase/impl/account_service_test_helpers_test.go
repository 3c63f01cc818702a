package impl

import (
	"io"
	"log/slog"
	"time"

	"passport/config"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(linkBaseURL string) *config.Config {
	return &config.Config{
		Reset: &config.ResetConfig{
			TokenTTL:    30 * time.Minute,
			LinkBaseURL: linkBaseURL,
		},
	}
}
