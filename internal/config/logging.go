package config

import (
	"io"
	"os"

	"github.com/google/logger"
)

// InitLogger initializes the google/logger default logger from cfg and returns
// a func that flushes and closes it. LOG_FILE receives every line; stdout echo
// is on when LOG_VERBOSE is set or when there is no log file.
func InitLogger(cfg Config) (func(), error) {
	var sink io.Writer = io.Discard
	var file *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, err
		}
		file = f
		sink = f
	}
	l := logger.Init("luckydraw", cfg.LogVerbose || cfg.LogFile == "", false, sink)
	return func() {
		l.Close()
		if file != nil {
			file.Close()
		}
	}, nil
}
