// Package logx configures the process-wide zerolog logger. Everything in
// this module logs through zerolog's global logger, so Init must run before
// the first log line; the autoload subpackage does that on import.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Debug lowers the level so per-cycle tool dispatch lines show up.
	Debug bool `split_words:"true" default:"false"`
	// PrettyFormat switches to the human-readable console writer for
	// local runs; production stays on JSON lines.
	PrettyFormat bool `split_words:"true" default:"false"`
}

func Init(cfg Config) {
	var w io.Writer = os.Stdout
	if cfg.PrettyFormat {
		w = zerolog.NewConsoleWriter()
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(w).Level(level).With().Timestamp().Caller().Stack().Logger()
}
