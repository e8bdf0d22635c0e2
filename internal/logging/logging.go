// Package logging builds the go-kit logger handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-kit/log/term"
	"github.com/mattn/go-isatty"
)

// Levels accepted by ParseLevel, most to least quiet.
const (
	LevelNone  = "none"
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
)

// Options configures New.
type Options struct {
	Level string // one of the Level constants; empty means info
	JSON  bool
	// Color forces colored output on or off. Nil colors only when the
	// writer is a terminal.
	Color *bool
}

// ParseLevel maps a level name to a go-kit filter option.
func ParseLevel(s string) (level.Option, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelNone:
		return level.AllowNone(), nil
	case LevelError:
		return level.AllowError(), nil
	case LevelWarn, "warning":
		return level.AllowWarn(), nil
	case LevelInfo, "":
		return level.AllowInfo(), nil
	case LevelDebug:
		return level.AllowDebug(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a leveled logger writing logfmt or JSON to w, with a UTC
// timestamp on every line.
func New(w io.Writer, opts Options) (log.Logger, error) {
	allow, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	format := log.NewLogfmtLogger
	if opts.JSON {
		format = log.NewJSONLogger
	}

	var logger log.Logger
	if useColor(w, opts.Color) {
		logger = term.NewLogger(w, format, levelColor)
	} else {
		logger = format(log.NewSyncWriter(w))
	}

	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC), nil
}

// Nop returns a logger that discards everything.
func Nop() log.Logger {
	return log.NewNopLogger()
}

func useColor(w io.Writer, force *bool) bool {
	if force != nil {
		return *force
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func levelColor(keyvals ...any) term.FgBgColor {
	for i := 0; i < len(keyvals)-1; i += 2 {
		if keyvals[i] != level.Key() {
			continue
		}

		switch keyvals[i+1] {
		case level.DebugValue():
			return term.FgBgColor{Fg: term.Gray}
		case level.WarnValue():
			return term.FgBgColor{Fg: term.Yellow}
		case level.ErrorValue():
			return term.FgBgColor{Fg: term.Red}
		default:
			return term.FgBgColor{}
		}
	}
	return term.FgBgColor{}
}
