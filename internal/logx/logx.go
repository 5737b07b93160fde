// Package logx is the engine's logging collaborator: a thin wrapper over
// zerolog that mirrors the shape of the teacher's io.LogError/
// io.ExitWithMessage call sites (fmt.Fprintf to stderr plus os.Exit) while
// emitting structured, leveled events (spec.md S10 "Logging").
package logx

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Logger is the package-level engine logger, writing console-formatted
// events to stderr.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

// Quiet raises the logger's level so that Progress() calls are dropped,
// matching the CLI's -q flag (spec.md S6).
func Quiet(quiet bool) {
	if quiet {
		Logger = Logger.Level(zerolog.WarnLevel)
	} else {
		Logger = Logger.Level(zerolog.InfoLevel)
	}
}

// LogError logs err at error level, including a stack trace if err was
// constructed with (or wrapped by) github.com/pkg/errors.
func LogError(err error) {
	if err == nil {
		return
	}
	Logger.Error().Msgf("%+v", err)
}

// LogWarning logs a per-tree, non-fatal condition (parse failure or
// leaf-set mismatch, spec.md S7c).
func LogWarning(msg string) {
	Logger.Warn().Msg(msg)
}

// Progress logs a progress line, suppressed by -q.
func Progress(msg string) {
	Logger.Info().Msg(msg)
}

// ExitWithMessage logs err as fatal and terminates the process with a
// nonzero exit code, matching spec.md S7a/S7b's "fatal" error class.
func ExitWithMessage(err error) {
	Logger.Error().Msgf("%+v", errors.WithStack(err))
	os.Exit(1)
}
