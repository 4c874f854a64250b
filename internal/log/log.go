// internal/log/log.go
package log

import (
	"fmt"
	"io"
	"os"
)

// Logger writes leveled, line-oriented CLI output. Debug lines only appear
// in verbose mode and everything except errors is dropped in quiet mode.
// Writers are injectable so tests can capture output.
type Logger struct {
	Out     io.Writer
	Err     io.Writer
	Quiet   bool
	Verbose bool
}

// New returns a logger writing to stdout/stderr.
func New(quiet, verbose bool) *Logger {
	return &Logger{Out: os.Stdout, Err: os.Stderr, Quiet: quiet, Verbose: verbose}
}

// Debugf prints only in verbose mode.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.Verbose && !l.Quiet {
		fmt.Fprintf(l.Out, format+"\n", args...)
	}
}

// Infof prints unless quiet.
func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.Quiet {
		fmt.Fprintf(l.Out, format+"\n", args...)
	}
}

// Warnf prints a warning unless quiet.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if !l.Quiet {
		fmt.Fprintf(l.Err, "warning: "+format+"\n", args...)
	}
}

// Errorf always prints.
func (l *Logger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(l.Err, "error: "+format+"\n", args...)
}
