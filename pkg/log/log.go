// pkg/log/log.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string
	LogDir  string
	Start   time.Time
}

// Options controls where log records go. The zero value logs at info
// level to airdispatch-logs/airdispatch.slog.
type Options struct {
	Level string
	Dir   string
	// Console mirrors records as text to stderr in addition to the log
	// file.
	Console bool
}

func New(opts Options) *Logger {
	dir := opts.Dir
	if dir == "" {
		dir = "airdispatch-logs"
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "airdispatch.slog"),
		MaxSize:    32, // MB
		MaxBackups: 4,
		MaxAge:     14,
		Compress:   true,
	}
	if opts.Level == "debug" {
		w.MaxSize = 512
	}

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	var h slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	if opts.Console {
		h = teeHandler{h, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})}
	}

	l := &Logger{
		Logger:  slog.New(h),
		LogFile: w.Filename,
		LogDir:  dir,
		Start:   time.Now(),
	}

	// Start out the logs with some basic information about the system
	// we're running on and the build that's being used.
	l.Info("Hello logging", slog.Time("start", time.Now()))
	l.Info("System information",
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()))

	var deps, settings []any
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			deps = append(deps, slog.String(dep.Path, dep.Version))
			if dep.Replace != nil {
				deps = append(deps, slog.String("Replacement "+dep.Replace.Path, dep.Replace.Version))
			}
		}
		for _, setting := range bi.Settings {
			settings = append(settings, slog.String(setting.Key, setting.Value))
		}

		l.Info("Build",
			slog.String("Go version", bi.GoVersion),
			slog.String("Path", bi.Path),
			slog.Group("Dependencies", deps...),
			slog.Group("Settings", settings...))
	}

	return l
}

// NewWriter returns a Logger that writes JSON records to w with no
// rotation; it is mostly useful for tests.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, _ := ParseLevel(level)
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		Start:  time.Now(),
	}
}

func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%s: invalid log level", level)
	}
}

// Debug wraps slog.Debug to add call stack information (and similarly for
// the following Logger methods...)  Note that we do not wrap the entire
// slog logging interface, so, for example, WarnContext and Log do not have
// callstacks included.
//
// We also wrap the logging methods to allow a nil *Logger, in which case
// debug and info messages are discarded (though warnings and errors still
// go through to slog.)
func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
		l.Logger.Debug(msg, args...)
	}
}

// Debugf is a convenience wrapper that logs just a message and allows
// printf-style formatting of the provided args.
func (l *Logger) Debugf(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
	if l == nil {
		slog.Warn(msg, args...)
	} else {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	if l == nil {
		slog.Warn(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	} else {
		l.Logger.Warn(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) Error(msg string, args ...any) {
	args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
	if l == nil {
		slog.Error(msg, args...)
	} else {
		l.Logger.Error(msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...any) {
	if l == nil {
		slog.Error(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	} else {
		l.Logger.Error(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		LogDir:  l.LogDir,
		Start:   l.Start,
	}
}

// CatchAndReportCrash should be deferred at the top of long-running
// goroutines' entry points; it logs a recovered panic along with build
// information and a stack trace and saves a crash report next to the log
// file. The recovered value is returned so that callers can decide
// whether to continue.
func (l *Logger) CatchAndReportCrash() any {
	err := recover()
	if err != nil {
		l.Errorf("Crashed: %v", err)

		report := fmt.Sprintf("Crashed: %v\n", err)
		report += "Sys: " + runtime.GOARCH + "/" + runtime.GOOS + "\n"

		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range bi.Settings {
				report += setting.Key + ": " + setting.Value + "\n"
			}
		}
		report += string(debug.Stack())

		fmt.Fprintln(os.Stderr, report)

		if l != nil && l.LogDir != "" {
			fn := filepath.Join(l.LogDir, "crash-"+time.Now().Format(time.RFC3339)+".txt")
			_ = os.WriteFile(fn, []byte(report), 0o600)
		}
	}

	return err
}

// AnyPointerSlice returns an slog.Attr for a slice of pointers to values
// that implement slog.LogValuer, dereferencing each one so that the
// values rather than addresses end up in the log.
func AnyPointerSlice[T slog.LogValuer](key string, values []T) slog.Attr {
	var attrs []slog.Attr
	for i, v := range values {
		attrs = append(attrs, slog.Any(fmt.Sprintf("%d", i), v.LogValue()))
	}
	return slog.Attr{Key: key, Value: slog.GroupValue(attrs...)}
}

///////////////////////////////////////////////////////////////////////////
// teeHandler

type teeHandler [2]slog.Handler

func (t teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return t[0].Enabled(ctx, lvl) || t[1].Enabled(ctx, lvl)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if herr := h.Handle(ctx, r.Clone()); herr != nil && err == nil {
				err = herr
			}
		}
	}
	return err
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{t[0].WithAttrs(attrs), t[1].WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{t[0].WithGroup(name), t[1].WithGroup(name)}
}
