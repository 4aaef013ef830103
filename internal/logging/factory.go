package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logger backend and its destination.
type Options struct {
	// Backend is "slog" (default) or "zap".
	Backend string
	// Level is one of debug, info, warn, error.
	Level string
	// File, when set, receives log output through a size-rotated writer
	// instead of stderr.
	File string
	// MaxSizeMB and MaxBackups bound the rotated files.
	MaxSizeMB  int
	MaxBackups int
}

// New builds a Logger from opts. The returned closer releases the log file
// (if any) and flushes buffered output.
func New(opts Options) (Logger, io.Closer, error) {
	out, closer := writer(opts)

	switch strings.ToLower(opts.Backend) {
	case "", "slog":
		sl, err := NewSlogJSON(out, opts.Level)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		return sl, closer, nil

	case "zap":
		lvl, err := zapcore.ParseLevel(levelOrDefault(opts.Level))
		if err != nil {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core := zapcore.NewCore(enc, zapcore.AddSync(out), lvl)
		zl := NewZapLogger(zap.New(core))
		return zl, closerFunc(func() error {
			_ = zl.Sync()
			return closer.Close()
		}), nil

	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}

func writer(opts Options) (io.Writer, io.Closer) {
	if opts.File == "" {
		return os.Stderr, closerFunc(func() error { return nil })
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	return lj, lj
}

func levelOrDefault(l string) string {
	if l == "" {
		return "info"
	}
	return l
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
