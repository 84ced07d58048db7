package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gopher0727/AltMur/config"
)

type contextKey string

// TraceIDKey is the context key under which WithTraceID stores the trace ID.
const TraceIDKey contextKey = "trace_id"

// Logger is a zap logger whose *Context methods add the request's trace ID.
type Logger struct {
	*zap.Logger
	file *os.File
}

// NewLogger builds a logger from the logging section of the configuration.
// Unknown levels fall back to info; Format "json" selects the JSON encoder,
// anything else the console one; Output "file" appends to FilePath.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	sink, file, err := openSink(cfg)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, parseLogLevel(cfg.Level))
	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		file:   file,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *Logger {
	return &Logger{Logger: l}
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.FunctionKey = zapcore.OmitKey
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func openSink(cfg *config.LoggingConfig) (zapcore.WriteSyncer, *os.File, error) {
	if cfg.Output != "file" {
		return zapcore.Lock(os.Stdout), nil, nil
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return zapcore.AddSync(f), f, nil
}

// WithFields returns a child logger carrying fields.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// traced adds the trace ID of ctx, if any.
func (l *Logger) traced(ctx context.Context) *zap.Logger {
	if id := GetTraceID(ctx); id != "" {
		return l.Logger.With(zap.String("trace_id", id))
	}
	return l.Logger
}

func (l *Logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.traced(ctx).Debug(msg, fields...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.traced(ctx).Info(msg, fields...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.traced(ctx).Warn(msg, fields...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.traced(ctx).Error(msg, fields...)
}

func parseLogLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Close flushes buffered entries and closes the log file, if any. Sync
// errors on stdout are ignored: some terminals reject fsync.
func (l *Logger) Close() error {
	err := l.Logger.Sync()
	if l.file == nil {
		return nil
	}
	if cerr := l.file.Close(); cerr != nil {
		return cerr
	}
	return err
}
