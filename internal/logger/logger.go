package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/justsurfingit/jobtrackr/internal/config"
)

var (
	Logger      *slog.Logger
	atomicLevel *slog.LevelVar
)

// Init builds the process-wide logger from config. Console output goes through tint,
// "json" format uses the std JSON handler.
func Init(cfg *config.LoggerConfig, mode string) error {
	atomicLevel = new(slog.LevelVar)
	atomicLevel.Set(ParseLevel(cfg.Level))

	var writer io.Writer
	switch strings.ToLower(cfg.OutputPath) {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writer = file
	}

	showSourceLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if mode == "debug" {
		showSourceLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		base := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: atomicLevel})
		handler = NewConditionalSourceHandler(base, showSourceLevels...)
	} else {
		base := tint.NewHandler(writer, &tint.Options{
			Level:       atomicLevel,
			TimeFormat:  time.DateTime,
			NoColor:     !isTerminal(writer),
			ReplaceAttr: tintErrors,
		})
		handler = NewConditionalSourceHandler(base, showSourceLevels...)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
	return nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func tintErrors(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" && a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok {
			return tint.Err(err)
		}
	}
	return a
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

func SetLevel(level slog.Level) {
	if atomicLevel != nil {
		atomicLevel.Set(level)
	}
}

func Get() *slog.Logger {
	if Logger == nil {
		base := tint.NewHandler(os.Stdout, &tint.Options{
			Level:       slog.LevelInfo,
			TimeFormat:  time.DateTime,
			NoColor:     !term.IsTerminal(int(os.Stdout.Fd())),
			ReplaceAttr: tintErrors,
		})
		Logger = slog.New(NewConditionalSourceHandler(base, slog.LevelWarn, slog.LevelError))
	}
	return Logger
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}

func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}
