// Package logging provides category-scoped structured logging, built on
// log/slog and fanned out to rotating files (lumberjack) plus the
// console, the way the teacher's pkg/log/logger.go does it. Categories
// here track this repo's components instead of the teacher's
// application/discord/database/error set.
package logging

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Category string

const (
	Ingest    Category = "ingest"
	Discord   Category = "discord"
	Database  Category = "database"
	Cache     Category = "cache"
	Forwarder Category = "forwarder"
	Riot      Category = "riot"
	Updater   Category = "updater"
	HTTP      Category = "http"
)

var allCategories = []Category{Ingest, Discord, Database, Cache, Forwarder, Riot, Updater, HTTP}

// Logger wraps one slog.Logger per category.
type Logger struct {
	service    string
	loggers    map[Category]*slog.Logger
	levelVar   slog.LevelVar
}

var global *Logger

// CategorizedLogger is the fluent Info/Warn builder for a single category.
type CategorizedLogger struct {
	logger *slog.Logger
	warn   bool
}

// ErrorLogger is the fluent Error/Fatal builder for a single category.
type ErrorLogger struct {
	logger *slog.Logger
}

// Setup configures one rotating-file + console logger per category under
// logDir (created if missing) and installs it as the process-wide
// default. service is attached to every record (process name:
// "dissonance" or "shockwave").
func Setup(service, logDir string) error {
	if logDir == "" {
		logDir = filepath.Join(".", "logs")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("logging: create log dir: %w", err)
	}

	l := &Logger{service: service, loggers: make(map[Category]*slog.Logger, len(allCategories))}
	l.levelVar.Set(slog.LevelInfo)

	for _, cat := range allCategories {
		file := rollingWriter(filepath.Join(logDir, string(cat)+".log"))
		l.loggers[cat] = buildCategoryLogger(service, string(cat), file, os.Stdout, &l.levelVar)
	}

	global = l
	global.loggers[Ingest].Info("logger initialized", slog.String("time", time.Now().Format(time.RFC3339Nano)))
	slog.SetDefault(global.loggers[Ingest])
	return nil
}

func rollingWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h.WithAttrs(attrs))
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h.WithGroup(name))
	}
	return &multiHandler{handlers: out}
}

func buildCategoryLogger(service, category string, fileWriter *lumberjack.Logger, console *os.File, levelVar *slog.LevelVar) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: levelVar, AddSource: true})
	textHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: levelVar})
	handler := &multiHandler{handlers: []slog.Handler{jsonHandler, textHandler}}
	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("category", category),
	)
}

// For returns the category logger, falling back to slog.Default if Setup
// hasn't run yet (e.g. in unit tests that don't call Setup).
func For(cat Category) *slog.Logger {
	if global == nil {
		return slog.Default()
	}
	if l, ok := global.loggers[cat]; ok {
		return l
	}
	return slog.Default()
}

// Info starts a fluent info-level record for cat.
func Info(cat Category) *CategorizedLogger { return &CategorizedLogger{logger: For(cat)} }

// Warn starts a fluent warn-level record for cat.
func Warn(cat Category) *CategorizedLogger { return &CategorizedLogger{logger: For(cat), warn: true} }

// Error starts a fluent error-level record for cat.
func Error(cat Category) *ErrorLogger { return &ErrorLogger{logger: For(cat)} }

func (cl *CategorizedLogger) Logf(format string, v ...interface{}) {
	if cl == nil || cl.logger == nil {
		stdlog.Printf(format, v...)
		return
	}
	msg := fmt.Sprintf(format, v...)
	if cl.warn {
		cl.logger.Warn(msg)
		return
	}
	cl.logger.Info(msg)
}

func (el *ErrorLogger) Logf(format string, v ...interface{}) {
	if el == nil || el.logger == nil {
		stdlog.Printf("ERROR: "+format, v...)
		return
	}
	el.logger.Error(fmt.Sprintf(format, v...))
}

func (el *ErrorLogger) Fatalf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if el == nil || el.logger == nil {
		stdlog.Fatalf("FATAL: %s", msg)
		return
	}
	el.logger.Error(msg, slog.String("fatal", "true"))
	os.Exit(1)
}
