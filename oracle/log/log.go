package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	customLog logger
	mu        sync.RWMutex
)

type logger struct {
	zl   zerolog.Logger
	file *os.File
	dir  string
}

func init() {
	InitLogger()
}

// InitLogger points the logger at the console. It is safe to call more than once.
func InitLogger() {
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	setOutput(writer, nil, "")
}

// ResetLogger redirects all output to a per-process file under <home>/logs.
func ResetLogger(oracleHome string) {
	var dir string
	if oracleHome == "" {
		osHome, err := os.UserHomeDir()
		if err != nil {
			Fatalf("Failed to get user home directory: %v", err)
		}
		dir = filepath.Join(osHome, ".oracled", "logs")
	} else {
		dir = filepath.Join(oracleHome, "logs")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		Fatalf("Failed to create log directory %s: %v", dir, err)
	}

	name := fmt.Sprintf("%s.%d.log", filepath.Base(os.Args[0]), os.Getpid())
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		Fatalf("Failed to create log file: %v", err)
	}

	Infof("From now on, all logs will be written to %s", path)
	setOutput(file, file, dir)
}

// SetOutput is used by tests to capture log lines.
func SetOutput(w io.Writer) {
	setOutput(w, nil, "")
}

// SetLevel accepts zerolog level names (debug, info, warn, error).
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// Dir returns the directory log files are written to, empty when logging to the console.
func Dir() string {
	mu.RLock()
	defer mu.RUnlock()
	return customLog.dir
}

func setOutput(w io.Writer, file *os.File, dir string) {
	mu.Lock()
	defer mu.Unlock()

	if customLog.file != nil && customLog.file != file {
		_ = customLog.file.Close()
	}

	customLog = logger{
		zl:   zerolog.New(w).With().Timestamp().Str("module", "oracled").Logger(),
		file: file,
		dir:  dir,
	}
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	zl := customLog.zl
	return &zl
}

func Debug(v ...any) {
	current().Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	current().Debug().Msgf(format, v...)
}

func Info(v ...any) {
	current().Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	current().Info().Msgf(format, v...)
}

func Warn(v ...any) {
	current().Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	current().Warn().Msgf(format, v...)
}

func Error(v ...any) {
	current().Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	current().Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	current().Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...any) {
	current().Fatal().Msgf(format, v...)
}
