// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package genericconf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalFileLogger = &rotatingFileLogger{}

// rotatingFileLogger queues log records for a background writer so that a slow disk never blocks
// the caller. Records are dropped while the queue is full.
type rotatingFileLogger struct {
	mutex   sync.Mutex
	queue   chan []byte
	done    chan struct{}
	dropped uint64
}

func (l *rotatingFileLogger) Write(p []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.queue == nil {
		return len(p), nil
	}
	select {
	case l.queue <- append([]byte{}, p...):
	default:
		l.dropped++
	}
	return len(p), nil
}

func (l *rotatingFileLogger) open(config *FileLoggingConfig, filename string) io.Writer {
	writer := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		LocalTime:  config.LocalTime,
		Compress:   config.Compress,
	}
	queue := make(chan []byte, max(config.BufSize, 1))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for record := range queue {
			_, _ = writer.Write(record)
		}
		if err := writer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing log file %s: %v\n", filename, err)
		}
	}()
	l.mutex.Lock()
	l.queue, l.done, l.dropped = queue, done, 0
	l.mutex.Unlock()
	return l
}

// close drains the queue and closes the file.
func (l *rotatingFileLogger) close() error {
	l.mutex.Lock()
	queue, done, dropped := l.queue, l.done, l.dropped
	l.queue, l.done = nil, nil
	l.mutex.Unlock()
	if queue == nil {
		return nil
	}
	close(queue)
	<-done
	if dropped > 0 {
		return fmt.Errorf("dropped %d log records while the file writer was busy", dropped)
	}
	return nil
}

// CloseFileLogger flushes and closes the rotating log file, if any.
func CloseFileLogger() error {
	return globalFileLogger.close()
}

func HandlerFromLogType(logType string, output io.Writer) (slog.Handler, error) {
	switch logType {
	case "plaintext":
		return log.NewTerminalHandler(output, false), nil
	case "json":
		return log.JSONHandler(output), nil
	}
	return nil, fmt.Errorf("invalid log type %q", logType)
}

// ToSlogLevel accepts level names as well as the legacy numeric levels (1: ERROR .. 5: TRACE).
func ToSlogLevel(str string) (slog.Level, error) {
	switch strings.ToLower(str) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	legacy, err := strconv.Atoi(str)
	if err != nil || legacy < 0 || legacy > 5 {
		return slog.LevelDebug, errors.New("invalid log level " + str)
	}
	return log.FromLegacyLevel(legacy), nil
}

// InitLog is not threadsafe
func InitLog(config *LoggingConfig, pathResolver func(string) string) error {
	if err := globalFileLogger.close(); err != nil {
		log.Warn("previous log file was not closed cleanly", "err", err)
	}
	var output io.Writer = os.Stderr
	if config.File.Enable {
		output = io.MultiWriter(
			os.Stderr,
			globalFileLogger.open(&config.File, pathResolver(config.File.File)),
		)
	}
	handler, err := HandlerFromLogType(config.Type, output)
	if err != nil {
		return fmt.Errorf("error parsing log type when creating handler: %w", err)
	}
	slogLevel, err := ToSlogLevel(config.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(slogLevel)
	log.SetDefault(log.NewLogger(glogger))
	return nil
}
