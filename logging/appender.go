package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Appender is an output for log entries. A zapcore.Core satisfies this interface, which is how
// the observer core used by tests is attached.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated, human readable log lines to a writer.
type ConsoleAppender struct {
	mu  *sync.Mutex
	out io.Writer
}

// NewStdoutAppender returns a ConsoleAppender writing to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender returns a ConsoleAppender writing to the given writer.
func NewWriterAppender(out io.Writer) ConsoleAppender {
	return ConsoleAppender{mu: &sync.Mutex{}, out: out}
}

// Write encodes the entry with the console encoder and writes it as a single line.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	encoder := zapcore.NewConsoleEncoder(NewEncoderConfig())
	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = appender.out.Write(buf.Bytes())
	return err
}

// Sync flushes the underlying writer when it supports it.
func (appender ConsoleAppender) Sync() error {
	if syncer, ok := appender.out.(interface{ Sync() error }); ok && appender.out != os.Stdout {
		return syncer.Sync()
	}
	return nil
}

// FileAppender writes console formatted log lines to a size-rotated file.
type FileAppender struct {
	ConsoleAppender
	rotator *lumberjack.Logger
}

// NewFileAppender returns an appender that writes to `filename`, rotating it once it grows past
// `maxSizeMB`. Callers own closing it.
func NewFileAppender(filename string, maxSizeMB int) *FileAppender {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(rotator), rotator: rotator}
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	return appender.rotator.Close()
}
