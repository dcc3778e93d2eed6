package config

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOutput returns the destination for component loggers: a rotating file
// when log.file is set, stderr otherwise. The caller closes the result.
func (c *Config) LogOutput() io.WriteCloser {
	if c.Log.File == "" {
		return nopCloser{os.Stderr}
	}
	_ = os.MkdirAll(filepath.Dir(c.Log.File), 0755)
	return &lumberjack.Logger{
		Filename:   c.Log.File,
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAgeDays,
	}
}

// NewLogger returns a logger writing to w with the usual "[name] " prefix.
func NewLogger(w io.Writer, name string) *log.Logger {
	return log.New(w, "["+name+"] ", log.LstdFlags)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
