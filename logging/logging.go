// Package logging monta o logger estruturado (github.com/ssgreg/logf) a partir da
// configuração e carrega um logger por request no context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON = "json"
	FormatText = "text"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

type Config struct {
	Level   string     `mapstructure:"level"`
	Format  string     `mapstructure:"format"`
	Output  string     `mapstructure:"output"`
	NoColor bool       `mapstructure:"nocolor"`
	File    FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    string `mapstructure:"max_size"` // ex: "250M"
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate confere valores enumerados e o tamanho de rotação.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", FormatJSON, FormatText:
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Format)
	}
	switch strings.ToLower(c.Output) {
	case "", OutputStdout, OutputStderr:
	case OutputFile:
		if c.File.Path == "" {
			return fmt.Errorf("log.file.path: cannot be empty when %q output is used", OutputFile)
		}
		if c.File.MaxSize != "" {
			if _, err := bytefmt.ToBytes(c.File.MaxSize); err != nil {
				return fmt.Errorf("log.file.max_size: %w", err)
			}
		}
	default:
		return fmt.Errorf("log.output: unknown output %q", c.Output)
	}
	return nil
}

func ParseLevel(s string) (logf.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return logf.LevelError, nil
	case "warn", "warning":
		return logf.LevelWarn, nil
	case "", "info":
		return logf.LevelInfo, nil
	case "debug":
		return logf.LevelDebug, nil
	}
	return logf.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
}

// New cria o logger. A função de close deve ser chamada no shutdown para
// descarregar o buffer do channel writer.
func New(cfg Config) (*logf.Logger, logf.ChannelWriterCloseFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	w, err := outputWriter(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, closeFunc := NewWithWriter(cfg, w)
	return logger, closeFunc, nil
}

// NewWithWriter cria o logger escrevendo em w (stdout/stderr/arquivo ou buffer em testes).
func NewWithWriter(cfg Config, w io.Writer) (*logf.Logger, logf.ChannelWriterCloseFunc) {
	level, _ := ParseLevel(cfg.Level)
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          newAppender(cfg, w),
		EnableSyncOnError: true,
	})
	logger := logf.NewLogger(level, channel).With(logf.Int("pid", os.Getpid()))
	return logger, closeFunc
}

func newAppender(cfg Config, w io.Writer) logf.Appender {
	if strings.EqualFold(cfg.Format, FormatText) {
		noColor := cfg.NoColor
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:    &noColor,
			EncodeTime: logf.RFC3339NanoTimeEncoder,
		})
	}
	return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		EncodeTime:   logf.RFC3339NanoTimeEncoder,
		FieldKeyTime: "time",
	}))
}

func outputWriter(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case OutputStderr:
		return os.Stderr, nil
	case OutputFile:
		maxSizeMB := 250
		if cfg.File.MaxSize != "" {
			b, err := bytefmt.ToBytes(cfg.File.MaxSize)
			if err != nil {
				return nil, fmt.Errorf("log.file.max_size: %w", err)
			}
			maxSizeMB = int(b / bytefmt.MEGABYTE)
			if maxSizeMB < 1 {
				maxSizeMB = 1
			}
		}
		return &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    maxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}, nil
	}
	return os.Stdout, nil
}

type ctxKey struct{}

func NewContext(ctx context.Context, logger *logf.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retorna o logger da request ou um logger desativado.
func FromContext(ctx context.Context) *logf.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*logf.Logger); ok && l != nil {
		return l
	}
	return logf.NewDisabledLogger()
}
