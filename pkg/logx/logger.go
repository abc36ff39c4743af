package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config 控制全局日志输出格式。
type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`
}

// Init 初始化全局 zerolog 日志器。
func Init(cfg Config) {
	var out io.Writer = os.Stdout
	if cfg.PrettyFormat {
		out = zerolog.NewConsoleWriter()
	}

	logger := zerolog.New(out).With().Timestamp().Caller().Logger()
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger
}

// Component 返回带 component 字段的子日志器。
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
