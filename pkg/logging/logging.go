// Package logging 构建基于 zerolog 的根 logger。
//
// 各组件持有 zerolog.Logger 字段（默认 zerolog.Nop()），
// 通过 logger.With().Str("component", ...) 派生子 logger。
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 是日志配置。
type Config struct {
	Level  string    // trace / debug / info / warn / error，默认 info
	Format string    // json / console，默认 json
	Caller bool      // 是否记录调用位置
	Output io.Writer // 默认 os.Stderr
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// New 按配置创建 logger；非法级别回退到 info。
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
