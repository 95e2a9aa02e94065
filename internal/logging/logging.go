// Package logging builds the application's zap logger and adapts it to the
// logger interfaces expected by third-party components.
package logging

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger with the given level ("debug", "info", "warn", "error")
// and format ("json" or "console").
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Printf adapts a zap logger to printf-style interfaces such as backlite's Logger.
type Printf struct {
	log *zap.Logger
}

// NewPrintf wraps log for components that only know Info/Error with printf params.
func NewPrintf(log *zap.Logger) *Printf {
	return &Printf{log: log}
}

func (p *Printf) Info(message string, params ...any) {
	p.log.Info(message, paramsToFields(params)...)
}

func (p *Printf) Error(message string, params ...any) {
	p.log.Error(message, paramsToFields(params)...)
}

// paramsToFields turns backlite's alternating key/value params into zap fields.
func paramsToFields(params []any) []zap.Field {
	fields := make([]zap.Field, 0, len(params)/2+1)
	for i := 0; i < len(params); i += 2 {
		key, ok := params[i].(string)
		if !ok || i+1 >= len(params) {
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), params[i]))
			continue
		}
		fields = append(fields, zap.Any(key, params[i+1]))
	}
	return fields
}

// GinMiddleware logs every request through zap instead of gin's default writer.
func GinMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if rid, ok := c.Get(RequestIDKey); ok {
			fields = append(fields, zap.Any("request_id", rid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// RequestIDKey is the gin context key holding the per-request identifier.
const RequestIDKey = "request_id"
