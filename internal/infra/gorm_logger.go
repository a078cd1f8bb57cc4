package infra

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// GormZapLogger 把 GORM 的日志导入 zap，慢查询单独告警
type GormZapLogger struct {
	zl            *zap.Logger
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

// NewGormZapLogger 创建适配器
func NewGormZapLogger(zl *zap.Logger, level gormLogger.LogLevel) *GormZapLogger {
	return &GormZapLogger{
		zl:            zl,
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
}

// LogMode 派生指定级别的副本
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormZapLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		l.zl.Sugar().Infof(msg, data...)
	}
}

func (l *GormZapLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		l.zl.Sugar().Warnf(msg, data...)
	}
}

func (l *GormZapLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		l.zl.Sugar().Errorf(msg, data...)
	}
}

// Trace 记录单条 SQL。record-not-found 不算错误，由调用方语义化处理
func (l *GormZapLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound):
		l.zl.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.zl.Warn("SQL 慢查询", fields...)
	case l.level >= gormLogger.Info:
		l.zl.Debug("SQL 执行", fields...)
	}
}
