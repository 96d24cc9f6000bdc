// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logs

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/GreonXpert/Zero-carbon-backend-sub004/internal/version"
)

type StructuredLogger interface {
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	Println(v ...any)
}

type ZapStructuredLogger struct {
	logger *zap.SugaredLogger
}

// Rotation bounds the size of a file-backed log.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
}

// New logs JSON lines to file, rotated per the given bounds. Errors
// opening the sink fall back to the stderr logger.
func New(file string, rotation Rotation) *ZapStructuredLogger {
	if file == "" {
		return Default()
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		Compress:   false,
	})

	cfg := zap.NewProductionEncoderConfig()
	cfg.MessageKey = "message"
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), sink, zap.InfoLevel)
	sugar := zap.New(core, zap.AddCallerSkip(1)).Sugar().With(
		zap.String("engine-version", version.Version))
	return &ZapStructuredLogger{
		logger: sugar,
	}
}

func DiscardLogger() *ZapStructuredLogger {
	observedZapCore, _ := observer.New(zap.InfoLevel)
	observedLogger := zap.New(observedZapCore)
	return &ZapStructuredLogger{
		logger: observedLogger.Sugar(),
	}
}

func Default() *ZapStructuredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		return DiscardLogger()
	}
	sugar := logger.Sugar().With(
		zap.String("engine-version", version.Version))
	return &ZapStructuredLogger{
		logger: sugar,
	}
}

func (f ZapStructuredLogger) Infof(format string, v ...any) {
	f.logger.Infof(format, v...)
}

func (f ZapStructuredLogger) Warnf(format string, v ...any) {
	f.logger.Warnf(format, v...)
}

func (f ZapStructuredLogger) Errorf(format string, v ...any) {
	f.logger.Errorf(format, v...)
}

func (f ZapStructuredLogger) Println(v ...any) {
	f.logger.Infoln(v...)
}

type SimpleLogger struct {
	l *log.Logger
}

func (sl SimpleLogger) Fatalf(format string, v ...any) {
	sl.l.Fatalf(format, v...)
}

func (sl SimpleLogger) Printf(format string, v ...any) {
	sl.l.Printf(format, v...)
}

func (sl SimpleLogger) Infof(format string, v ...any) {
	sl.l.Printf(format, v...)
}

func (sl SimpleLogger) Warnf(format string, v ...any) {
	sl.l.Printf(format, v...)
}

func (sl SimpleLogger) Errorf(format string, v ...any) {
	sl.l.Printf(format, v...)
}

func (sl SimpleLogger) Println(v ...any) {
	sl.l.Println(v...)
}

func NewSimpleLogger() SimpleLogger {
	return SimpleLogger{log.New(os.Stdout, log.Prefix(), log.Flags())}
}
