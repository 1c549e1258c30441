// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/emicklei/go-restful/v3"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RequestIDHeader = "X-Request-ID"

var (
	logger *zap.Logger
	// console writes to stdout, rotation is the log file set by --log-path.
	console  zapcore.Core
	rotation *lumberjack.Logger
)

func init() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	console = logger.Core()
}

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// ResponseLogger returns a logger tagged with the request id of the response.
func ResponseLogger(resp *restful.Response) *zap.Logger {
	return logger.With(zap.String("request_id", resp.Header().Get(RequestIDHeader)))
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

func newEncoder(debug bool) (zapcore.Encoder, zapcore.Level) {
	cfg := zap.NewProductionEncoderConfig()
	if debug {
		cfg = zap.NewDevelopmentEncoderConfig()
	}
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	if debug {
		return zapcore.NewConsoleEncoder(cfg), zap.DebugLevel
	}
	return zapcore.NewJSONEncoder(cfg), zap.InfoLevel
}

// SetLogger replaces the global logger. Entries go to stdout and, if --log-path
// is set, to a rotated log file. A log file opened by a previous call is closed.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	CloseLogger()
	encoder, level := newEncoder(debug)
	console = zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	cores := []zapcore.Core{console}
	if flagSet.Changed("log-path") {
		path, _ := flagSet.GetString("log-path")
		maxSize, _ := flagSet.GetInt("log-max-size")
		maxAge, _ := flagSet.GetInt("log-max-age")
		maxBackups, _ := flagSet.GetInt("log-max-backups")
		rotation = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotation), level))
	}
	logger = zap.New(zapcore.NewTee(cores...))
}

// CloseLogger flushes buffered entries and closes the log file. Later entries
// go to stdout only.
func CloseLogger() {
	_ = logger.Sync()
	if rotation != nil {
		_ = rotation.Close()
		rotation = nil
		logger = zap.New(console)
	}
}

const mysqlPrefix = "mysql://"

// RedactDBURL masks user name and password in a rating log URL.
func RedactDBURL(rawURL string) string {
	if strings.HasPrefix(rawURL, mysqlPrefix) {
		parsed, err := mysql.ParseDSN(rawURL[len(mysqlPrefix):])
		if err != nil {
			return rawURL
		}
		parsed.User = strings.Repeat("x", len(parsed.User))
		parsed.Passwd = strings.Repeat("x", len(parsed.Passwd))
		return mysqlPrefix + parsed.FormatDSN()
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.User == nil {
		return rawURL
	}
	username := parsed.User.Username()
	password, _ := parsed.User.Password()
	parsed.User = url.UserPassword(strings.Repeat("x", len(username)), strings.Repeat("x", len(password)))
	return parsed.String()
}

// GetErrorHandler routes OpenTelemetry errors into the global logger.
func GetErrorHandler() otel.ErrorHandler {
	return &errorHandler{}
}

type errorHandler struct{}

func (h *errorHandler) Handle(err error) {
	Logger().Error("opentelemetry failure", zap.Error(err))
}
