package logger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"labelscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name: "config with file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  filepath.Join(t.TempDir(), "logs", "labelscraper.log"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLevelSplit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, err := newWithWriters(&config.LoggingConfig{Level: "debug"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("newWithWriters() error = %v", err)
	}

	logger.Info("processed label 1 of 10")
	logger.WithField("label_id", 2).Error("Failed to fetch label details")

	if !strings.Contains(stdout.String(), "processed label 1 of 10") {
		t.Errorf("progress line not written to stdout: %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "Failed to fetch label details") {
		t.Error("error line leaked into stdout")
	}
	if !strings.Contains(stderr.String(), "Failed to fetch label details") {
		t.Errorf("error line not written to stderr: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "label_id=2") {
		t.Errorf("field not rendered on stderr: %q", stderr.String())
	}
}

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger()
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	cases := map[string]func(string){
		"debug message": logger.Debug,
		"info message":  logger.Info,
		"warn message":  logger.Warn,
		"error message": logger.Error,
	}

	for msg, logFn := range cases {
		t.Run(msg, func(t *testing.T) {
			buf.Reset()
			logFn(msg)
			if !strings.Contains(buf.String(), msg) {
				t.Errorf("%q not found in output", msg)
			}
		})
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithFields(map[string]interface{}{
		"string": "value",
		"int":    42,
		"bool":   true,
	}).Info("test message")

	output := buf.String()
	for _, want := range []string{"test message", `"string":"value"`, `"int":42`, `"bool":true`} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not found in output %s", want, output)
		}
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(&testError{msg: "disk full"}).Error("Failed to append record")

	output := buf.String()
	if !strings.Contains(output, "Failed to append record") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"error":"disk full"`) {
		t.Error("Error message not found in output")
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	base := logger.WithField("field1", "value1")
	base.WithFields(map[string]interface{}{
		"field2": "value2",
		"field3": 3,
	}).InfoWithFields("chained fields", map[string]interface{}{
		"field4": time.Second,
	})

	output := buf.String()
	for _, want := range []string{`"field1":"value1"`, `"field2":"value2"`, `"field3":3`, `"field4"`} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not found in output %s", want, output)
		}
	}

	// the parent logger must not see fields added to its children
	buf.Reset()
	base.Info("parent only")
	if strings.Contains(buf.String(), "field2") {
		t.Error("child fields leaked into parent logger")
	}
}

func TestGlobalLogger(t *testing.T) {
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()

	first := GetLogger()
	if first == nil {
		t.Fatal("GetLogger() returned nil")
	}
	if GetLogger() != first {
		t.Error("GetLogger() should return the same instance until Initialize is called")
	}

	if err := Initialize(&config.LoggingConfig{Level: "bogus"}); err == nil {
		t.Fatal("Initialize() accepted an unknown level")
	}
	if GetLogger() != first {
		t.Error("failed Initialize() replaced the global logger")
	}

	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	if GetLogger() == first {
		t.Error("Initialize() did not replace the global logger")
	}
}

func TestCallFieldsOverrideBoundFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	bound := logger.WithField("label_id", 1)
	bound.WarnWithFields("Rate limited, waiting", map[string]interface{}{"label_id": 2})

	output := buf.String()
	if strings.Count(output, `"label_id"`) != 1 || !strings.Contains(output, `"label_id":2`) {
		t.Errorf("expected a single overridden label_id, got %s", output)
	}

	buf.Reset()
	bound.Info("next")
	if !strings.Contains(buf.String(), `"label_id":1`) {
		t.Errorf("bound field changed by a per-call override: %s", buf.String())
	}
}

func TestHelpers(t *testing.T) {
	log := NewTestLogger()

	LogScanProgress(log, 25, 100)
	LogRateLimit(log, "/labels/7", time.Minute)
	LogComponentStart(log, "metrics", map[string]interface{}{"addr": ":9090"})
	LogComponentStop(log, "metrics", "shutdown")

	if !log.HasMessage("processed label 25 of 100") {
		t.Errorf("progress line missing:\n%s", log.String())
	}
	progress := log.GetMessagesByLevel("INFO")[0]
	if progress.Fields["percentage"] != "25.0%" {
		t.Errorf("percentage = %v, want 25.0%%", progress.Fields["percentage"])
	}

	warns := log.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["endpoint"] != "/labels/7" {
		t.Errorf("rate limit warning not captured: %+v", warns)
	}
	if !log.HasMessage("Component started") || !log.HasMessage("Component stopped") {
		t.Error("component lifecycle messages missing")
	}
}

func TestNopLogger(t *testing.T) {
	nop := NewNopLogger()
	nop.WithField("a", 1).WithError(&testError{msg: "x"}).Error("ignored")
	if nop.GetZerolog() == nil {
		t.Error("nop logger should expose a usable zerolog instance")
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
