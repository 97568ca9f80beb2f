package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantKey string
	}{
		{"String", String("saga_type", "OrderCreation"), "saga_type"},
		{"Int", Int("attempt", 2), "attempt"},
		{"Any", Any("data", map[string]int{"a": 1}), "data"},
		{"Error", Error(errors.New("step failed")), "error"},
		{"Duration", Duration("elapsed", time.Second), "elapsed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.wantKey {
				t.Errorf("Key = %s, want %s", tt.field.Key, tt.wantKey)
			}
			if tt.field.Value == nil {
				t.Error("Value is nil")
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "stock_verified", "stock_verified"},
		{"error", errors.New("unavailable"), "unavailable"},
		{"int", 409, "409"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.want {
				t.Errorf("formatValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewStdLogger(t *testing.T) {
	logger := NewStdLogger("coordinator")
	if logger.prefix != "coordinator" {
		t.Errorf("prefix = %s, want coordinator", logger.prefix)
	}
	if logger.fields == nil {
		t.Error("fields not initialized")
	}
}

func TestStdLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	logger.Debug(context.Background(), "replaying incomplete sagas", String("saga_id", "s-1"))

	output := buf.String()
	for _, want := range []string{"[DEBUG]", "replaying incomplete sagas", "saga_id=s-1"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestStdLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	logger.Info(context.Background(), "saga started", Int("step_count", 4))

	output := buf.String()
	for _, want := range []string{"[INFO]", "saga started", "step_count=4"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestStdLogger_Warn(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	logger.Warn(context.Background(), "step failed", String("step_name", "ReserveStock"))

	output := buf.String()
	for _, want := range []string{"[WARN]", "step failed", "step_name=ReserveStock"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestStdLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	logger.Error(context.Background(), "publish failed", Error(errors.New("event log unavailable")))

	output := buf.String()
	for _, want := range []string{"[ERROR]", "publish failed", "error=event log unavailable"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestStdLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	scoped := logger.WithFields(String("saga_id", "s-1"), String("saga_type", "OrderCreation"))
	scoped.Info(context.Background(), "step completed", String("step_name", "VerifyStock"))

	output := buf.String()
	for _, want := range []string{"saga_id=s-1", "saga_type=OrderCreation", "step_name=VerifyStock"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestStdLogger_WithFields_Immutable(t *testing.T) {
	logger := NewStdLogger("test")
	originalCount := len(logger.fields)

	scoped := logger.WithFields(String("key", "value"))

	if len(logger.fields) != originalCount {
		t.Error("WithFields mutated the receiver's own fields")
	}
	newLogger := scoped.(*StdLogger)
	if len(newLogger.fields) != originalCount+1 {
		t.Errorf("scoped logger has %d fields, want %d", len(newLogger.fields), originalCount+1)
	}
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	ctx := context.Background()

	logger.Debug(ctx, "test")
	logger.Info(ctx, "test")
	logger.Warn(ctx, "test")
	logger.Error(ctx, "test")

	if got := logger.WithFields(String("key", "value")); got != logger {
		t.Error("NoopLogger.WithFields should return the receiver")
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	testLogger := NewNoopLogger()
	SetLogger(testLogger)

	if GetLogger() != testLogger {
		t.Error("SetLogger did not update the global logger")
	}
}

func TestStdLogger_MultipleFields(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	logger.Info(context.Background(), "controlled failure",
		String("kind", "payment_failure"),
		Int("attempt", 1),
		Duration("delay", 250*time.Millisecond),
	)

	output := buf.String()
	for _, want := range []string{"kind=payment_failure", "attempt=1", "delay=250ms"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

func TestStdLogger_EmptyPrefix(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("")
	logger.Info(context.Background(), "message")

	if !strings.Contains(buf.String(), "message") {
		t.Error("output missing message")
	}
}

func TestStdLogger_NoFields(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewStdLogger("test")
	logger.Info(context.Background(), "simple message")

	output := buf.String()
	if !strings.Contains(output, "[INFO]") || !strings.Contains(output, "simple message") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestILoggerInterface(t *testing.T) {
	var _ ILogger = (*StdLogger)(nil)
	var _ ILogger = (*NoopLogger)(nil)

	oldWriter := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(oldWriter)

	loggers := []ILogger{NewStdLogger("test"), NewNoopLogger()}
	ctx := context.Background()

	for _, logger := range loggers {
		logger.Debug(ctx, "test")
		logger.Info(ctx, "test")
		logger.Warn(ctx, "test")
		logger.Error(ctx, "test")
		logger.WithFields(String("key", "value"))
	}
}

func BenchmarkStdLogger_Info(b *testing.B) {
	logger := NewStdLogger("bench")
	ctx := context.Background()
	log.SetOutput(&bytes.Buffer{})
	defer log.SetOutput(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", String("key", "value"))
	}
}

func BenchmarkStdLogger_WithFields(b *testing.B) {
	logger := NewStdLogger("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.WithFields(
			String("saga_id", "s-1"),
			String("saga_type", "OrderCreation"),
			Int("step_count", 4),
		)
	}
}

func BenchmarkNoopLogger_Info(b *testing.B) {
	logger := NewNoopLogger()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "benchmark message", String("key", "value"))
	}
}

func BenchmarkFieldConstructors(b *testing.B) {
	b.Run("String", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			String("key", "value")
		}
	})
	b.Run("Int", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Int("count", 123)
		}
	})
	b.Run("Error", func(b *testing.B) {
		err := errors.New("test error")
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			Error(err)
		}
	})
}
