package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestGetAfterInit(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Get().Info(context.Background(), "started", String("k", "v"), Int("n", 3))
	out := buf.String()
	if !strings.Contains(out, "msg=started") || !strings.Contains(out, "k=v") || !strings.Contains(out, "n=3") {
		t.Errorf("unexpected text output: %s", out)
	}
	if !strings.Contains(out, "logger_test.go:") {
		t.Errorf("expected caller location in output, got %s", out)
	}
	if err := Sync(); err != nil {
		t.Errorf("sync: %v", err)
	}
}

func TestNamedGroupsFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithJSON(true)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Named("session").Info(context.Background(), "selected", String("watch", "1"))
	if !strings.Contains(buf.String(), `"session":{"watch":"1"`) {
		t.Errorf("expected fields grouped under the logger name, got %s", buf.String())
	}
}

func TestLoggerWriterAndJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithJSON(true)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	Named("fetch").Warn(context.Background(), "dropped", String("view", "stats"), Duration("took", 1500*time.Microsecond), Bool("stale", true))

	out := buf.String()
	for _, want := range []string{`"msg":"dropped"`, `"view":"stats"`, `"took":1.5`, `"stale":true`, `"source":`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s, got %s", want, out)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error(context.Background(), "nothing to see")
}
