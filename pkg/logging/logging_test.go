package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNew_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	l.Info().Msg("hidden")
	l.Warn().Str("source", "eventbrite").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"source":"eventbrite"`) {
		t.Fatalf("out=%s", out)
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(nil, "loud", "json"); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := New(nil, "info", "xml"); err == nil {
		t.Fatal("expected format error")
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(&buf, "debug", "json")
	cl := CronLogger(l)
	cl.Info("schedule", "entry", 1)
	cl.Error(errors.New("boom"), "job failed", "entry", 1)
	out := buf.String()
	if !strings.Contains(out, `"message":"schedule"`) || !strings.Contains(out, `"error":"boom"`) || !strings.Contains(out, `"entry":1`) {
		t.Fatalf("out=%s", out)
	}
}
