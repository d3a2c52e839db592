package logx_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"go-thread-scout/internal/logx"
)

func TestLogx_PrettyZH_Info(t *testing.T) {
	var buf bytes.Buffer
	logx.Init(logx.Options{Level: "debug", Format: "pretty", Locale: "zh-CN", Color: "never", Writer: &buf})
	logx.Infof("hello %s", "world")
	if !strings.Contains(buf.String(), "[信息] hello world") {
		t.Fatalf("expect zh label, got: %q", buf.String())
	}
}

func TestLogx_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logx.Init(logx.Options{Level: "warn", Locale: "en", Color: "never", Writer: &buf})
	logx.Infof("should not print")
	logx.Warnf("warn on")
	out := buf.String()
	if strings.Contains(out, "should not print") {
		t.Fatalf("info should be filtered when level=warn")
	}
	if !strings.Contains(out, "[WARN]") {
		t.Fatalf("expect warn label present, got: %q", out)
	}
}

func TestLogx_ComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logx.Init(logx.Options{Level: "info", Locale: "en", Color: "never", Writer: &buf})
	logx.For("crawl").Infof("run %d", 7)
	if !strings.Contains(buf.String(), "[INFO] [crawl] run 7") {
		t.Fatalf("expect component prefix, got: %q", buf.String())
	}
	if strings.Contains(buf.String(), "component=") {
		t.Fatalf("component should not be rendered as attr: %q", buf.String())
	}
}

func TestLogx_ColorAlways(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	h := logx.NewPrettyHandler(&buf, slog.LevelInfo, "en", "always")
	slog.New(h).Error("boom")
	if !strings.Contains(buf.String(), "\x1b[31m[ERROR]") {
		t.Fatalf("expect ansi red label, got: %q", buf.String())
	}
}

func TestLogx_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := logx.NewPrettyHandler(&buf, slog.LevelInfo, "en", "never")
	logger := slog.New(h).With("k", "v").WithGroup("g")
	logger.Info("hello", "n", 1)
	s := buf.String()
	if !strings.Contains(s, "k=v") || !strings.Contains(s, "g.n=1") {
		t.Fatalf("expect flattened attrs, got: %q", s)
	}
}

func TestLogx_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logx.Init(logx.Options{Level: "info", Format: "json", Writer: &buf})
	logx.For("serp").Warnf("quota")
	if !strings.Contains(buf.String(), `"component":"serp"`) {
		t.Fatalf("expect json component attr, got: %q", buf.String())
	}
}
