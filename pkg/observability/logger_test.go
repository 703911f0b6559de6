package observability

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "go.uber.org/zap/zaptest/observer"

    "aggmesh/pkg/config"
    "aggmesh/pkg/wire"
)

func TestParseLevel(t *testing.T) {
    cases := map[string]zapcore.Level{
        "debug": zap.DebugLevel, "WARN": zap.WarnLevel, "warning": zap.WarnLevel,
        "error": zap.ErrorLevel, "info": zap.InfoLevel, "bogus": zap.InfoLevel,
    }
    for in, want := range cases {
        if got := ParseLevel(in); got != want {
            t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
        }
    }
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
    out := filepath.Join(t.TempDir(), "logs", "node.log")
    log := NewLogger(config.LogConfig{Level: "warn", Format: "json", Outputs: []string{out}})
    log.Info("filtered out")
    log.Warn("window closed", zap.Int("children", 2))
    _ = log.Sync()

    raw, err := os.ReadFile(out)
    if err != nil {
        t.Fatalf("read log file: %v", err)
    }
    lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
    if len(lines) != 1 {
        t.Fatalf("want 1 line at warn level, got %d: %q", len(lines), raw)
    }
    var entry map[string]any
    if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
        t.Fatalf("entry is not json: %v", err)
    }
    if entry["msg"] != "window closed" || entry["children"] != float64(2) {
        t.Fatalf("unexpected entry: %v", entry)
    }
}

func TestNodeLoggerTagsAddress(t *testing.T) {
    core, logs := observer.New(zap.DebugLevel)
    NodeLogger(zap.New(core), wire.MakeAddr(4, 2)).Info("hello")
    all := logs.All()
    if len(all) != 1 {
        t.Fatalf("want 1 entry, got %d", len(all))
    }
    if got := all[0].ContextMap()["node"]; got != "4.2" {
        t.Fatalf("node field = %v", got)
    }
}

func TestChooseFilenameAndDirOf(t *testing.T) {
    c := config.LogConfig{Rotation: config.RotationConfig{Enable: true, Filename: "logs/rot.log"}}
    if got := chooseFilename("other.log", c); got != "logs/rot.log" {
        t.Fatalf("chooseFilename = %q", got)
    }
    c.Rotation.Enable = false
    if got := chooseFilename("other.log", c); got != "other.log" {
        t.Fatalf("chooseFilename without rotation = %q", got)
    }
    if dirOf("a/b/c.log") != "a/b" || dirOf("c.log") != "" {
        t.Fatalf("dirOf")
    }
}
