package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SmitUplenchwar2687/rhythm/internal/config"
	"github.com/SmitUplenchwar2687/rhythm/internal/logformat"
	"github.com/SmitUplenchwar2687/rhythm/internal/logging"
	"github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

func TestGenerateCmd_LogParsesBack(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "gen.log")

	if _, err := execute(t, "generate", "log", "--output", logPath, "--count", "120", "--junk", "9", "--seed", "3", "--pattern", "ramp"); err != nil {
		t.Fatalf("generate log failed: %v", err)
	}

	out, err := execute(t, "parse", logPath, "--json", "--limit", "1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var res ParseResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Stats.Entries != 120 {
		t.Errorf("entries = %d, want 120", res.Stats.Entries)
	}
	if res.Stats.SkippedTotal() != 9 {
		t.Errorf("skipped = %v, want 9 in total", res.Stats.Skipped)
	}
}

func TestGenerateCmd_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhythm.yaml")

	out, err := execute(t, "generate", "config", "--output", path)
	if err != nil {
		t.Fatalf("generate config failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q, want it to name the file", out)
	}

	cfg, err := config.Load(config.NewViper(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input.Format != config.DefaultFormat || cfg.Input.TimeFormat != logformat.DefaultTimePattern {
		t.Errorf("example config does not carry defaults: %+v", cfg.Input)
	}
}

func TestGenerateCmd_InvalidCount(t *testing.T) {
	if _, err := execute(t, "generate", "log", "--output", filepath.Join(t.TempDir(), "x.log"), "--count", "0"); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestOpenSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Output.ResultFile = filepath.Join(t.TempDir(), "out.jsonl")
	cfg.Output.Format = "json"
	cfg.Output.Console = true

	var console bytes.Buffer
	sinks, err := openSinks(context.Background(), cfg, "run", &console, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 2 {
		t.Fatalf("sinks = %d, want file and console", len(sinks))
	}

	rec := recorder.New(0, sinks...)
	if err := rec.Record(recorder.Result{Status: 200, Path: "/x"}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.Output.ResultFile)
	if err != nil {
		t.Fatal(err)
	}
	var got recorder.Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("file line is not JSON: %v", err)
	}
	if got.Path != "/x" || !strings.Contains(console.String(), `"path":"/x"`) {
		t.Errorf("file %q console %q", data, console.String())
	}
}

func TestOpenSinks_BadFile(t *testing.T) {
	cfg := config.Default()
	cfg.Output.ResultFile = filepath.Join(t.TempDir(), "missing-dir", "out.tsv")

	if _, err := openSinks(context.Background(), cfg, "run", &bytes.Buffer{}, logging.Nop()); err == nil {
		t.Fatal("expected error for unwritable result file")
	}
}
