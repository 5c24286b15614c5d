package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing command")
	}
	if err := Run(context.Background(), []string{"launch"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunSeedRequiresName(t *testing.T) {
	if err := Run(context.Background(), []string{"seed"}); err == nil {
		t.Fatal("expected error when seed name is missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "seeds")
	got, err := resolvePath(abs)
	if err != nil || got != abs {
		t.Fatalf("expected absolute path unchanged, got %q (%v)", got, err)
	}

	got, err = resolvePath("seeds")
	if err != nil {
		t.Fatalf("resolve relative path: %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != "seeds" {
		t.Fatalf("expected absolute seeds path, got %q", got)
	}
}
