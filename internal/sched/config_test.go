package sched

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("got %+v, want defaults %+v", cfg, DefaultConfig())
	}
	if cfg.TickPeriod() != 10*time.Millisecond {
		t.Errorf("default tick period = %v, want 10ms", cfg.TickPeriod())
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `tick_hz: 1000
max_tasks: 3
max_priorities: 99
min_stack_bytes: 8
guard_bytes: 32
start_tick: 4294967293
check_invariants: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickHz != 1000 || cfg.MaxTasks != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxPriorities != 32 {
		t.Errorf("max_priorities = %d, want clamp to 32", cfg.MaxPriorities)
	}
	if cfg.MinStackBytes <= cfg.GuardBytes {
		t.Errorf("min stack %d must exceed guard %d", cfg.MinStackBytes, cfg.GuardBytes)
	}
	if cfg.StartTick != 4294967293 || !cfg.CheckInvariants {
		t.Errorf("start_tick/check_invariants not applied: %+v", cfg)
	}
	if cfg.StackPoolBytes != DefaultConfig().StackPoolBytes {
		t.Errorf("unset key should keep its default, got %d", cfg.StackPoolBytes)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("tick_hz: [fast\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
