package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	TickHz          int    `yaml:"tick_hz"`          // 100 (by default), i.e. 10ms per tick
	MaxTasks        int    `yaml:"max_tasks"`        // 8 (by default)
	MaxPriorities   int    `yaml:"max_priorities"`   // 8 (by default), at most 32
	StackPoolBytes  int    `yaml:"stack_pool_bytes"` // 16384 (by default)
	MinStackBytes   int    `yaml:"min_stack_bytes"`  // 128 (by default)
	GuardBytes      int    `yaml:"guard_bytes"`      // 16 (by default)
	StartTick       uint32 `yaml:"start_tick"`       // 0 (by default)
	EventBuffer     int    `yaml:"event_buffer"`     // 1024 (by default)
	CheckInvariants bool   `yaml:"check_invariants"` // false (by default)
}

const maxPriorityLevels = 32

// DefaultConfig matches a small Cortex-M class part: 100Hz tick, 16KiB of
// task stacks.
func DefaultConfig() Config {
	return Config{
		TickHz:         100,
		MaxTasks:       8,
		MaxPriorities:  8,
		StackPoolBytes: 16 * 1024,
		MinStackBytes:  128,
		GuardBytes:     16,
		EventBuffer:    1024,
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only. A file that exists but does not parse is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg.normalize(), nil
}

// Marshal renders the config back to YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// TickPeriod is the wall-clock length of one tick.
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

// normalize applies sanity clamps.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.TickHz <= 0 {
		c.TickHz = def.TickHz
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = def.MaxTasks
	}
	if c.MaxPriorities <= 0 {
		c.MaxPriorities = def.MaxPriorities
	} else if c.MaxPriorities > maxPriorityLevels {
		c.MaxPriorities = maxPriorityLevels
	}
	if c.GuardBytes < 0 {
		c.GuardBytes = 0
	}
	if c.MinStackBytes <= c.GuardBytes {
		c.MinStackBytes = c.GuardBytes + def.MinStackBytes
	}
	if c.StackPoolBytes <= 0 {
		c.StackPoolBytes = def.StackPoolBytes
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}
