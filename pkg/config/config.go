// Package config loads the YAML run description: the object table, timing,
// logging, audit and metrics sinks, and the workload to replay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"txmanager/pkg/logging"

	"gopkg.in/yaml.v2"
)

const (
	DefaultObjectCount  = 10
	DefaultInitialValue = 0
	DefaultDelayUnit    = 10 * time.Microsecond
)

// Operation names accepted in the workload list
const (
	OpBegin  = "begin"
	OpRead   = "read"
	OpWrite  = "write"
	OpCommit = "commit"
	OpAbort  = "abort"
)

type ObjectsConfig struct {
	Count   int     `yaml:"count"`
	Initial int64   `yaml:"initial"`
	Values  []int64 `yaml:"values"` // overrides Count and Initial when set
}

type AuditConfig struct {
	Path       string `yaml:"path"` // empty or "-" writes to stdout
	BufferSize int    `yaml:"buffer_size"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the /metrics endpoint
}

// OperationSpec is one workload entry. Operations of a transaction are
// sequenced in the order they appear in the list.
type OperationSpec struct {
	Op     string `yaml:"op"`
	TID    int64  `yaml:"tid"`
	Object int64  `yaml:"object,omitempty"`
	Kind   string `yaml:"kind,omitempty"`  // begin only: R or W
	Delay  int64  `yaml:"delay,omitempty"` // begin only
}

type Config struct {
	Objects   ObjectsConfig   `yaml:"objects"`
	DelayUnit string          `yaml:"delay_unit"`
	Logging   logging.Config  `yaml:"logging"`
	Audit     AuditConfig     `yaml:"audit_log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Workload  []OperationSpec `yaml:"workload"`

	delayUnit time.Duration
}

func Default() *Config {
	return &Config{
		Objects: ObjectsConfig{
			Count:   DefaultObjectCount,
			Initial: DefaultInitialValue,
		},
		DelayUnit: DefaultDelayUnit.String(),
		Logging: logging.Config{
			Level:  logging.LevelInfo,
			Format: "console",
		},
		delayUnit: DefaultDelayUnit,
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and resolves derived values.
func (c *Config) Validate() error {
	if len(c.Objects.Values) == 0 && c.Objects.Count <= 0 {
		return fmt.Errorf("objects.count must be positive, got %d", c.Objects.Count)
	}

	unit := DefaultDelayUnit
	if c.DelayUnit != "" {
		d, err := time.ParseDuration(c.DelayUnit)
		if err != nil {
			return fmt.Errorf("invalid delay_unit %q: %w", c.DelayUnit, err)
		}
		if d < 0 {
			return fmt.Errorf("delay_unit must not be negative, got %s", d)
		}
		unit = d
	}
	c.delayUnit = unit

	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("audit_log.buffer_size must not be negative, got %d", c.Audit.BufferSize)
	}

	for i := range c.Workload {
		if err := c.validateOperation(i); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateOperation(i int) error {
	op := &c.Workload[i]
	op.Op = strings.ToLower(strings.TrimSpace(op.Op))

	if op.TID <= 0 {
		return fmt.Errorf("workload[%d]: tid must be positive, got %d", i, op.TID)
	}

	switch op.Op {
	case OpBegin:
		switch op.Kind {
		case "R", "W":
		case "":
			op.Kind = "W"
		default:
			return fmt.Errorf("workload[%d]: kind must be R or W, got %q", i, op.Kind)
		}
		if op.Delay < 0 {
			return fmt.Errorf("workload[%d]: delay must not be negative, got %d", i, op.Delay)
		}
	case OpRead, OpWrite:
		if op.Object < 0 || op.Object >= int64(c.ObjectCount()) {
			return fmt.Errorf("workload[%d]: object %d outside [0, %d)", i, op.Object, c.ObjectCount())
		}
	case OpCommit, OpAbort:
	default:
		return fmt.Errorf("workload[%d]: unknown op %q", i, op.Op)
	}
	return nil
}

// ObjectCount is the size of the object table.
func (c *Config) ObjectCount() int {
	if len(c.Objects.Values) > 0 {
		return len(c.Objects.Values)
	}
	return c.Objects.Count
}

// InitialValues returns the starting value of every object.
func (c *Config) InitialValues() []int64 {
	if len(c.Objects.Values) > 0 {
		return append([]int64(nil), c.Objects.Values...)
	}
	values := make([]int64, c.Objects.Count)
	for i := range values {
		values[i] = c.Objects.Initial
	}
	return values
}

// Delay returns the parsed delay unit. Only valid after Validate.
func (c *Config) Delay() time.Duration {
	return c.delayUnit
}
