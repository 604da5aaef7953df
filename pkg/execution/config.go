package execution

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/iterator"
)

// IteratorConfig is the runtime record of one iterator as read from the configuration file.
type IteratorConfig struct {
	Name                        string                     `yaml:"name" json:"name"`
	Enabled                     bool                       `yaml:"enabled" json:"enabled"`
	ThreadPoolSize              int                        `yaml:"threadPoolSize" json:"threadPoolSize"`
	ThreadPoolIntervalInSeconds int64                      `yaml:"threadPoolIntervalInSeconds" json:"threadPoolIntervalInSeconds"`
	NextIterationMode           iterator.NextIterationMode `yaml:"nextIterationMode,omitempty" json:"nextIterationMode,omitempty"`
	TargetIntervalInSeconds     int64                      `yaml:"targetIntervalInSeconds,omitempty" json:"targetIntervalInSeconds,omitempty"`
	ThrottleIntervalInSeconds   int64                      `yaml:"throttleIntervalInSeconds,omitempty" json:"throttleIntervalInSeconds,omitempty"`
	IteratorMode                iterator.ProcessMode       `yaml:"iteratorMode,omitempty" json:"iteratorMode,omitempty"`
}

// Document is the file layout: records under a top-level iterators key.
type Document struct {
	Iterators []IteratorConfig `yaml:"iterators" json:"iterators"`
}

// Validate checks one record in isolation.
func (c IteratorConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case c.ThreadPoolSize < 0:
		return fmt.Errorf("%w: %s: threadPoolSize must not be negative", ErrInvalidConfig, c.Name)
	case c.ThreadPoolIntervalInSeconds < 0, c.TargetIntervalInSeconds < 0, c.ThrottleIntervalInSeconds < 0:
		return fmt.Errorf("%w: %s: intervals must not be negative", ErrInvalidConfig, c.Name)
	}
	switch c.NextIterationMode {
	case "", iterator.Target, iterator.Throttle:
	default:
		return fmt.Errorf("%w: %s: unknown nextIterationMode %q", ErrInvalidConfig, c.Name, c.NextIterationMode)
	}
	switch c.IteratorMode {
	case "", iterator.Pump, iterator.Loop:
	default:
		return fmt.Errorf("%w: %s: unknown iteratorMode %q", ErrInvalidConfig, c.Name, c.IteratorMode)
	}
	if c.Mode() == iterator.Pump && c.ThreadPoolSize > 0 && c.ThreadPoolIntervalInSeconds == 0 {
		return fmt.Errorf("%w: %s: a PUMP pool needs threadPoolIntervalInSeconds", ErrInvalidConfig, c.Name)
	}
	return nil
}

// Mode returns the process mode, PUMP when none is set.
func (c IteratorConfig) Mode() iterator.ProcessMode {
	if c.IteratorMode == "" {
		return iterator.Pump
	}
	return c.IteratorMode
}

// Equal compares records by value.
func (c IteratorConfig) Equal(o IteratorConfig) bool {
	return c == o
}

// Options translates the record into iterator options applied on top of the builder's own.
func (c IteratorConfig) Options() []iterator.Option {
	opts := []iterator.Option{iterator.WithProcessMode(c.Mode())}
	if c.NextIterationMode != "" {
		opts = append(opts, iterator.WithNextIterationMode(c.NextIterationMode))
	}
	if c.TargetIntervalInSeconds > 0 {
		opts = append(opts, iterator.WithTargetInterval(seconds(c.TargetIntervalInSeconds)))
	}
	if c.ThrottleIntervalInSeconds > 0 {
		opts = append(opts, iterator.WithThrottleInterval(seconds(c.ThrottleIntervalInSeconds)))
	}
	if c.ThreadPoolSize > 0 {
		opts = append(opts, iterator.WithConcurrencyLimit(c.ThreadPoolSize))
	}
	if c.ThreadPoolIntervalInSeconds > 0 {
		opts = append(opts, iterator.WithPumpInterval(seconds(c.ThreadPoolIntervalInSeconds)))
	}
	return opts
}

// PumpOptions returns the dedicated pool of a PUMP record, or nil when it runs on the shared executor.
func (c IteratorConfig) PumpOptions() *iterator.PumpExecutorOptions {
	if c.Mode() != iterator.Pump || c.ThreadPoolSize <= 0 {
		return nil
	}
	return &iterator.PumpExecutorOptions{
		Name:     "iterator-" + c.Name,
		PoolSize: c.ThreadPoolSize,
		Interval: seconds(c.ThreadPoolIntervalInSeconds),
	}
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

// ParseConfigs decodes a whole snapshot. JSON documents are accepted since JSON is YAML.
// Unknown keys, duplicate or missing names and trailing documents are rejected.
func ParseConfigs(data []byte) ([]IteratorConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrConfigParse)
		}
		return nil, errors.Join(ErrConfigParse, err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrConfigParse)
	}

	seen := make(map[string]struct{}, len(doc.Iterators))
	for _, c := range doc.Iterators {
		if err := c.Validate(); err != nil {
			return nil, errors.Join(ErrConfigParse, err)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate iterator %q", ErrConfigParse, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if doc.Iterators == nil {
		doc.Iterators = []IteratorConfig{}
	}
	return doc.Iterators, nil
}

// LoadConfigs reads and parses the file at path.
func LoadConfigs(path string) ([]IteratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseConfigs(data)
}
