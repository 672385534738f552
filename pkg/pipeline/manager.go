package pipeline

import (
	"encoding/json"
	"fmt"
	"plugin"
	"time"

	"go.uber.org/zap"
)

var (
	probers = make(map[string]Prober)
)

// Manager handles probers and targets for pipeline verification.
type Manager struct {
	probers map[string]Prober
	targets map[string]Target
	logger  *zap.Logger
}

// NewManager returns a new Manager instance with the registered probers.
func NewManager() *Manager {
	logger, _ := zap.NewProduction()

	return &Manager{
		probers: probers,
		targets: map[string]Target{},
		logger:  logger,
	}
}

// RegisterProberPlugin loads and registers a prober plugin from the specified path.
func (m *Manager) RegisterProberPlugin(path string, name string) error {
	plug, err := plugin.Open(path)
	if err != nil {
		return err
	}

	symbol, err := plug.Lookup("Prober")
	if err != nil {
		return err
	}

	prober, ok := symbol.(*Prober)
	if !ok {
		return fmt.Errorf("invalid prober plugin")
	}

	RegisterProber(name, *prober)
	return nil
}

// AddTarget creates a new Target bound to a registered prober.
func (m *Manager) AddTarget(prober string, name string) (*Target, error) {
	if _, exists := m.probers[prober]; !exists {
		return nil, fmt.Errorf("prober %s not found", prober)
	}

	target := Target{ProberName: prober, Name: name}
	m.targets[name] = target
	return &target, nil
}

func (m *Manager) Targets() []Target {
	targets := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		targets = append(targets, t)
	}
	return targets
}

func (m *Manager) GetTarget(name string) (*Target, error) {
	if target, exists := m.targets[name]; exists {
		return &target, nil
	}
	return nil, fmt.Errorf("target %s not found", name)
}

// Config lists the downstream targets to observe and the poll pacing shared
// by their probers.
type Config struct {
	Targets []Target `mapstructure:"targets"`
	// PollInterval between probe attempts against each target.
	PollInterval time.Duration `mapstructure:"pollInterval"`
	// PollTimeout is the propagation deadline per target.
	PollTimeout time.Duration `mapstructure:"pollTimeout"`
}

func (c *Config) GetTarget(name string) *Target {
	for _, target := range c.Targets {
		if target.Name == name {
			return &target
		}
	}
	return nil
}

// Init connects all targets from configuration
func (m *Manager) Init(config *Config) error {
	m.logger.Info("Initializing verification manager", zap.Int("targetCount", len(config.Targets)))
	for _, t := range config.Targets {
		m.logger.Debug("Adding target",
			zap.String("name", t.Name),
			zap.String("prober", t.ProberName))

		target, err := m.AddTarget(t.ProberName, t.Name)
		if err != nil {
			m.logger.Error("Failed to add target",
				zap.String("name", t.Name),
				zap.String("prober", t.ProberName),
				zap.Error(err))
			return fmt.Errorf("failed to add target %s: %w", t.Name, err)
		}

		// Store the config in the target
		target.Config = t.Config
		m.targets[target.Name] = *target
		configJSON, err := json.Marshal(target.Config)
		if err != nil {
			m.logger.Error("Failed to marshal config for target",
				zap.String("name", target.Name),
				zap.Error(err))
			return fmt.Errorf("failed to marshal config for target %s: %w", target.Name, err)
		}

		prober := target.Prober()
		if prober == nil {
			m.logger.Error("Prober not found for target",
				zap.String("name", target.Name))
			return fmt.Errorf("prober not found for target %s", target.Name)
		}

		m.logger.Debug("Connecting target",
			zap.String("name", target.Name),
			zap.String("prober", t.ProberName))

		if err := prober.Connect(json.RawMessage(configJSON)); err != nil {
			// Retry logic with simple backoff
			delays := []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}
			var success bool

			for _, delay := range delays {
				m.logger.Warn("Retrying connection",
					zap.String("name", target.Name),
					zap.Duration("delay", delay))
				time.Sleep(delay)

				if err = prober.Connect(json.RawMessage(configJSON)); err == nil {
					success = true
					break
				}
			}

			if !success {
				m.logger.Error("Failed to initialize prober after retries",
					zap.String("name", target.Name),
					zap.Error(err))
				return fmt.Errorf("failed to initialize prober %s: %w", target.Name, err)
			}
		}

		m.logger.Info("Successfully connected target",
			zap.String("name", target.Name),
			zap.String("prober", t.ProberName))
	}

	m.logger.Info("Successfully initialized all targets", zap.Int("totalTargets", len(m.targets)))
	return nil
}

// Close disconnects every target's prober. Errors are logged, not returned:
// teardown keeps going.
func (m *Manager) Close() {
	for name, t := range m.targets {
		prober := t.Prober()
		if prober == nil {
			continue
		}
		if err := prober.Disconnect(); err != nil {
			m.logger.Warn("Failed to disconnect target",
				zap.String("name", name),
				zap.Error(err))
		}
	}
}
