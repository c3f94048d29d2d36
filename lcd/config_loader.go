package lcd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the service configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Validate required fields
	if config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	if len(config.Robots) == 0 {
		return nil, fmt.Errorf("at least one robot must be defined")
	}
	for i, rc := range config.Robots {
		if rc.ID == "" {
			return nil, fmt.Errorf("robot[%d].id is required", i)
		}
		if rc.Topic == "" {
			return nil, fmt.Errorf("robot[%d].topic is required for %s", i, rc.ID)
		}
	}

	for id, lc := range config.Layers {
		if lc.MinCorrespondences < 0 || lc.MinInliers < 0 {
			return nil, fmt.Errorf("layer %d thresholds must be non-negative", id)
		}
		if lc.LogRegistrationProblem && lc.RegistrationOutputPath == "" {
			return nil, fmt.Errorf("layer %d enables problem logging without registrationOutputPath", id)
		}
	}

	if config.Solver.NoiseBound == 0 {
		config.Solver = DefaultRobustSolverParams()
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
