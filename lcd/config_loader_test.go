package lcd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://localhost:1883
  clientId: hydra-lcd-test
reference: robot-a
robots:
  - id: robot-a
    topic: robots/a/dsg
  - id: robot-b
    topic: robots/b/dsg
layers:
  3:
    minCorrespondences: 8
    minInliers: 6
    usePairwise: true
solver:
  noiseBound: 0.25
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if config.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("unexpected broker: %s", config.MQTT.Broker)
	}
	if config.Reference != "robot-a" {
		t.Errorf("unexpected reference robot: %s", config.Reference)
	}
	if len(config.Robots) != 2 {
		t.Fatalf("expected 2 robots, got %d", len(config.Robots))
	}
	if robot := config.GetRobotByID("robot-b"); robot == nil || robot.Topic != "robots/b/dsg" {
		t.Errorf("unexpected robot-b config: %+v", robot)
	}
	if config.GetRobotByID("robot-z") != nil {
		t.Error("expected nil for an unknown robot")
	}

	places := config.LayerConfig(LayerPlaces)
	if places.MinCorrespondences != 8 || places.MinInliers != 6 || !places.UsePairwise {
		t.Errorf("unexpected places layer config: %+v", places)
	}

	// Layers without an entry fall back to defaults.
	objects := config.LayerConfig(LayerObjects)
	if objects != DefaultLayerRegistrationConfig() {
		t.Errorf("unexpected objects layer config: %+v", objects)
	}

	if config.Solver.NoiseBound != 0.25 {
		t.Errorf("unexpected noise bound: %v", config.Solver.NoiseBound)
	}
}

func TestLoadConfig_DefaultsSolverParams(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://localhost:1883
robots:
  - id: robot-a
    topic: robots/a/dsg
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if config.Solver.NoiseBound != DefaultRobustSolverParams().NoiseBound {
		t.Errorf("expected default solver params, got %+v", config.Solver)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing broker", `
robots:
  - id: robot-a
    topic: robots/a/dsg
`},
		{"no robots", `
mqtt:
  broker: tcp://localhost:1883
robots: []
`},
		{"robot without id", `
mqtt:
  broker: tcp://localhost:1883
robots:
  - topic: robots/a/dsg
`},
		{"robot without topic", `
mqtt:
  broker: tcp://localhost:1883
robots:
  - id: robot-a
`},
		{"negative threshold", `
mqtt:
  broker: tcp://localhost:1883
robots:
  - id: robot-a
    topic: robots/a/dsg
layers:
  3:
    minCorrespondences: -1
`},
		{"logging without path", `
mqtt:
  broker: tcp://localhost:1883
robots:
  - id: robot-a
    topic: robots/a/dsg
layers:
  3:
    minCorrespondences: 5
    minInliers: 5
    logRegistrationProblem: true
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	config := &Config{
		MQTT:      MQTTConfig{Broker: "tcp://broker:1883", ClientID: "test"},
		Reference: "robot-a",
		Robots: []RobotConfig{
			{ID: "robot-a", Topic: "robots/a/dsg"},
		},
		Layers: map[LayerID]LayerRegistrationConfig{
			LayerPlaces: {MinCorrespondences: 7, MinInliers: 4},
		},
		Solver: RobustSolverParams{NoiseBound: 0.75},
	}

	if err := SaveConfig(path, config); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("re-loading config: %v", err)
	}

	if loaded.MQTT.Broker != config.MQTT.Broker {
		t.Errorf("broker lost: %s", loaded.MQTT.Broker)
	}
	if loaded.LayerConfig(LayerPlaces).MinCorrespondences != 7 {
		t.Errorf("layer config lost: %+v", loaded.LayerConfig(LayerPlaces))
	}
	if loaded.Solver.NoiseBound != 0.75 {
		t.Errorf("solver params lost: %+v", loaded.Solver)
	}
}
