package main

import (
	"flag"
	"fmt"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	register   = flag.Bool("register", false, "Register two graph exports and exit")
	queryFile  = flag.String("query", "", "Query scene graph export (JSON) for -register")
	matchFile  = flag.String("match", "", "Match scene graph export (JSON) for -register")
	layerFlag  = flag.Int("layer", 3, "Scene graph layer to register (default: places)")
	replayFile = flag.String("replay", "", "Replay a logged registration problem (GeoJSON) and exit")
	outputFile = flag.String("output", "", "Write the registration solution JSON to this path")
	svgFile    = flag.String("svg", "", "Write a debug SVG of the registration problem to this path")
	mqttMode   = flag.Bool("mqtt", false, "Run MQTT service mode for live snapshot registration")
	httpMode   = flag.Bool("http", false, "Enable HTTP status server")
	httpPort   = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
)

func main() {
	flag.Parse()
	fmt.Printf("hydra-lcd version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: *configFile,
		QueryFile:  *queryFile,
		MatchFile:  *matchFile,
		Layer:      *layerFlag,
		OutputFile: *outputFile,
		SVGFile:    *svgFile,
		HTTPPort:   *httpPort,
		MqttMode:   *mqttMode,
		HTTPMode:   *httpMode,
	})

	if *replayFile != "" {
		app.RunReplay(*replayFile)
		return
	}

	if *register {
		app.RunRegister()
		return
	}

	if *mqttMode || *httpMode {
		app.RunService()
		return
	}

	fmt.Println("hydra-lcd: loop-closure layer registration service")
	fmt.Println("Use -register -query a.json -match b.json to register two graph exports")
	fmt.Println("Use -replay problem.geojson to re-solve a logged registration problem")
	fmt.Println("Use -mqtt to run the live snapshot registration service")
	fmt.Println("Use -http to serve registration status over HTTP")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - MQTT settings, per-layer thresholds, solver parameters")
}
