package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emia7/hydra-lcd/lcd"
)

// App encapsulates the service state and dependencies.
type App struct {
	Config       *lcd.Config
	StateTracker *lcd.StateTracker
	MQTTClient   *lcd.MQTTClient
	Publisher    *lcd.Publisher

	// CLI flags (effectively dependencies)
	ConfigFile string
	QueryFile  string
	MatchFile  string
	Layer      int
	OutputFile string
	SVGFile    string
	HTTPPort   int
	MqttMode   bool
	HTTPMode   bool
}

// AppOptions carries parsed CLI flags into the App.
type AppOptions struct {
	ConfigFile string
	QueryFile  string
	MatchFile  string
	Layer      int
	OutputFile string
	SVGFile    string
	HTTPPort   int
	MqttMode   bool
	HTTPMode   bool
}

// NewApp creates a new App instance.
func NewApp() *App {
	return &App{
		StateTracker: lcd.NewStateTracker(),
	}
}

// ApplyOptions applies CLI options to the App instance.
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.QueryFile = opts.QueryFile
	a.MatchFile = opts.MatchFile
	a.Layer = opts.Layer
	a.OutputFile = opts.OutputFile
	a.SVGFile = opts.SVGFile
	a.HTTPPort = opts.HTTPPort
	a.MqttMode = opts.MqttMode
	a.HTTPMode = opts.HTTPMode
}

// RunRegister loads two scene graph exports and registers the query
// graph's configured layer against the match graph's.
func (a *App) RunRegister() {
	if a.QueryFile == "" || a.MatchFile == "" {
		log.Fatal("both -query and -match graph export files are required")
	}

	queryGraph, err := lcd.ParseGraphFile(a.QueryFile)
	if err != nil {
		log.Fatalf("Error parsing query graph: %v", err)
	}
	matchGraph, err := lcd.ParseGraphFile(a.MatchFile)
	if err != nil {
		log.Fatalf("Error parsing match graph: %v", err)
	}

	layerID := lcd.LayerID(a.Layer)
	config := a.layerConfig(layerID)
	params := a.solverParams()

	solver := lcd.NewGeometricSolver(layerID, config, params)
	input := lcd.DsgRegistrationInput{
		QueryNodes: queryGraph.Layer(layerID).NodeIDs(),
		MatchNodes: matchGraph.Layer(layerID).NodeIDs(),
	}

	start := time.Now()
	solution := solver.SolveAcross(queryGraph, matchGraph, input)
	elapsed := time.Since(start)

	fmt.Printf("=== %s -> %s (layer %d) ===\n", queryGraph.RobotID, matchGraph.RobotID, layerID)
	fmt.Printf("Query nodes: %d, match nodes: %d\n", len(input.QueryNodes), len(input.MatchNodes))
	fmt.Printf("Valid: %v, inliers: %d, solve time: %v\n", solution.Valid, len(solution.Inliers), elapsed)
	if solution.Valid {
		t := solution.DestTSrc.T
		fmt.Printf("Translation: (%.3f, %.3f, %.3f)\n", t.X, t.Y, t.Z)
	}

	if a.OutputFile != "" {
		data, err := json.MarshalIndent(solution, "", "  ")
		if err != nil {
			log.Fatalf("Error marshaling solution: %v", err)
		}
		if err := os.WriteFile(a.OutputFile, data, 0644); err != nil {
			log.Fatalf("Error writing solution: %v", err)
		}
		fmt.Printf("Wrote solution to %s\n", a.OutputFile)
	}

	if a.SVGFile != "" {
		a.renderProblem(queryGraph, matchGraph, layerID, config, input, solution)
	}
}

// renderProblem writes the debug SVG for a finished registration attempt.
func (a *App) renderProblem(queryGraph, matchGraph *lcd.DynamicSceneGraph, layerID lcd.LayerID, config lcd.LayerRegistrationConfig, input lcd.DsgRegistrationInput, solution lcd.DsgRegistrationSolution) {
	match := lcd.MatchSemantic
	if config.UsePairwise {
		match = lcd.MatchPairwise
	}
	problem := &lcd.LayerRegistrationProblem{
		SrcNodes:  input.QueryNodes,
		DestNodes: input.MatchNodes,
		DestLayer: matchGraph.Layer(layerID),
	}
	correspondences, srcPoints, destPoints := lcd.SnapshotProblem(problem, queryGraph.Layer(layerID), match)

	renderer := lcd.NewCorrespondenceRenderer(correspondences, srcPoints, destPoints, solution.Inliers)
	f, err := os.Create(a.SVGFile)
	if err != nil {
		log.Fatalf("Error creating SVG file: %v", err)
	}
	defer f.Close()
	if err := renderer.RenderToSVG(f); err != nil {
		log.Fatalf("Error rendering SVG: %v", err)
	}
	fmt.Printf("Wrote debug SVG to %s\n", a.SVGFile)
}

// RunReplay re-solves a logged registration problem.
func (a *App) RunReplay(path string) {
	correspondences, srcPoints, destPoints, err := lcd.LoadRegistrationProblem(path)
	if err != nil {
		log.Fatalf("Error loading registration problem: %v", err)
	}

	fmt.Printf("Replaying %s: %d correspondences\n", path, len(correspondences))

	solver := lcd.NewMaxCliqueSolver(a.solverParams())
	result := solver.Solve(srcPoints, destPoints)
	if !result.Valid {
		fmt.Println("Solver rejected the problem")
		return
	}

	inliers := solver.InlierMaxClique()
	fmt.Printf("Valid with %d inliers:\n", len(inliers))
	for _, index := range inliers {
		c := correspondences[index]
		fmt.Printf("  %s -> %s\n", c.Src, c.Dest)
	}
	t := result.Translation
	fmt.Printf("Translation: (%.3f, %.3f, %.3f)\n", t.X, t.Y, t.Z)
}

// RunService runs the MQTT snapshot-registration loop and, optionally, the
// HTTP status server.
func (a *App) RunService() {
	config, err := lcd.LoadConfig(a.ConfigFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	a.Config = config

	if a.MqttMode {
		client, err := lcd.InitMQTT(config, a.handleGraph)
		if err != nil {
			log.Fatalf("Error initializing MQTT: %v", err)
		}
		a.MQTTClient = client
		if client != nil {
			a.Publisher = lcd.NewPublisher(client.Client())
		}
	}

	if a.HTTPMode {
		handler := newHTTPServer(a.StateTracker)
		addr := fmt.Sprintf(":%d", a.HTTPPort)
		go func() {
			log.Printf("HTTP server listening on %s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	// Block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
}

// handleGraph is invoked for every received scene graph snapshot. It
// stores the graph and attempts place-layer registration against the
// reference robot.
func (a *App) handleGraph(robotID string, rawPayload []byte, graph *lcd.DynamicSceneGraph, err error) {
	if err != nil {
		log.Printf("Dropping snapshot for %s: %v", robotID, err)
		return
	}

	a.StateTracker.UpdateGraph(robotID, graph)

	reference := a.Config.Reference
	if reference == "" || reference == robotID {
		return
	}
	referenceGraph, ok := a.StateTracker.GetGraph(reference)
	if !ok {
		log.Printf("No snapshot for reference robot %s yet", reference)
		return
	}

	layerID := lcd.LayerPlaces
	solver := lcd.NewGeometricSolver(layerID, a.layerConfig(layerID), a.solverParams())
	input := lcd.DsgRegistrationInput{
		QueryNodes: graph.Layer(layerID).NodeIDs(),
		MatchNodes: referenceGraph.Layer(layerID).NodeIDs(),
	}

	solution := solver.SolveAcross(graph, referenceGraph, input)
	message := &lcd.SolutionMessage{
		QueryRobot: robotID,
		MatchRobot: reference,
		Layer:      layerID,
		Solution:   solution,
		Timestamp:  time.Now().Unix(),
	}
	a.StateTracker.RecordSolution(message)

	if a.Publisher != nil && solution.Valid {
		if err := a.Publisher.PublishSolution(robotID, reference, layerID, solution); err != nil {
			log.Printf("Error publishing solution for %s: %v", robotID, err)
		}
	}
}

func (a *App) layerConfig(id lcd.LayerID) lcd.LayerRegistrationConfig {
	if a.Config != nil {
		return a.Config.LayerConfig(id)
	}
	if a.ConfigFile != "" {
		if config, err := lcd.LoadConfig(a.ConfigFile); err == nil {
			a.Config = config
			return config.LayerConfig(id)
		}
	}
	return lcd.DefaultLayerRegistrationConfig()
}

func (a *App) solverParams() lcd.RobustSolverParams {
	if a.Config != nil && a.Config.Solver.NoiseBound > 0 {
		return a.Config.Solver
	}
	return lcd.DefaultRobustSolverParams()
}
