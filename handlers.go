package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/emia7/hydra-lcd/lcd"
)

// newHTTPServer creates an HTTP server with the status endpoints.
func newHTTPServer(stateTracker *lcd.StateTracker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasGraphs bool      `json:"hasGraphs"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasGraphs: stateTracker.HasGraphs(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	mux.HandleFunc("/solutions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		solutions := stateTracker.GetSolutions()
		if err := json.NewEncoder(w).Encode(solutions); err != nil {
			log.Printf("Error encoding solutions: %v", err)
		}
	})

	mux.HandleFunc("/robots", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		graphs := stateTracker.GetGraphs()
		type robotStatus struct {
			RobotID    string `json:"robotId"`
			PlaceNodes int    `json:"placeNodes"`
			AgentNodes int    `json:"agentNodes"`
		}
		robots := make([]robotStatus, 0, len(graphs))
		for id, g := range graphs {
			robots = append(robots, robotStatus{
				RobotID:    id,
				PlaceNodes: g.Layer(lcd.LayerPlaces).NumNodes(),
				AgentNodes: g.Layer(lcd.LayerAgents).NumNodes(),
			})
		}
		if err := json.NewEncoder(w).Encode(robots); err != nil {
			log.Printf("Error encoding robot status: %v", err)
		}
	})

	return mux
}
