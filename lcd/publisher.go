package lcd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SolutionMessage is the wire form of a published registration solution.
type SolutionMessage struct {
	QueryRobot string                  `json:"queryRobot"`
	MatchRobot string                  `json:"matchRobot"`
	Layer      LayerID                 `json:"layer"`
	Solution   DsgRegistrationSolution `json:"solution"`
	Timestamp  int64                   `json:"timestamp"`
}

// Publisher publishes registration solutions to MQTT.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	solutions     map[string]*SolutionMessage // keyed by "query|match"
	mu            sync.RWMutex
}

// NewPublisher creates a new solution publisher. If client is nil,
// publishing is disabled (for testing).
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "hydra-lcd"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // fire and forget; the pose graph gets the next one
		retain:        true, // retain latest solution per pair
		solutions:     make(map[string]*SolutionMessage),
	}
}

// PublishSolution publishes a registration solution to both the pair topic
// and the combined solutions topic.
func (p *Publisher) PublishSolution(queryRobot, matchRobot string, layer LayerID, solution DsgRegistrationSolution) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	message := &SolutionMessage{
		QueryRobot: queryRobot,
		MatchRobot: matchRobot,
		Layer:      layer,
		Solution:   solution,
		Timestamp:  time.Now().Unix(),
	}

	p.mu.Lock()
	p.solutions[queryRobot+"|"+matchRobot] = message
	p.mu.Unlock()

	if err := p.publishIndividual(message); err != nil {
		log.Printf("Error publishing solution for %s->%s: %v", queryRobot, matchRobot, err)
		return err
	}

	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined solutions: %v", err)
		return err
	}

	return nil
}

// publishIndividual publishes one solution to its pair topic:
// {prefix}/{queryRobot}/{matchRobot}
func (p *Publisher) publishIndividual(message *SolutionMessage) error {
	topic := fmt.Sprintf("%s/%s/%s", p.publishPrefix, message.QueryRobot, message.MatchRobot)

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling solution: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published solution %s->%s: valid=%v inliers=%d",
		message.QueryRobot, message.MatchRobot, message.Solution.Valid, len(message.Solution.Inliers))
	return nil
}

// publishCombined publishes all latest solutions to the combined topic:
// {prefix}/solutions
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	solutions := make([]*SolutionMessage, 0, len(p.solutions))
	for _, s := range p.solutions {
		solutions = append(solutions, s)
	}
	p.mu.RUnlock()

	if len(solutions) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/solutions", p.publishPrefix)

	message := map[string]interface{}{
		"solutions": solutions,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined solutions: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// GetSolution returns the last published solution for a robot pair.
func (p *Publisher) GetSolution(queryRobot, matchRobot string) (*SolutionMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.solutions[queryRobot+"|"+matchRobot]
	return s, ok
}

// GetAllSolutions returns a copy of all latest solutions.
func (p *Publisher) GetAllSolutions() []*SolutionMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	solutions := make([]*SolutionMessage, 0, len(p.solutions))
	for _, s := range p.solutions {
		messageCopy := *s
		solutions = append(solutions, &messageCopy)
	}
	return solutions
}

// SetQoS sets the publish Quality of Service level (0, 1, or 2).
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages are retained by the broker.
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
