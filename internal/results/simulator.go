package results

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSimulateDelay mimics the time a real analysis run takes to come back.
const DefaultSimulateDelay = 2 * time.Second

//go:embed demo_results.yaml
var demoResultsYAML []byte

// DemoResults returns the fixed example items written by the simulator.
func DemoResults() ([]json.RawMessage, error) {
	var items []Item
	if err := yaml.Unmarshal(demoResultsYAML, &items); err != nil {
		return nil, fmt.Errorf("decode demo results: %w", err)
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// Simulator writes demo results for a user as if the analysis engine had replied.
type Simulator struct {
	Service *Service
	Delay   time.Duration
}

// NewSimulator constructs a Simulator. A negative delay falls back to DefaultSimulateDelay.
func NewSimulator(svc *Service, delay time.Duration) *Simulator {
	if delay < 0 {
		delay = DefaultSimulateDelay
	}
	return &Simulator{Service: svc, Delay: delay}
}

// Run waits out the delay and stores the demo results. It returns the number of items written.
func (s *Simulator) Run(ctx context.Context, userID string) (int, error) {
	results, err := DemoResults()
	if err != nil {
		return 0, err
	}

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	doc, err := s.Service.Write(ctx, userID, results, SourceSimulate)
	if err != nil {
		return 0, err
	}
	return len(doc.Results), nil
}
