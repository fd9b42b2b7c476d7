package tools

import (
	"encoding/json"
	"fmt"
)

// Argument structs for each tool, decoded and validated at the registry
// boundary so handlers never see raw maps.

type calendarArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (a calendarArgs) validate() error {
	if a.StartDate == "" || a.EndDate == "" {
		return fmt.Errorf("start_date and end_date are required")
	}
	return nil
}

type controlDeviceArgs struct {
	Domain   string `json:"domain"`
	Service  string `json:"service"`
	EntityID string `json:"entity_id"`
}

func (a controlDeviceArgs) validate() error {
	if a.Domain == "" || a.Service == "" || a.EntityID == "" {
		return fmt.Errorf("domain, service, and entity_id are required")
	}
	return nil
}

type webSearchArgs struct {
	Query    string `json:"query"`
	Approved bool   `json:"approved"`
}

func (a webSearchArgs) validate() error {
	if a.Query == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

type rememberFactArgs struct {
	Fact string `json:"fact"`
}

func (a rememberFactArgs) validate() error {
	if a.Fact == "" {
		return fmt.Errorf("fact is required")
	}
	return nil
}

type searchMemoryArgs struct {
	Query string `json:"query"`
}

func (a searchMemoryArgs) validate() error {
	if a.Query == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

// decodeArgs converts the model's argument map into a typed struct via a
// JSON round trip.
func decodeArgs(args map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}
	return nil
}
