// Package hass is the gateway to the Home Assistant REST API: entity
// states, service calls, scenes, and calendar events.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// maxCalendarLines caps the calendar summary to keep it inside the model
// context window.
const maxCalendarLines = 50

// Client is a Home Assistant REST API client.
type Client struct {
	BaseURL string
	Token   string
	client  *http.Client
	watcher *StateWatcher
}

// SetWatcher attaches a live state cache. Dashboard reads use its snapshot
// while the websocket subscription is up instead of hitting the REST API.
func (c *Client) SetWatcher(w *StateWatcher) {
	c.watcher = w
}

// states returns the freshest view of all entity states.
func (c *Client) states(ctx context.Context) ([]State, error) {
	if c.watcher != nil && c.watcher.IsReady() {
		return c.watcher.Snapshot(), nil
	}
	return c.ListStates(ctx)
}

// NewClient creates a new Home Assistant client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// State represents an entity state from Home Assistant.
type State struct {
	EntityID   string                 `json:"entity_id"`
	State      string                 `json:"state"`
	Attributes map[string]interface{} `json:"attributes"`
}

// APIStatus represents the HA API status response.
type APIStatus struct {
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("home assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("home assistant returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode home assistant response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("home assistant request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
}

// Ping checks if the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var status APIStatus
	if err := c.get(ctx, "/api/", &status); err != nil {
		return err
	}
	if status.Message != "API running." {
		return fmt.Errorf("unexpected API status: %s", status.Message)
	}
	return nil
}

// ListStates retrieves all entity states.
func (c *Client) ListStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.get(ctx, "/api/states", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// CallAction invokes a Home Assistant service on an entity, e.g.
// light.turn_on on light.kitchen.
func (c *Client) CallAction(ctx context.Context, domain, service, entityID string) (string, error) {
	if domain == "scene" {
		if c.ActivateScene(ctx, entityID) {
			return fmt.Sprintf("success: activated %s", entityID), nil
		}
		return fmt.Sprintf("failed: could not activate %s", entityID), nil
	}

	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	status, err := c.post(ctx, path, map[string]string{"entity_id": entityID})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return fmt.Sprintf("failed: %d", status), nil
	}
	return fmt.Sprintf("success: called %s.%s on %s", domain, service, entityID), nil
}

// ActivateScene turns on a Home Assistant scene.
func (c *Client) ActivateScene(ctx context.Context, sceneID string) bool {
	status, err := c.post(ctx, "/api/services/scene/turn_on", map[string]string{"entity_id": sceneID})
	if err != nil {
		return false
	}
	return status == http.StatusOK
}

// calendarEvent mirrors the HA calendar API response shape. Start and end
// arrive as either {"dateTime": ...} or {"date": ...}.
type calendarEvent struct {
	Summary string            `json:"summary"`
	Start   map[string]string `json:"start"`
	End     map[string]string `json:"end"`
}

// EventsInRange fetches events from every calendar entity for the given
// range. Dates are YYYY-MM-DD strings. The summary is truncated to
// maxCalendarLines with an explicit marker.
func (c *Client) EventsInRange(ctx context.Context, startDate, endDate string) (string, error) {
	states, err := c.ListStates(ctx)
	if err != nil {
		return "", err
	}

	var calendars []string
	for _, s := range states {
		if strings.HasPrefix(s.EntityID, "calendar.") {
			calendars = append(calendars, s.EntityID)
		}
	}
	if len(calendars) == 0 {
		return "No calendars found.", nil
	}

	params := url.Values{}
	params.Set("start", startDate+"T00:00:00")
	params.Set("end", endDate+"T23:59:59")

	var found []string
	for _, calID := range calendars {
		var events []calendarEvent
		path := fmt.Sprintf("/api/calendars/%s?%s", url.PathEscape(calID), params.Encode())
		if err := c.get(ctx, path, &events); err != nil {
			// A broken calendar should not drop the rest.
			continue
		}
		for _, event := range events {
			summary := event.Summary
			if summary == "" {
				summary = "Busy"
			}
			when := event.Start["dateTime"]
			if when == "" {
				when = event.Start["date"]
			}
			if when == "" {
				when = "Unknown"
			}
			found = append(found, fmt.Sprintf("- [%s] %s (%s)", when, summary, calID))
		}
	}

	if len(found) == 0 {
		return fmt.Sprintf("No events found between %s and %s.", startDate, endDate), nil
	}

	sort.Strings(found)

	if len(found) > maxCalendarLines {
		found = found[:maxCalendarLines]
		found = append(found, "... (List truncated. Please refine search range.)")
	}

	return fmt.Sprintf("Events from %s to %s:\n%s", startDate, endDate, strings.Join(found, "\n")), nil
}
