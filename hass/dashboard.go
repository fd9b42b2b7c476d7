package hass

import (
	"context"
	"fmt"
	"strings"
)

// usefulDomains are the entity domains worth surfacing on the status
// dashboard.
var usefulDomains = map[string]bool{
	"light":         true,
	"switch":        true,
	"sensor":        true,
	"binary_sensor": true,
	"climate":       true,
	"cover":         true,
	"lock":          true,
	"vacuum":        true,
}

// criticalKeywords mark entities reported even when unknown/unavailable.
var criticalKeywords = []string{"ink", "printer", "lock", "garage", "battery", "smoke", "leak"}

// maxDashboardLines bounds the dashboard summary.
const maxDashboardLines = 2000

// DashboardStatus returns a summarized text of important devices in the
// house.
func (c *Client) DashboardStatus(ctx context.Context) (string, error) {
	states, err := c.states(ctx)
	if err != nil {
		return "", err
	}
	if len(states) == 0 {
		return "No connection to Home Assistant.", nil
	}

	var summary []string
	for _, s := range states {
		domain := entityDomain(s.EntityID)
		if !usefulDomains[domain] {
			continue
		}

		if s.State == "unknown" || s.State == "unavailable" {
			if !isCritical(s.EntityID) {
				continue
			}
		}

		name := friendlyName(s)
		unit, _ := s.Attributes["unit_of_measurement"].(string)
		summary = append(summary, fmt.Sprintf("%s (%s): %s%s", name, s.EntityID, s.State, unit))
	}

	if len(summary) > maxDashboardLines {
		summary = summary[:maxDashboardLines]
	}
	return strings.Join(summary, "\n"), nil
}

// securityDeviceClasses are binary_sensor device classes treated as
// security-relevant.
var securityDeviceClasses = map[string]bool{
	"door":        true,
	"garage_door": true,
	"lock":        true,
	"window":      true,
	"opening":     true,
}

// SecuritySummary returns a text summary of all potential security
// entities: locks, covers, alarm panels, door/window sensors, plus a
// keyword fallback for oddly named entities.
func (c *Client) SecuritySummary(ctx context.Context) (string, error) {
	states, err := c.states(ctx)
	if err != nil {
		return "", err
	}

	var summary []string
	for _, s := range states {
		domain := entityDomain(s.EntityID)

		isSecurity := false
		switch domain {
		case "lock", "cover", "alarm_control_panel":
			isSecurity = true
		case "binary_sensor":
			if devClass, ok := s.Attributes["device_class"].(string); ok && securityDeviceClasses[devClass] {
				isSecurity = true
			}
		}
		if !isSecurity {
			for _, keyword := range []string{"lock", "door", "garage", "gate"} {
				if strings.Contains(s.EntityID, keyword) {
					isSecurity = true
					break
				}
			}
		}

		if isSecurity {
			summary = append(summary, fmt.Sprintf("- %s (%s): %s", friendlyName(s), s.EntityID, s.State))
		}
	}

	return strings.Join(summary, "\n"), nil
}

func isCritical(entityID string) bool {
	for _, keyword := range criticalKeywords {
		if strings.Contains(entityID, keyword) {
			return true
		}
	}
	return false
}

func entityDomain(entityID string) string {
	if i := strings.Index(entityID, "."); i > 0 {
		return entityID[:i]
	}
	return entityID
}

func friendlyName(s State) string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}
