package tools

import (
	"github.com/Desarso/hearth/models"
)

// CalendarEventsTool returns a FunctionDeclaration for the calendar fetch
// tool.
func CalendarEventsTool() models.FunctionDeclaration {
	return models.FunctionDeclaration{
		Name:        "get_calendar_events",
		Description: "Fetch calendar events for a specific date range.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]interface{}{
				"start_date": map[string]interface{}{
					"type":        "string",
					"description": "YYYY-MM-DD",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"description": "YYYY-MM-DD",
				},
			},
			Required: []string{"start_date", "end_date"},
		},
	}
}

// CheckHomeTool returns a FunctionDeclaration for the home status tool.
func CheckHomeTool() models.FunctionDeclaration {
	return models.FunctionDeclaration{
		Name:        "check_home",
		Description: "Check the status of devices in the house (lights, sensors, switches, printers, locks, vehicles, etc). Use this before controlling a device to get its entity_id.",
		Parameters: models.Parameters{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// ControlDeviceTool returns a FunctionDeclaration for the device control
// tool.
func ControlDeviceTool() models.FunctionDeclaration {
	return models.FunctionDeclaration{
		Name:        "control_device",
		Description: "Turn a device on/off or call a service.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]interface{}{
				"domain": map[string]interface{}{
					"type":        "string",
					"description": "e.g. light, switch, cover",
				},
				"service": map[string]interface{}{
					"type":        "string",
					"description": "e.g. turn_on, turn_off, toggle",
				},
				"entity_id": map[string]interface{}{
					"type":        "string",
					"description": "The specific entity_id found via check_home (e.g. light.kitchen)",
				},
			},
			Required: []string{"domain", "service", "entity_id"},
		},
	}
}

// WebSearchTool returns a FunctionDeclaration for the gated web search
// tool.
func WebSearchTool() models.FunctionDeclaration {
	return models.FunctionDeclaration{
		Name:        "web_search",
		Description: "Search the internet for up-to-date information.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query.",
				},
				"approved": map[string]interface{}{
					"type":        "boolean",
					"description": "Set to true if the user explicitly agreed to search.",
				},
			},
			Required: []string{"query"},
		},
	}
}

// RememberFactTool returns a FunctionDeclaration for the memory write
// tool.
func RememberFactTool() models.FunctionDeclaration {
	return models.FunctionDeclaration{
		Name:        "remember_fact",
		Description: "Store important information in long-term memory (e.g. user preferences, codes, locations, relationships). Do not use for temporary conversation context.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]interface{}{
				"fact": map[string]interface{}{
					"type":        "string",
					"description": "The information to remember.",
				},
			},
			Required: []string{"fact"},
		},
	}
}

// SearchMemoryTool returns a FunctionDeclaration for the memory query
// tool.
func SearchMemoryTool() models.FunctionDeclaration {
	return models.FunctionDeclaration{
		Name:        "search_memory",
		Description: "Search long-term memory for facts.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What are you looking for?",
				},
			},
			Required: []string{"query"},
		},
	}
}

// DefaultTools returns the standard tool set for Hearth. The list is
// built once at startup and stays stable for the process lifetime.
func DefaultTools() []models.FunctionDeclaration {
	return []models.FunctionDeclaration{
		CalendarEventsTool(),
		CheckHomeTool(),
		ControlDeviceTool(),
		WebSearchTool(),
		RememberFactTool(),
		SearchMemoryTool(),
	}
}
