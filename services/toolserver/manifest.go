package toolserver

import (
	"encoding/json"

	"github.com/harborpoint/netchat/services/llm"
)

// StaticManifest is the built-in catalog of inventory query tools. It mirrors
// what the tool server advertises on GET /tools, so the agent keeps working
// when discovery is unavailable. The agent also tolerates an empty catalog
// and answers from model knowledge alone.
func StaticManifest() []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        "get_prefixes_by_location",
			Description: "Return all network prefixes under a location by its human-friendly name. Supports multiple output formats.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"location_name": {"type": "string", "description": "The location name, e.g. 'Branch Office 3'"},
					"format": {"type": "string", "enum": ["json", "table", "dataframe", "csv"], "default": "json"}
				},
				"required": ["location_name"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "get_devices_by_location",
			Description: "Return all devices at a location by its human-friendly name.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"location_name": {"type": "string"}
				},
				"required": ["location_name"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "get_circuits_by_location",
			Description: "Return all circuits terminating at a location.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"location_name": {"type": "string"}
				},
				"required": ["location_name"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "get_circuits_by_provider",
			Description: "Return all circuits supplied by a named provider.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"provider_name": {"type": "string"}
				},
				"required": ["provider_name"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "get_locations",
			Description: "List all known locations with their hierarchy information.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`),
		},
		{
			Name:        "get_providers",
			Description: "List all known circuit providers.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`),
		},
	}
}
