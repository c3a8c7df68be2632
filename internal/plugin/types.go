// Package plugin runs voice plugins that read form cues aloud during a
// workout. A voice plugin is a directory holding a plugin.json manifest and
// an executable. The executable reads one JSON Request on stdin and answers
// with one JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// ActionSpeak asks a plugin to say Request.Text out loud.
const ActionSpeak = "speak"

// ManifestFile is the name of the manifest inside a plugin directory.
const ManifestFile = "plugin.json"

// Manifest is a voice plugin's plugin.json.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`

	// Settings is the JSON schema of the settings object the plugin accepts,
	// such as which system voice to use and how fast to talk.
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Request is one cue to speak.
type Request struct {
	Action   string          `json:"action"`
	Exercise string          `json:"exercise,omitempty"`
	Text     string          `json:"text,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Response is what the plugin reports back. Data is plugin specific.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string // plugin directory, the executable's working directory
	Executable string // absolute path of the executable
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}

// Name is the manifest name.
func (p *Plugin) Name() string {
	return p.Manifest.Name
}
