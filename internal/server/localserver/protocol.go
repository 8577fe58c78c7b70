package localserver

import "encoding/json"

// Commands understood by the local server.
const (
	CmdStatus       = "status"
	CmdTokenGet     = "token.get"
	CmdTokenSet     = "token.set"
	CmdTokenSync    = "token.sync"
	CmdProjectOpen  = "project.open"
	CmdProjectClose = "project.close"
	CmdProjectList  = "project.list"
	CmdLaunchShow   = "launch.show"
)

// Argument names.
const (
	ArgValue = "value"
	ArgPath  = "path"
	ArgID    = "id"
)

// Request is one newline-delimited JSON request.
type Request struct {
	Command string            `json:"command"`
	Args    map[string]string `json:"args,omitempty"`
}

// Response is one newline-delimited JSON response.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatusData answers CmdStatus.
type StatusData struct {
	Version         string `json:"version" yaml:"version"`
	Commit          string `json:"commit" yaml:"commit"`
	Uptime          string `json:"uptime" yaml:"uptime"`
	ProjectsOpen    int    `json:"projects_open" yaml:"projects_open"`
	InstancesActive int    `json:"instances_active" yaml:"instances_active"`
	LauncherEnabled bool   `json:"launcher_enabled" yaml:"launcher_enabled"`
	LauncherError   string `json:"launcher_error,omitempty" yaml:"launcher_error,omitempty"`
	TokenSet        bool   `json:"token_set" yaml:"token_set"`
}

// TokenData answers CmdTokenGet. Token is always masked.
type TokenData struct {
	Set   bool   `json:"set" yaml:"set"`
	Token string `json:"token" yaml:"token"`
}

// TargetData is one sync target.
type TargetData struct {
	ProjectID  string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Project    string `json:"project,omitempty" yaml:"project,omitempty"`
	InstanceID string `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	Sent       bool   `json:"sent" yaml:"sent"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SyncData answers CmdTokenSet and CmdTokenSync.
type SyncData struct {
	SyncID     string       `json:"sync_id" yaml:"sync_id"`
	Phase      string       `json:"phase" yaml:"phase"`
	Skipped    bool         `json:"skipped" yaml:"skipped"`
	Sent       int          `json:"sent" yaml:"sent"`
	Failed     int          `json:"failed" yaml:"failed"`
	DurationMs int64        `json:"duration_ms" yaml:"duration_ms"`
	Targets    []TargetData `json:"targets" yaml:"targets"`
}

// ProjectData describes one project.
type ProjectData struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Root       string `json:"root" yaml:"root"`
	OpenedAt   string `json:"opened_at" yaml:"opened_at"`
	Accessible bool   `json:"accessible" yaml:"accessible"`
	Warning    string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// LaunchData answers CmdLaunchShow.
type LaunchData struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}
