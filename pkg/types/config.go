// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ToolConfig describes how the external GraphRAG tool is launched.
type ToolConfig struct {
	// Interpreter is the program that runs the tool module (e.g. "python").
	Interpreter string `json:"interpreter" yaml:"interpreter" mapstructure:"interpreter"`

	// Module is the module passed to the interpreter with -m (e.g. "graphrag").
	Module string `json:"module" yaml:"module" mapstructure:"module"`

	// WorkDir is the working directory of every invocation. The tool is run
	// from the application root, not from the knowledge base.
	WorkDir string `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`

	// Timeout bounds a single invocation. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig holds settings for the web panel.
type ServerConfig struct {
	// Addr is the listen address (default ":8501").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// MaxUploadBytes caps the size of one multipart upload request.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// Mode is the gin mode: debug, release, or test.
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// LogConfig selects the structured logger output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// PanelConfig groups all settings for kbpanel.
type PanelConfig struct {
	// RootDir is the directory holding one subdirectory per knowledge base.
	RootDir string `json:"root_dir" yaml:"root_dir" mapstructure:"root_dir"`

	// DataDir holds kbpanel's own state (the run history database).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// SecretsDir holds one file per secret passed to the tool's environment.
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	Tool   ToolConfig   `json:"tool" yaml:"tool" mapstructure:"tool"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultPanelConfig returns the configuration used when no file or
// environment override is present.
func DefaultPanelConfig() PanelConfig {
	return PanelConfig{
		RootDir:    "knowledge_bases",
		DataDir:    ".kbpanel",
		SecretsDir: ".secrets",
		Tool: ToolConfig{
			Interpreter: "python",
			Module:      "graphrag",
			WorkDir:     ".",
		},
		Server: ServerConfig{
			Addr:           ":8501",
			MaxUploadBytes: 32 << 20,
			Mode:           "release",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
