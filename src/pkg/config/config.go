package config

import (
	"encoding/json"
	"os"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
Top-level application configuration.

Each package that needs configuration declares its own Config struct and an
InitializeConfig function; this file only carries the shared file format and
the pieces the pipeline itself reads.
*/
type Config struct {
	StoreConfigDir string `json:"store_config_dir,omitempty"` // directory of per-chain JSON documents
	OutputDir      string `json:"output_dir,omitempty"`       // root for run artifacts
	RagSnippetPath string `json:"rag_snippet_path,omitempty"` // RAG snippet library JSON

	PrimaryLlmModel  string `json:"primary_llm_model,omitempty"`
	FallbackLlmModel string `json:"fallback_llm_model,omitempty"`

	LlmMaxRequests  int `json:"llm_max_requests,omitempty"`  // sliding-window budget per user per provider
	LlmWindowSecond int `json:"llm_window_second,omitempty"` // window length in seconds

	ReviewerEmail string `json:"reviewer_email,omitempty"` // empty disables needs-review notifications
	EmailProvider string `json:"email_provider,omitempty"` // ses | mailgun | sendgrid
	SenderEmail   string `json:"sender_email,omitempty"`

	DatabasePath string `json:"database_path,omitempty"` // sqlite file; ":memory:" for tests
}

func DefaultValueConfig() Config {
	return Config{
		StoreConfigDir:   "./cfg/stores",
		OutputDir:        "./out",
		RagSnippetPath:   "./cfg/rag-snippets.json",
		PrimaryLlmModel:  "gpt-5-mini",
		FallbackLlmModel: "gpt-5-nano",
		LlmMaxRequests:   30,
		LlmWindowSecond:  60,
		EmailProvider:    "ses",
		DatabasePath:     "./out/ledgerlens.db",
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

/*
InitializeConfig reads the JSON config file at configPath into Cfg, replacing
every missing field with its default value.

A missing file is not fatal: the defaults stay in place and a warning is
logged, so every binary can run without a cfg directory.
*/
func InitializeConfig(configPath string) {
	fileBytes, readErr := os.ReadFile(configPath)
	if readErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Config file '%s' is %s, using %s", configPath, "not readable", "default configuration")
		return
	}

	loaded := Config{}
	parseErr := json.Unmarshal(fileBytes, &loaded)
	if parseErr != nil {
		e := xerr.NewError(parseErr, "parse application config JSON", configPath)
		e.QuitIf(xerr.ErrorTypeError)
	}

	Cfg = loaded

	defaultConfig := DefaultValueConfig()
	tl.ApplyDefaults(&Cfg, defaultConfig, func(field string, defVal any) {
		tl.Log(
			tl.Info, palette.Purple,
			"%s field is %s in %s configuration. Using default value: %v",
			field, "missing", GetPackageName(), tl.PrettyForStderr(defVal),
		)
	})

	tl.Log(tl.Info, palette.Green, "%s config %s from '%s'", GetPackageName(), "loaded", configPath)
	tl.LogJSON(tl.Verbose, palette.CyanDim, "application configuration", Cfg)
}

// GetPackageName reports the configuration owner for log lines.
func GetPackageName() string {
	return "ledgerlens"
}

/*
CheckIfEnvVarsPresent logs every missing environment variable from the given
list and exits(1) if any were missing.
*/
func CheckIfEnvVarsPresent(names ...string) {
	missing := false
	for _, name := range names {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			tl.Log(tl.Warning, palette.YellowBold, "Environment variable '%s' is %s", name, "not set")
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}
