// Copyright 2024-2026 Aiku AI

package relay

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

func TestExampleConfigEmbedded(t *testing.T) {
	t.Parallel()
	if ExampleConfig == "" {
		t.Fatal("ExampleConfig should not be empty")
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &node); err != nil {
		t.Fatalf("example config is not valid YAML: %v", err)
	}
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.DiscordToken != PlaceholderToken {
		t.Errorf("DiscordToken: got %q", cfg.DiscordToken)
	}
	if cfg.Appearance.ActivityType != "listening" {
		t.Errorf("ActivityType: got %q", cfg.Appearance.ActivityType)
	}
	if cfg.Appearance.StatusText != "Listening to love letters 💌" {
		t.Errorf("StatusText: got %q", cfg.Appearance.StatusText)
	}
	if cfg.Appearance.MinIntervalSeconds != DefaultMinRotationSeconds || cfg.Appearance.MaxIntervalSeconds != DefaultMaxRotationSeconds {
		t.Errorf("intervals: got %d-%d", cfg.Appearance.MinIntervalSeconds, cfg.Appearance.MaxIntervalSeconds)
	}
	if len(cfg.Relay.Emojis) == 0 {
		t.Error("expected default emojis")
	}
	if cfg.Relay.AnonymizeSender || cfg.Appearance.Randomize {
		t.Error("anonymize_sender and randomize should default to false")
	}
	if cfg.Mirrors.Mattermost.Enabled() || cfg.Mirrors.Matrix.Enabled() {
		t.Error("mirrors should be disabled by default")
	}
	if len(cfg.Logging.Writers) == 0 {
		t.Error("expected a default log writer")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()
	input := `
discord_token: abc
relay:
    channel_id: 123456789012345678
    allow_list:
        - 111
        - "222"
        - ""
    anonymize_sender: true
    emojis: ["🌹", ""]
appearance:
    activity_type: Watching
    status_text: ""
    randomize: true
    random_status_texts: ["a", "b"]
    min_interval_seconds: 60
    max_interval_seconds: 120
mirrors:
    mattermost:
        server_url: https://mm.example
        token: tok
        channel_id: chan
metrics:
    listen_addr: ":9100"
`
	cfg, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	if cfg.DiscordToken != "abc" {
		t.Errorf("DiscordToken: got %q", cfg.DiscordToken)
	}
	if cfg.Relay.ChannelID != "123456789012345678" {
		t.Errorf("ChannelID: got %q", cfg.Relay.ChannelID)
	}
	if !slices.Equal(cfg.Relay.AllowList, []ID{"111", "222"}) {
		t.Errorf("AllowList: got %v", cfg.Relay.AllowList)
	}
	if !slices.Equal(cfg.Relay.Emojis, []string{"🌹"}) {
		t.Errorf("Emojis: got %v", cfg.Relay.Emojis)
	}
	if !cfg.Relay.AnonymizeSender {
		t.Error("AnonymizeSender should be true")
	}
	if cfg.Appearance.StatusText != "" {
		t.Errorf("StatusText should be cleared, got %q", cfg.Appearance.StatusText)
	}
	if cfg.Appearance.ActivityType != "Watching" {
		t.Errorf("ActivityType: got %q", cfg.Appearance.ActivityType)
	}
	if !cfg.Appearance.Randomize || cfg.Appearance.MinIntervalSeconds != 60 || cfg.Appearance.MaxIntervalSeconds != 120 {
		t.Errorf("rotation settings not applied: %+v", cfg.Appearance)
	}
	if !cfg.Mirrors.Mattermost.Enabled() {
		t.Error("mattermost mirror should be enabled")
	}
	if cfg.Mirrors.Matrix.Enabled() {
		t.Error("matrix mirror should stay disabled")
	}
	if cfg.Metrics.ListenAddr != ":9100" {
		t.Errorf("ListenAddr: got %q", cfg.Metrics.ListenAddr)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	if _, err := Parse([]byte("relay: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestUpgradeConfig(t *testing.T) {
	t.Parallel()
	var baseNode yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &baseNode); err != nil {
		t.Fatalf("failed to parse base config: %v", err)
	}
	userCfg := `
discord_token: secret
appearance:
    activity_type: playing
    username_override: Cupid
`
	var cfgNode yaml.Node
	if err := yaml.Unmarshal([]byte(userCfg), &cfgNode); err != nil {
		t.Fatalf("failed to parse user config: %v", err)
	}

	helper := up.NewHelper(&baseNode, &cfgNode)
	upgradeConfig(helper)

	if val, ok := helper.Get(up.Str, "discord_token"); !ok || val != "secret" {
		t.Errorf("discord_token after upgrade: got %q, ok=%v", val, ok)
	}
	if val, ok := helper.Get(up.Str, "appearance", "activity_type"); !ok || val != "playing" {
		t.Errorf("activity_type after upgrade: got %q, ok=%v", val, ok)
	}
	if val, ok := helper.Get(up.Str, "appearance", "username_override"); !ok || val != "Cupid" {
		t.Errorf("username_override after upgrade: got %q, ok=%v", val, ok)
	}

	// Get reads the user document, so check the merged result on the base.
	var merged Config
	if err := baseNode.Decode(&merged); err != nil {
		t.Fatalf("failed to decode merged config: %v", err)
	}
	if merged.DiscordToken != "secret" || merged.Appearance.ActivityType != "playing" {
		t.Errorf("user values not merged: token %q, activity_type %q", merged.DiscordToken, merged.Appearance.ActivityType)
	}
	if merged.Appearance.StatusText != "Listening to love letters 💌" {
		t.Errorf("status_text should keep its default: got %q", merged.Appearance.StatusText)
	}
	if merged.Appearance.MinIntervalSeconds != DefaultMinRotationSeconds {
		t.Errorf("min_interval_seconds should keep its default: got %d", merged.Appearance.MinIntervalSeconds)
	}
}

func TestPostProcessErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		token   string
		channel ID
		want    error
	}{
		{"empty token", "", "123", ErrMissingToken},
		{"blank token", "   ", "123", ErrMissingToken},
		{"placeholder token", PlaceholderToken, "123", ErrMissingToken},
		{"missing channel", "abc", "", ErrMissingChannel},
		{"valid", "abc", "123", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{DiscordToken: tt.token, Relay: RelayConfig{ChannelID: tt.channel}}
			err := cfg.PostProcess()
			if !errors.Is(err, tt.want) {
				t.Errorf("PostProcess: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	t.Parallel()
	open := &Config{}
	if !open.Allowed("anyone") {
		t.Error("empty allow-list should permit everyone")
	}
	restricted := &Config{Relay: RelayConfig{AllowList: []ID{"1", "2"}}}
	if !restricted.Allowed("2") {
		t.Error("listed user should be allowed")
	}
	if restricted.Allowed("3") {
		t.Error("unlisted user should be rejected")
	}
}

// Tests below modify the process environment and cannot run in parallel.

func TestApplyEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("RELAY_CHANNEL_ID", " 987 ")

	cfg := &Config{DiscordToken: "from-file", Relay: RelayConfig{ChannelID: "123"}}
	cfg.ApplyEnv()

	if cfg.DiscordToken != "from-env" {
		t.Errorf("DiscordToken: got %q", cfg.DiscordToken)
	}
	if cfg.Relay.ChannelID != "987" {
		t.Errorf("ChannelID: got %q", cfg.Relay.ChannelID)
	}
}

func TestApplyEnvEmptyKeepsFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("RELAY_CHANNEL_ID", "")

	cfg := &Config{DiscordToken: "from-file", Relay: RelayConfig{ChannelID: "123"}}
	cfg.ApplyEnv()

	if cfg.DiscordToken != "from-file" || cfg.Relay.ChannelID != "123" {
		t.Errorf("empty env values should not override: %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("RELAY_CHANNEL_ID", "")
	dir := t.TempDir()

	valid := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(valid, []byte("discord_token: abc\nrelay:\n    channel_id: \"42\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(valid)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "abc" || cfg.Relay.ChannelID != "42" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	placeholder := filepath.Join(dir, "placeholder.yaml")
	if err := os.WriteFile(placeholder, []byte(ExampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(placeholder); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Load placeholder: got %v, want ErrMissingToken", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("RELAY_CHANNEL_ID", "77")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(ExampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "env-token" || cfg.Relay.ChannelID != "77" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}
