// Copyright 2024-2026 Aiku AI

package relay

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/dmrelay/pkg/relay/mirror"
)

//go:embed example-config.yaml
var ExampleConfig string

// PlaceholderToken is the token value shipped in the example config.
const PlaceholderToken = "YOUR_BOT_TOKEN_HERE"

var (
	ErrMissingToken   = errors.New("discord_token is not set (or still the placeholder value)")
	ErrMissingChannel = errors.New("relay.channel_id is not set")
)

// ID is a Discord snowflake. It accepts both quoted and bare numeric YAML
// scalars, since snowflakes are commonly pasted unquoted.
type ID string

func (i *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar ID", node.Line)
	}
	*i = ID(strings.TrimSpace(node.Value))
	return nil
}

// Config holds the relay bot configuration.
type Config struct {
	DiscordToken string            `yaml:"discord_token"`
	Relay        RelayConfig       `yaml:"relay"`
	Appearance   AppearanceConfig  `yaml:"appearance"`
	Mirrors      MirrorsConfig     `yaml:"mirrors"`
	Metrics      MetricsConfig     `yaml:"metrics"`
	Logging      zeroconfig.Config `yaml:"logging"`
}

// RelayConfig controls where and how direct messages are relayed.
type RelayConfig struct {
	ChannelID       ID       `yaml:"channel_id"`
	AllowList       []ID     `yaml:"allow_list"`
	AnonymizeSender bool     `yaml:"anonymize_sender"`
	Emojis          []string `yaml:"emojis"`
}

// AppearanceConfig controls the bot's profile and presence.
type AppearanceConfig struct {
	ActivityType        string   `yaml:"activity_type"`
	StatusText          string   `yaml:"status_text"`
	AvatarPath          string   `yaml:"avatar_path"`
	UsernameOverride    string   `yaml:"username_override"`
	Emoji               string   `yaml:"emoji"`
	Randomize           bool     `yaml:"randomize"`
	RandomStatusTexts   []string `yaml:"random_status_texts"`
	RandomActivityTypes []string `yaml:"random_activity_types"`
	MinIntervalSeconds  int      `yaml:"min_interval_seconds"`
	MaxIntervalSeconds  int      `yaml:"max_interval_seconds"`
}

type MirrorsConfig struct {
	Mattermost mirror.MattermostConfig `yaml:"mattermost"`
	Matrix     mirror.MatrixConfig     `yaml:"matrix"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "discord_token")

	helper.Copy(up.Str|up.Int, "relay", "channel_id")
	helper.Copy(up.List, "relay", "allow_list")
	helper.Copy(up.Bool, "relay", "anonymize_sender")
	helper.Copy(up.List, "relay", "emojis")

	helper.Copy(up.Str, "appearance", "activity_type")
	helper.Copy(up.Str|up.Null, "appearance", "status_text")
	helper.Copy(up.Str, "appearance", "avatar_path")
	helper.Copy(up.Str, "appearance", "username_override")
	helper.Copy(up.Str, "appearance", "emoji")
	helper.Copy(up.Bool, "appearance", "randomize")
	helper.Copy(up.List, "appearance", "random_status_texts")
	helper.Copy(up.List, "appearance", "random_activity_types")
	helper.Copy(up.Int, "appearance", "min_interval_seconds")
	helper.Copy(up.Int, "appearance", "max_interval_seconds")

	helper.Copy(up.Str, "mirrors", "mattermost", "server_url")
	helper.Copy(up.Str, "mirrors", "mattermost", "token")
	helper.Copy(up.Str, "mirrors", "mattermost", "channel_id")
	helper.Copy(up.Str, "mirrors", "matrix", "homeserver_url")
	helper.Copy(up.Str, "mirrors", "matrix", "user_id")
	helper.Copy(up.Str, "mirrors", "matrix", "access_token")
	helper.Copy(up.Str, "mirrors", "matrix", "room_id")

	helper.Copy(up.Str, "metrics", "listen_addr")

	helper.Copy(up.Map, "logging")
}

// Load reads the config file at path, fills in anything it lacks from the
// example config, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse merges the given YAML over the example config and decodes the result.
// It does not validate; call PostProcess for that.
func Parse(data []byte) (*Config, error) {
	var base yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		var user yaml.Node
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		upgradeConfig(up.NewHelper(&base, &user))
	}
	var cfg Config
	if err := base.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides secrets and the relay channel from the environment.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("DISCORD_TOKEN"); ok && v != "" {
		c.DiscordToken = v
	}
	if v, ok := os.LookupEnv("RELAY_CHANNEL_ID"); ok && v != "" {
		c.Relay.ChannelID = ID(strings.TrimSpace(v))
	}
}

// PostProcess validates required fields and normalizes list values.
func (c *Config) PostProcess() error {
	c.DiscordToken = strings.TrimSpace(c.DiscordToken)
	if c.DiscordToken == "" || c.DiscordToken == PlaceholderToken {
		return ErrMissingToken
	}
	if c.Relay.ChannelID == "" {
		return ErrMissingChannel
	}
	c.Relay.Emojis = compact(c.Relay.Emojis)
	c.Appearance.RandomStatusTexts = compact(c.Appearance.RandomStatusTexts)
	c.Appearance.RandomActivityTypes = compact(c.Appearance.RandomActivityTypes)
	allow := c.Relay.AllowList[:0:0]
	for _, id := range c.Relay.AllowList {
		if id != "" {
			allow = append(allow, id)
		}
	}
	c.Relay.AllowList = allow
	return nil
}

// Allowed reports whether the given user may trigger a relay. An empty
// allow-list permits everyone.
func (c *Config) Allowed(userID string) bool {
	if len(c.Relay.AllowList) == 0 {
		return true
	}
	return slices.Contains(c.Relay.AllowList, ID(userID))
}

// compact drops blank entries.
func compact(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
