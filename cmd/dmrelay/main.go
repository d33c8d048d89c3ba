// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command dmrelay is a Discord bot that relays the direct messages it
// receives into a shared channel as styled notifications, optionally
// anonymizing the sender and rotating the bot's presence.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	flag "maunium.net/go/mauflag"

	"github.com/aiku/dmrelay/pkg/relay"
	"github.com/aiku/dmrelay/pkg/relay/mirror"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath     = flag.MakeFull("c", "config", "The path to your config file. Defaults to $DMRELAY_CONFIG, then config.yaml.", "").String()
	generateConfig = flag.MakeFull("g", "generate-config", "Write the example config to the config path and exit.", "false").Bool()
	wantHelp, _    = flag.MakeHelpFlag()
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

const defaultConfigPath = "config.yaml"

// resolveConfigPath picks the -c flag, then DMRELAY_CONFIG, then the default.
// It must run after .env is loaded.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("DMRELAY_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

func fatal(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.SetHelpTitles(
		"dmrelay - Relay Discord direct messages into a shared channel.",
		"dmrelay [-hg] [-c <path>]",
	)
	if err := flag.Parse(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	}

	// .env is a local convenience; real deployments use the environment.
	_ = godotenv.Load()
	*configPath = resolveConfigPath(*configPath)

	if *generateConfig {
		if err := os.WriteFile(*configPath, []byte(relay.ExampleConfig), 0o600); err != nil {
			fatal("Failed to write example config: %v", err)
		}
		fmt.Printf("Wrote example config to %s\n", *configPath)
		return
	}

	cfg, err := relay.Load(*configPath)
	switch {
	case errors.Is(err, relay.ErrMissingToken):
		fatal("Please set discord_token in %s or the DISCORD_TOKEN environment variable.", *configPath)
	case err != nil:
		fatal("Missing or invalid settings. Run with -g to generate %s and fill it in.\nUnderlying error: %v", *configPath, err)
	}

	log, err := cfg.Logging.Compile()
	if err != nil {
		fatal("Failed to initialize logger: %v", err)
	}
	log.Info().Str("version", Tag).Str("commit", Commit).Str("built_at", BuildTime).Msg("Starting dmrelay")

	sinks, err := mirror.FromConfig(cfg.Mirrors.Mattermost, cfg.Mirrors.Matrix)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize mirrors")
	}
	for _, sink := range sinks {
		log.Info().Str("sink", sink.Name()).Msg("Mirror enabled")
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}
	session.Identify.Intents = intents

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	bot := relay.New(cfg, relay.NewDiscordPlatform(session), relay.Options{
		Fetcher: &relay.HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}},
		Mirrors: sinks,
	}, *log)
	bot.Register(ctx, session)

	if cfg.Metrics.ListenAddr != "" {
		relay.StartMetricsServer(ctx, cfg.Metrics.ListenAddr, *log)
	}

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Discord")
	}
	log.Info().Str("relay_channel_id", string(cfg.Relay.ChannelID)).Msg("Connected, waiting for direct messages")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if rotator := bot.Rotator(); rotator != nil {
		rotator.Stop()
	}
	if err := session.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Discord session")
	}
}
