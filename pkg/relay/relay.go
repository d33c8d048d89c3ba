// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiku/dmrelay/pkg/relay/mirror"
)

// Filter reasons reported in logs and metrics.
const (
	FilterBot        = "bot"
	FilterNotDirect  = "not_direct"
	FilterNotAllowed = "not_allowed"
)

// Relay owns the platform handle and reacts to platform events.
type Relay struct {
	cfg         *Config
	platform    Platform
	attachments *AttachmentRelay
	rotator     *Rotator
	mirrors     []mirror.Sink
	picker      Picker
	log         zerolog.Logger
}

// Options holds the optional collaborators of a Relay.
type Options struct {
	Fetcher Fetcher
	Mirrors []mirror.Sink
	Picker  Picker
}

func New(cfg *Config, platform Platform, opts Options, log zerolog.Logger) *Relay {
	picker := opts.Picker
	if picker == nil {
		picker = DefaultPicker
	}
	r := &Relay{
		cfg:         cfg,
		platform:    platform,
		attachments: NewAttachmentRelay(platform, opts.Fetcher),
		mirrors:     opts.Mirrors,
		picker:      picker,
		log:         log.With().Str("component", "relay").Logger(),
	}
	if cfg.Appearance.Randomize {
		r.rotator = NewRotator(platform, RotatorOptionsFromConfig(cfg.Appearance), picker, log)
	}
	return r
}

// Rotator returns the presence rotator, or nil if randomization is disabled.
func (r *Relay) Rotator() *Rotator {
	return r.rotator
}

// Register hooks the relay into a discordgo session. Handlers run with ctx,
// which also bounds the lifetime of the presence rotator.
func (r *Relay) Register(ctx context.Context, session *discordgo.Session) {
	session.AddHandler(func(_ *discordgo.Session, evt *discordgo.Ready) {
		r.HandleReady(ctx, evt.User)
	})
	session.AddHandler(func(s *discordgo.Session, evt *discordgo.MessageCreate) {
		if evt.Message == nil {
			return
		}
		r.HandleMessage(ctx, MessageFromDiscord(evt.Message, s.State))
	})
}

// HandleReady applies the configured presence and profile, then starts the
// presence rotator if it is not already running.
func (r *Relay) HandleReady(ctx context.Context, self *discordgo.User) {
	app := r.cfg.Appearance
	err := r.platform.UpdatePresence(ctx, BuildPresence(app.ActivityType, app.StatusText))
	metrics().presenceUpdates.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		r.log.Warn().Err(err).Msg("Presence update failed")
	}

	r.syncProfile(ctx, self)

	if r.rotator != nil && !r.rotator.Start(ctx) {
		r.log.Debug().Msg("Presence rotator already running")
	}

	if self != nil {
		r.log.Info().Str("username", self.Username).Str("user_id", self.ID).Msg("Logged in")
	}
}

// syncProfile applies the configured username and avatar. Each update is
// attempted once and failures are only logged.
func (r *Relay) syncProfile(ctx context.Context, self *discordgo.User) {
	app := r.cfg.Appearance
	if app.UsernameOverride != "" && self != nil && self.Username != app.UsernameOverride {
		if err := r.platform.SetUsername(ctx, app.UsernameOverride); err != nil {
			r.log.Warn().Err(err).Msg("Could not update username")
		} else {
			r.log.Info().Str("username", app.UsernameOverride).Msg("Updated bot username")
		}
	}

	if app.AvatarPath == "" {
		return
	}
	image, err := readAvatar(app.AvatarPath)
	if err != nil {
		r.log.Warn().Err(err).Str("avatar_path", app.AvatarPath).Msg("Could not read avatar")
		return
	}
	if err := r.platform.SetAvatar(ctx, image); err != nil {
		r.log.Warn().Err(err).Msg("Could not update avatar")
		return
	}
	r.log.Info().Str("avatar_path", app.AvatarPath).Msg("Updated bot avatar")
}

var errNotRegularFile = errors.New("not a regular file")

func readAvatar(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, errNotRegularFile)
	}
	return os.ReadFile(path)
}

// filterReason returns why a message must not be relayed, or "" if it passes.
func (r *Relay) filterReason(msg IncomingMessage) string {
	switch {
	case msg.Author.Bot:
		return FilterBot
	case msg.Origin != OriginDirect:
		return FilterNotDirect
	case !r.cfg.Allowed(msg.Author.ID):
		return FilterNotAllowed
	default:
		return ""
	}
}

// HandleMessage relays a qualifying direct message to the relay channel.
func (r *Relay) HandleMessage(ctx context.Context, msg IncomingMessage) {
	log := r.log.With().
		Str("relay_id", uuid.NewString()).
		Str("message_id", msg.ID).
		Str("author_id", msg.Author.ID).
		Logger()
	ctx = log.WithContext(ctx)

	if reason := r.filterReason(msg); reason != "" {
		metrics().filtered.WithLabelValues(reason).Inc()
		log.Debug().Str("reason", reason).Str("origin", msg.Origin.String()).Msg("Ignoring message")
		return
	}

	channelID := string(r.cfg.Relay.ChannelID)
	channel, err := r.platform.Channel(ctx, channelID)
	if err != nil {
		metrics().sendFailures.WithLabelValues("channel").Inc()
		log.Error().Err(err).Str("channel_id", channelID).Msg("Failed to fetch relay channel")
		return
	}

	avatarURL := ""
	if !r.cfg.Relay.AnonymizeSender {
		avatarURL = msg.Author.AvatarURL
	}
	notif := BuildNotification(NotificationParams{
		Author:        msg.Author,
		Content:       msg.Content,
		AvatarURL:     avatarURL,
		Anonymize:     r.cfg.Relay.AnonymizeSender,
		EmojiOverride: r.cfg.Appearance.Emoji,
		Emojis:        r.cfg.Relay.Emojis,
	}, r.picker)

	sent, err := r.attachments.Send(ctx, channel.ID, "", notif, msg.Attachments)
	if err != nil {
		// Already logged and counted under the fallback stage.
		return
	}
	metrics().relayed.Inc()
	log.Info().
		Str("channel_id", channel.ID).
		Str("relayed_message_id", sent.ID).
		Int("attachments", len(msg.Attachments)).
		Msg("Relayed direct message")

	r.mirror(ctx, notif.MirrorPost(msg.Attachments))
}

// mirror forwards a relayed notification to every configured sink.
func (r *Relay) mirror(ctx context.Context, post mirror.Post) {
	log := zerolog.Ctx(ctx)
	for _, sink := range r.mirrors {
		err := sink.Mirror(ctx, post)
		metrics().mirrorPosts.WithLabelValues(sink.Name(), resultLabel(err)).Inc()
		if err != nil {
			log.Warn().Err(err).Str("sink", sink.Name()).Msg("Failed to mirror notification")
		}
	}
}
