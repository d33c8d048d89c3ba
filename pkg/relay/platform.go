// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Platform is the set of chat platform calls the relay makes. Every call
// returns its error so callers can decide between logging and falling back.
type Platform interface {
	// UpdatePresence sets the bot's activity. A nil activity clears it.
	UpdatePresence(ctx context.Context, activity *discordgo.Activity) error
	SetUsername(ctx context.Context, username string) error
	SetAvatar(ctx context.Context, image []byte) error
	// Channel returns a channel from the local cache, fetching it remotely
	// on a cache miss.
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	Send(ctx context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
}

// DiscordPlatform implements Platform on top of a discordgo session.
type DiscordPlatform struct {
	session *discordgo.Session
}

var _ Platform = (*DiscordPlatform)(nil)

func NewDiscordPlatform(session *discordgo.Session) *DiscordPlatform {
	return &DiscordPlatform{session: session}
}

func (d *DiscordPlatform) UpdatePresence(_ context.Context, activity *discordgo.Activity) error {
	activities := []*discordgo.Activity{}
	if activity != nil {
		activities = append(activities, activity)
	}
	err := d.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: activities,
		Status:     string(discordgo.StatusOnline),
	})
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

func (d *DiscordPlatform) SetUsername(ctx context.Context, username string) error {
	if _, err := d.session.UserUpdate(username, "", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	return nil
}

func (d *DiscordPlatform) SetAvatar(ctx context.Context, image []byte) error {
	if _, err := d.session.UserUpdate("", avatarDataURI(image), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

func (d *DiscordPlatform) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if d.session.State != nil {
		if ch, err := d.session.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel %s: %w", channelID, err)
	}
	return ch, nil
}

func (d *DiscordPlatform) Send(ctx context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

// avatarDataURI encodes image bytes the way the Discord API expects avatars.
func avatarDataURI(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
