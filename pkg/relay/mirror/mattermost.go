// Copyright 2024-2026 Aiku AI

package mirror

import (
	"context"
	"fmt"

	"github.com/mattermost/mattermost/server/public/model"
)

// MattermostConfig configures the Mattermost mirror.
type MattermostConfig struct {
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

func (c MattermostConfig) Enabled() bool {
	return c.ServerURL != "" && c.Token != "" && c.ChannelID != ""
}

// Mattermost posts mirrored notifications to a Mattermost channel.
type Mattermost struct {
	client    *model.Client4
	channelID string
}

var _ Sink = (*Mattermost)(nil)

func NewMattermost(cfg MattermostConfig) *Mattermost {
	client := model.NewAPIv4Client(cfg.ServerURL)
	client.SetToken(cfg.Token)
	return &Mattermost{client: client, channelID: cfg.ChannelID}
}

func (m *Mattermost) Name() string {
	return "mattermost"
}

func (m *Mattermost) Mirror(ctx context.Context, post Post) error {
	mmPost := &model.Post{
		ChannelId: m.channelID,
		Message:   mattermostMessage(post),
	}
	if _, _, err := m.client.CreatePost(ctx, mmPost); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// mattermostMessage renders the post, with the sender avatar as an inline
// image since Mattermost posts have no thumbnail slot.
func mattermostMessage(post Post) string {
	msg := post.Markdown()
	if post.ThumbnailURL != "" {
		msg += "\n![avatar](" + post.ThumbnailURL + ")"
	}
	return msg
}
