// Copyright 2024-2026 Aiku AI

package mirror

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/dmrelay/pkg/relay/discordfmt"
)

// MatrixConfig configures the Matrix mirror.
type MatrixConfig struct {
	HomeserverURL string `yaml:"homeserver_url"`
	UserID        string `yaml:"user_id"`
	AccessToken   string `yaml:"access_token"`
	RoomID        string `yaml:"room_id"`
}

func (c MatrixConfig) Enabled() bool {
	return c.HomeserverURL != "" && c.UserID != "" && c.AccessToken != "" && c.RoomID != ""
}

// Matrix sends mirrored notifications to a Matrix room as m.notice events.
type Matrix struct {
	client *mautrix.Client
	roomID id.RoomID
}

var _ Sink = (*Matrix)(nil)

func NewMatrix(cfg MatrixConfig) (*Matrix, error) {
	client, err := mautrix.NewClient(cfg.HomeserverURL, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	return &Matrix{client: client, roomID: id.RoomID(cfg.RoomID)}, nil
}

func (m *Matrix) Name() string {
	return "matrix"
}

func (m *Matrix) Mirror(ctx context.Context, post Post) error {
	rendered := discordfmt.Render(post.Markdown())
	content := &event.MessageEventContent{
		MsgType:       event.MsgNotice,
		Body:          rendered.Body,
		Format:        rendered.Format,
		FormattedBody: rendered.FormattedBody,
	}
	if _, err := m.client.SendMessageEvent(ctx, m.roomID, event.EventMessage, content); err != nil {
		return fmt.Errorf("failed to send matrix event: %w", err)
	}
	return nil
}
