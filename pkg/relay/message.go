// Copyright 2024-2026 Aiku AI

package relay

import (
	"github.com/bwmarrin/discordgo"
)

// Origin describes the conversation a message was received in.
type Origin int

const (
	OriginDirect Origin = iota
	OriginGroup
	OriginGuild
)

func (o Origin) String() string {
	switch o {
	case OriginDirect:
		return "direct"
	case OriginGroup:
		return "group"
	case OriginGuild:
		return "guild"
	default:
		return "unknown"
	}
}

// Author identifies the sender of an incoming message.
type Author struct {
	ID            string
	Username      string
	Discriminator string
	Bot           bool
	AvatarURL     string
}

// Label returns the human-readable "name (id)" form of the author.
func (a Author) Label() string {
	name := a.Username
	if a.Discriminator != "" && a.Discriminator != "0" {
		name += "#" + a.Discriminator
	}
	return name + " (" + a.ID + ")"
}

// Attachment references a file attached to an incoming message.
type Attachment struct {
	ID          string
	Filename    string
	URL         string
	ContentType string
	Size        int
}

// IncomingMessage is a platform message reduced to what the relay needs.
type IncomingMessage struct {
	ID          string
	ChannelID   string
	Author      Author
	Content     string
	Attachments []Attachment
	Origin      Origin
}

// MessageFromDiscord converts a discordgo message. The state is used to tell
// group DMs apart from one-to-one DMs and may be nil.
func MessageFromDiscord(m *discordgo.Message, state *discordgo.State) IncomingMessage {
	msg := IncomingMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Origin:    OriginDirect,
	}
	if m.Author != nil {
		msg.Author = Author{
			ID:            m.Author.ID,
			Username:      m.Author.Username,
			Discriminator: m.Author.Discriminator,
			Bot:           m.Author.Bot,
			AvatarURL:     m.Author.AvatarURL(""),
		}
	}
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			ID:          att.ID,
			Filename:    att.Filename,
			URL:         att.URL,
			ContentType: att.ContentType,
			Size:        att.Size,
		})
	}
	switch {
	case m.GuildID != "":
		msg.Origin = OriginGuild
	case state != nil:
		if ch, err := state.Channel(m.ChannelID); err == nil && ch.Type == discordgo.ChannelTypeGroupDM {
			msg.Origin = OriginGroup
		}
	}
	return msg
}
