// Copyright 2024-2026 Aiku AI

package relay

import (
	"math/rand/v2"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/aiku/dmrelay/pkg/relay/mirror"
)

const (
	TitleLabel      = "New love letter received"
	EmptyText       = "(no text)"
	TruncatedMarker = "\n… (truncated)"
	AnonymousLabel  = "Anonymous sweetheart"
	SenderFieldName = "From"
	DefaultEmoji    = "💖"
	DefaultFooter   = "🌸"

	// MaxDescriptionLength is counted in characters, not bytes.
	MaxDescriptionLength = 4000

	// NotificationColor is RGB(255, 105, 180).
	NotificationColor = 0xFF69B4
)

// Picker draws random indexes. *rand.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int {
	return rand.IntN(n)
}

// DefaultPicker uses the process-wide random source.
var DefaultPicker Picker = globalPicker{}

// Notification is the styled representation of a relayed message.
type Notification struct {
	Title        string
	Description  string
	SenderLabel  string
	Color        int
	ThumbnailURL string
	Footer       string
}

// NotificationParams are the inputs of BuildNotification.
type NotificationParams struct {
	Author    Author
	Content   string
	AvatarURL string
	Anonymize bool
	// EmojiOverride, when set, is always used in the title.
	EmojiOverride string
	Emojis        []string
}

// BuildNotification formats a relayed message.
func BuildNotification(params NotificationParams, picker Picker) Notification {
	if picker == nil {
		picker = DefaultPicker
	}

	emoji := params.EmojiOverride
	if emoji == "" {
		emoji = DefaultEmoji
		if len(params.Emojis) > 0 {
			emoji = params.Emojis[picker.IntN(len(params.Emojis))]
		}
	}

	n := Notification{
		Title:       emoji + " " + TitleLabel,
		Description: describe(params.Content),
		SenderLabel: AnonymousLabel,
		Color:       NotificationColor,
		Footer:      DefaultFooter,
	}
	if !params.Anonymize {
		n.SenderLabel = params.Author.Label()
		n.ThumbnailURL = params.AvatarURL
	}
	if len(params.Emojis) > 1 {
		n.Footer = params.Emojis[picker.IntN(len(params.Emojis))]
	}
	return n
}

func describe(content string) string {
	desc := strings.TrimSpace(content)
	if desc == "" {
		return EmptyText
	}
	if runes := []rune(desc); len(runes) > MaxDescriptionLength {
		return string(runes[:MaxDescriptionLength]) + TruncatedMarker
	}
	return desc
}

// Embed renders the notification as a Discord embed.
func (n Notification) Embed() *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Description,
		Color:       n.Color,
		Fields: []*discordgo.MessageEmbedField{{
			Name:   SenderFieldName,
			Value:  n.SenderLabel,
			Inline: false,
		}},
		Footer: &discordgo.MessageEmbedFooter{Text: n.Footer},
	}
	if n.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: n.ThumbnailURL}
	}
	return embed
}

// MirrorPost converts the notification for secondary sinks.
func (n Notification) MirrorPost(attachments []Attachment) mirror.Post {
	post := mirror.Post{
		Title:        n.Title,
		Description:  n.Description,
		SenderLabel:  n.SenderLabel,
		Footer:       n.Footer,
		ThumbnailURL: n.ThumbnailURL,
	}
	for _, att := range attachments {
		if att.URL != "" {
			post.AttachmentURLs = append(post.AttachmentURLs, att.URL)
		}
	}
	return post
}
