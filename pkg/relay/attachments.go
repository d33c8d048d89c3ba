// Copyright 2024-2026 Aiku AI

package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// AttachmentLinksHeader prefixes the fallback message listing attachment URLs.
const AttachmentLinksHeader = "Attachment links:"

// DefaultMaxAttachmentBytes matches Discord's upload limit for bots in
// unboosted servers.
const DefaultMaxAttachmentBytes = 10 << 20

// Fetcher turns an attachment reference into a file that can be uploaded.
type Fetcher interface {
	Fetch(ctx context.Context, att Attachment) (*discordgo.File, error)
}

// HTTPFetcher downloads attachments from their URL.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

func (f *HTTPFetcher) Fetch(ctx context.Context, att Attachment) (*discordgo.File, error) {
	if att.URL == "" {
		return nil, fmt.Errorf("attachment %s has no URL", att.ID)
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	if int64(att.Size) > maxBytes {
		return nil, fmt.Errorf("attachment %s is too large (%d bytes)", att.ID, att.Size)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download attachment: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("attachment %s exceeds %d bytes", att.ID, maxBytes)
	}

	name := att.Filename
	if name == "" {
		name = "attachment"
	}
	contentType := att.ContentType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	return &discordgo.File{
		Name:        name,
		ContentType: contentType,
		Reader:      bytes.NewReader(data),
	}, nil
}

// AttachmentRelay delivers notifications together with their attachments.
type AttachmentRelay struct {
	platform Platform
	fetcher  Fetcher
}

func NewAttachmentRelay(platform Platform, fetcher Fetcher) *AttachmentRelay {
	if fetcher == nil {
		fetcher = &HTTPFetcher{}
	}
	return &AttachmentRelay{platform: platform, fetcher: fetcher}
}

// Send posts the notification with every attachment that could be fetched.
// If that fails it retries once without files and then posts the attachment
// URLs as plain text. It returns the last message sent; an error is only
// returned when the retry fails too.
func (a *AttachmentRelay) Send(ctx context.Context, channelID, content string, n Notification, attachments []Attachment) (*discordgo.Message, error) {
	log := zerolog.Ctx(ctx)

	var files []*discordgo.File
	for _, att := range attachments {
		file, err := a.fetcher.Fetch(ctx, att)
		if err != nil {
			log.Warn().Err(err).
				Str("attachment_id", att.ID).
				Str("filename", att.Filename).
				Msg("Failed to fetch attachment")
			metrics().attachmentFailures.Inc()
			continue
		}
		files = append(files, file)
	}

	embed := n.Embed()
	msg, err := a.platform.Send(ctx, channelID, &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files:   files,
	})
	if err == nil {
		return msg, nil
	}
	log.Warn().Err(err).Int("files", len(files)).Msg("Primary send failed, retrying without files")
	metrics().sendFailures.WithLabelValues("primary").Inc()

	msg, err = a.platform.Send(ctx, channelID, &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.Error().Err(err).Msg("Fallback send failed")
		metrics().sendFailures.WithLabelValues("fallback").Inc()
		return nil, err
	}
	metrics().fallbacks.Inc()

	if len(attachments) == 0 {
		return msg, nil
	}
	links := AttachmentLinks(attachments)
	if links == "" {
		return msg, nil
	}
	if _, err := a.platform.Send(ctx, channelID, &discordgo.MessageSend{Content: links}); err != nil {
		log.Warn().Err(err).Msg("Failed to send attachment links")
		metrics().sendFailures.WithLabelValues("links").Inc()
	}
	return msg, nil
}

// AttachmentLinks formats the URLs of the given attachments, one per line
// after a header. It returns an empty string if none has a URL.
func AttachmentLinks(attachments []Attachment) string {
	seen := make(map[string]struct{}, len(attachments))
	var urls []string
	for _, att := range attachments {
		if att.URL == "" {
			continue
		}
		// The same file attached twice is listed once.
		if _, ok := seen[att.URL]; ok {
			continue
		}
		seen[att.URL] = struct{}{}
		urls = append(urls, att.URL)
	}
	if len(urls) == 0 {
		return ""
	}
	return AttachmentLinksHeader + "\n" + strings.Join(urls, "\n")
}
