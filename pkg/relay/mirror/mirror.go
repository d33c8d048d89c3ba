// Copyright 2024-2026 Aiku AI

// Package mirror forwards copies of relayed notifications to secondary chat
// platforms. Mirrors are best-effort and never affect the primary relay.
package mirror

import (
	"context"
	"strings"
)

// Post is a platform-neutral copy of a relayed notification.
type Post struct {
	Title          string
	Description    string
	SenderLabel    string
	Footer         string
	ThumbnailURL   string
	AttachmentURLs []string
}

// Markdown renders the post as Discord/Mattermost-compatible markdown.
func (p Post) Markdown() string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(p.Title)
	sb.WriteString("\n")
	sb.WriteString(p.Description)
	sb.WriteString("\n\n**From:** ")
	sb.WriteString(p.SenderLabel)
	for _, u := range p.AttachmentURLs {
		sb.WriteString("\n")
		sb.WriteString(u)
	}
	if p.Footer != "" {
		sb.WriteString("\n")
		sb.WriteString(p.Footer)
	}
	return sb.String()
}

// Sink receives mirrored posts.
type Sink interface {
	Name() string
	Mirror(ctx context.Context, post Post) error
}

// FromConfig builds every mirror whose configuration is complete.
func FromConfig(mm MattermostConfig, mx MatrixConfig) ([]Sink, error) {
	var sinks []Sink
	if mm.Enabled() {
		sinks = append(sinks, NewMattermost(mm))
	}
	if mx.Enabled() {
		sink, err := NewMatrix(mx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
