// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/aiku/dmrelay/pkg/relay/mirror"
)

var errFake = errors.New("fake error")

// sentMessage records a Send call made against fakePlatform.
type sentMessage struct {
	ChannelID string
	Content   string
	Embeds    []*discordgo.MessageEmbed
	FileNames []string
	Delivered bool
}

// fakePlatform is an in-memory Platform that records every call.
type fakePlatform struct {
	mu sync.Mutex

	presences    []*discordgo.Activity
	usernames    []string
	avatars      [][]byte
	channelCalls []string
	sends        []sentMessage

	presenceErr error
	usernameErr error
	avatarErr   error
	channelErr  error
	// sendErrs is consumed in order, one entry per Send call. Calls past the
	// end of the slice succeed.
	sendErrs []error
}

var _ Platform = (*fakePlatform)(nil)

func (f *fakePlatform) UpdatePresence(_ context.Context, activity *discordgo.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presences = append(f.presences, activity)
	return f.presenceErr
}

func (f *fakePlatform) SetUsername(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernames = append(f.usernames, username)
	return f.usernameErr
}

func (f *fakePlatform) SetAvatar(_ context.Context, image []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avatars = append(f.avatars, image)
	return f.avatarErr
}

func (f *fakePlatform) Channel(_ context.Context, channelID string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelCalls = append(f.channelCalls, channelID)
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &discordgo.Channel{ID: channelID, Type: discordgo.ChannelTypeGuildText}, nil
}

func (f *fakePlatform) Send(_ context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if idx := len(f.sends); idx < len(f.sendErrs) {
		err = f.sendErrs[idx]
	}
	rec := sentMessage{
		ChannelID: channelID,
		Content:   data.Content,
		Embeds:    data.Embeds,
		Delivered: err == nil,
	}
	for _, file := range data.Files {
		rec.FileNames = append(rec.FileNames, file.Name)
	}
	f.sends = append(f.sends, rec)
	if err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", len(f.sends)), ChannelID: channelID}, nil
}

func (f *fakePlatform) Presences() []*discordgo.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*discordgo.Activity, len(f.presences))
	copy(cp, f.presences)
	return cp
}

func (f *fakePlatform) Sends() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentMessage, len(f.sends))
	copy(cp, f.sends)
	return cp
}

// Delivered returns only the sends that succeeded.
func (f *fakePlatform) Delivered() []sentMessage {
	var out []sentMessage
	for _, s := range f.Sends() {
		if s.Delivered {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakePlatform) ChannelCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.channelCalls))
	copy(cp, f.channelCalls)
	return cp
}

// fakeFetcher materializes attachments in memory, failing for the IDs in fail.
type fakeFetcher struct {
	fail map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, att Attachment) (*discordgo.File, error) {
	if f.fail[att.ID] {
		return nil, errFake
	}
	return &discordgo.File{Name: att.Filename, Reader: bytes.NewReader([]byte(att.ID))}, nil
}

// seqPicker returns the configured values in order, cycling, reduced modulo n.
type seqPicker struct {
	mu     sync.Mutex
	values []int
	pos    int
}

func (p *seqPicker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.values) == 0 {
		return 0
	}
	v := p.values[p.pos%len(p.values)]
	p.pos++
	return v % n
}

// fakeSink records mirrored posts.
type fakeSink struct {
	mu    sync.Mutex
	name  string
	err   error
	posts []mirror.Post
}

func (s *fakeSink) Name() string {
	return s.name
}

func (s *fakeSink) Mirror(_ context.Context, post mirror.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, post)
	return s.err
}

func (s *fakeSink) Posts() []mirror.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]mirror.Post, len(s.posts))
	copy(cp, s.posts)
	return cp
}

// newTestConfig returns a validated config with a relay channel and no
// allow-list.
func newTestConfig() *Config {
	cfg := &Config{
		DiscordToken: "test-token",
		Relay: RelayConfig{
			ChannelID: "relay-chan",
			Emojis:    []string{"💖", "💌"},
		},
		Appearance: AppearanceConfig{
			ActivityType: "listening",
			StatusText:   "Listening to love letters 💌",
		},
	}
	if err := cfg.PostProcess(); err != nil {
		panic(err)
	}
	return cfg
}

func directMessage(authorID, content string) IncomingMessage {
	return IncomingMessage{
		ID:        "m-" + authorID,
		ChannelID: "dm-" + authorID,
		Author: Author{
			ID:        authorID,
			Username:  "user" + authorID,
			AvatarURL: "https://cdn.example/avatars/" + authorID + ".png",
		},
		Content: content,
		Origin:  OriginDirect,
	}
}
