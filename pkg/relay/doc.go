// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay forwards direct messages sent to a Discord bot into a single
// shared relay channel.
//
// # Core Types
//
// [Relay] reacts to the two platform events the bot cares about. On ready it
// applies the configured presence, username and avatar, and starts the
// presence [Rotator]. On each message it filters out bots, anything that is
// not a one-to-one DM, and senders missing from the allow-list, then formats
// the message with [BuildNotification] and delivers it through
// [AttachmentRelay].
//
// [Platform] is the only way the package talks to Discord. [DiscordPlatform]
// wraps a discordgo session; tests substitute a fake.
//
// # Failure Handling
//
// Nothing that happens after startup is fatal. Every platform call returns an
// error that the caller logs. A failed send with files is retried once
// without them, followed by a plain-text list of attachment URLs. There are
// no other retries.
//
// # Sub-packages
//
//   - discordfmt converts Discord markdown to Matrix HTML.
//   - mirror copies relayed notifications to Mattermost and Matrix.
package relay
