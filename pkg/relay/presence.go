// Copyright 2024-2026 Aiku AI

package relay

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ActivityType resolves an activity kind label. Unknown labels resolve to
// listening.
func ActivityType(kind string) discordgo.ActivityType {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "playing":
		return discordgo.ActivityTypeGame
	case "watching":
		return discordgo.ActivityTypeWatching
	case "competing":
		return discordgo.ActivityTypeCompeting
	default:
		return discordgo.ActivityTypeListening
	}
}

// BuildPresence returns the activity for the given kind and status text, or
// nil when the text is empty.
func BuildPresence(kind, text string) *discordgo.Activity {
	if text == "" {
		return nil
	}
	return &discordgo.Activity{
		Name: text,
		Type: ActivityType(kind),
	}
}
