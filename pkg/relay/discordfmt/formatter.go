// Copyright 2024-2026 Aiku AI

// Package discordfmt converts Discord-flavoured markdown to Matrix HTML.
package discordfmt

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Rendered holds the result of converting Discord markdown to Matrix format.
type Rendered struct {
	Body          string
	Format        event.Format
	FormattedBody string
}

var (
	boldRe        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	underlineRe   = regexp.MustCompile(`__(.+?)__`)
	italicStarRe  = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderRe = regexp.MustCompile(`(^|[^\w_])_([^_\n]+)_($|[^\w_])`)
	strikeRe      = regexp.MustCompile(`~~(.+?)~~`)
	spoilerRe     = regexp.MustCompile(`\|\|(.+?)\|\|`)
	codeRe        = regexp.MustCompile("`([^`]+)`")
	codeBlockRe   = regexp.MustCompile("(?s)```(\\w+)?\\n?(.*?)```")
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	headingRe     = regexp.MustCompile(`(?m)^(#{1,3})\s+(.+)$`)
	ulRe          = regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)$`)
	olRe          = regexp.MustCompile(`(?m)^\s*\d+\.\s+(.+)$`)
	blockquoteRe  = regexp.MustCompile(`(?m)^>\s?(.*)$`)
)

type codeBlock struct {
	lang    string
	content string
}

// hasMarkup reports whether any Discord markdown construct appears in text.
func hasMarkup(text string) bool {
	for _, re := range []*regexp.Regexp{
		boldRe, underlineRe, italicStarRe, italicUnderRe, strikeRe, spoilerRe,
		codeRe, codeBlockRe, linkRe, headingRe, ulRe, olRe, blockquoteRe,
	} {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Render converts a Discord markdown message to Matrix message content.
// Plain text is returned as-is with no formatted body.
func Render(text string) *Rendered {
	if text == "" {
		return &Rendered{}
	}
	if !hasMarkup(text) {
		return &Rendered{Body: text}
	}

	// Code blocks are swapped out first so their contents skip inline rules.
	var blocks []codeBlock
	processed := codeBlockRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := codeBlockRe.FindStringSubmatch(match)
		idx := len(blocks)
		blocks = append(blocks, codeBlock{lang: parts[1], content: parts[2]})
		return "\x00BLOCK" + strconv.Itoa(idx) + "\x00"
	})

	var out []string
	var listTag string
	var items []string
	flush := func() {
		if len(items) == 0 {
			return
		}
		out = append(out, "<"+listTag+">"+strings.Join(items, "")+"</"+listTag+">")
		items = nil
		listTag = ""
	}
	addItem := func(tag, content string) {
		if listTag != tag {
			flush()
			listTag = tag
		}
		items = append(items, "<li>"+html.EscapeString(content)+"</li>")
	}

	for _, line := range strings.Split(processed, "\n") {
		if m := blockquoteRe.FindStringSubmatch(line); m != nil {
			flush()
			out = append(out, "<blockquote>"+html.EscapeString(m[1])+"</blockquote>")
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			lvl := strconv.Itoa(len(m[1]))
			out = append(out, "<h"+lvl+">"+html.EscapeString(m[2])+"</h"+lvl+">")
			continue
		}
		if m := ulRe.FindStringSubmatch(line); m != nil {
			addItem("ul", m[1])
			continue
		}
		if m := olRe.FindStringSubmatch(line); m != nil {
			addItem("ol", m[1])
			continue
		}
		flush()
		out = append(out, html.EscapeString(line))
	}
	flush()

	formatted := strings.Join(out, "\n")
	formatted = codeRe.ReplaceAllString(formatted, "<code>$1</code>")
	formatted = boldRe.ReplaceAllString(formatted, "<strong>$1</strong>")
	formatted = underlineRe.ReplaceAllString(formatted, "<u>$1</u>")
	formatted = italicStarRe.ReplaceAllString(formatted, "<em>$1</em>")
	formatted = italicUnderRe.ReplaceAllString(formatted, "$1<em>$2</em>$3")
	formatted = strikeRe.ReplaceAllString(formatted, "<del>$1</del>")
	formatted = spoilerRe.ReplaceAllString(formatted, "<span data-mx-spoiler>$1</span>")
	formatted = linkRe.ReplaceAllStringFunc(formatted, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		label, href := parts[1], parts[2]
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return `<a href="` + href + `">` + label + `</a>`
		}
		return label
	})

	for i, cb := range blocks {
		placeholder := "\x00BLOCK" + strconv.Itoa(i) + "\x00"
		content := html.EscapeString(cb.content)
		replacement := `<pre><code>` + content + `</code></pre>`
		if cb.lang != "" {
			replacement = `<pre><code class="language-` + html.EscapeString(cb.lang) + `">` + content + `</code></pre>`
		}
		formatted = strings.Replace(formatted, placeholder, replacement, 1)
	}

	formatted = strings.ReplaceAll(formatted, "\n", "<br/>")

	return &Rendered{
		Body:          text,
		Format:        event.FormatHTML,
		FormattedBody: formatted,
	}
}
