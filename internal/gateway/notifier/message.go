package notifier

import (
	"strings"
	"time"

	"papertrade/internal/pkg/text"
)

// Telegram rejects messages above 4096 characters; keep headroom for the
// Markdown fences.
const maxStructuredMessageLen = 3800

const fence = "```"

// MessageSection is one titled block of a notification.
type MessageSection struct {
	Title string
	Lines []string
}

func (s MessageSection) nonEmpty() []string {
	var out []string
	for _, line := range s.Lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, escapeFence(line))
		}
	}
	return out
}

// StructuredMessage is a notification rendered as Telegram Markdown.
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown renders the message, truncating it to the Telegram limit.
// Section bodies share a single preformatted block.
func (m StructuredMessage) RenderMarkdown() string {
	parts := make([]string, 0, 4)
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		parts = append(parts, header)
	}
	if body := m.body(); body != "" {
		parts = append(parts, fence+"\n"+body+"\n"+fence)
	}
	var tail []string
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		tail = append(tail, escapeFence(footer))
	}
	if !m.Timestamp.IsZero() {
		tail = append(tail, "Time: "+m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, "\n"))
	}
	return text.Truncate(strings.Join(parts, "\n\n"), maxStructuredMessageLen)
}

func (m StructuredMessage) body() string {
	blocks := make([]string, 0, len(m.Sections))
	for _, sec := range m.Sections {
		lines := sec.nonEmpty()
		if len(lines) == 0 {
			continue
		}
		var b strings.Builder
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(escapeFence(title))
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(strings.Join(lines, "\n- "))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// escapeFence stops user-controlled text from closing the code block early.
func escapeFence(s string) string {
	return strings.ReplaceAll(s, fence, "'''")
}
