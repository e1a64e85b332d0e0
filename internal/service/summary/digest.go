package summary

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/chatinsight/chat-insight/internal/types"
)

const (
	minDigestText = 10
	maxDigestText = 500
)

// Digest renders one conversation's messages as the plain text sent to the model.
// Messages are ordered by create time (missing times last); nodes without a role
// and texts shorter than 10 characters are left out; long texts are truncated.
func Digest(conversationID string, msgs []types.MessageRecord) string {
	if len(msgs) == 0 {
		return ""
	}

	title := msgs[0].ConversationTitle
	if title == "" {
		title = "Untitled"
	}

	ordered := make([]types.MessageRecord, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].CreateTime, ordered[j].CreateTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	parts := []string{fmt.Sprintf("Title: %s\nConversation ID: %s\n\n", title, conversationID)}
	for i := range ordered {
		m := &ordered[i]
		if m.Role == nil {
			continue
		}
		text := m.Text
		if utf8.RuneCountInString(strings.TrimSpace(text)) < minDigestText {
			continue
		}
		if utf8.RuneCountInString(text) > maxDigestText {
			text = string([]rune(text)[:maxDigestText]) + "...[truncated]"
		}

		line := fmt.Sprintf("%s: %s", strings.ToUpper(*m.Role), text)
		if tags := messageTags(m); len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		parts = append(parts, line+"\n")
	}
	return strings.Join(parts, "\n")
}

func messageTags(m *types.MessageRecord) []string {
	var tags []string
	if m.HasCode {
		tags = append(tags, "code")
	}
	if m.HasImage {
		tags = append(tags, "image")
	}
	if m.HasLink {
		tags = append(tags, "link")
	}
	return tags
}
