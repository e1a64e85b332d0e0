package flatten

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/chatinsight/chat-insight/internal/types"
)

// Flags are the heuristic content flags of a message.
type Flags struct {
	HasCode  bool
	HasImage bool
	HasLink  bool
}

// ExtractText concatenates the textual contributions of parts with newlines.
// A string part contributes itself. An object part contributes its "text" field
// and then its "content" field, each when present and non-null; non-string values
// contribute their JSON form. No parts yields "".
func ExtractText(parts []types.Part) string {
	var texts []string
	for _, part := range parts {
		switch part.Kind {
		case types.PartText:
			texts = append(texts, part.Text)
		case types.PartObject:
			if s, ok := fieldText(part.Fields, "text"); ok {
				texts = append(texts, s)
			}
			if s, ok := fieldText(part.Fields, "content"); ok {
				texts = append(texts, s)
			}
		case types.PartOpaque:
		}
	}
	return strings.Join(texts, "\n")
}

// DetectFlags computes the content flags for a message.
//
// These are substring heuristics, not parsers, and false positives are expected:
//   - HasCode: text contains a ``` fence, or any object part's lowercased JSON contains
//     "code", "language" or ```.
//   - HasImage: any object part's lowercased JSON contains "image" or "image_url".
//   - HasLink: text contains "http://", "https://" or "www.".
func DetectFlags(parts []types.Part, text string) Flags {
	var flags Flags
	for _, part := range parts {
		if part.Kind != types.PartObject {
			continue
		}
		serialized := strings.ToLower(string(compact(part.Raw)))
		if strings.Contains(serialized, "code") || strings.Contains(serialized, "language") || strings.Contains(serialized, "```") {
			flags.HasCode = true
		}
		if strings.Contains(serialized, "image") || strings.Contains(serialized, "image_url") {
			flags.HasImage = true
		}
	}

	if strings.Contains(text, "```") {
		flags.HasCode = true
	}
	if strings.Contains(text, "http://") || strings.Contains(text, "https://") || strings.Contains(text, "www.") {
		flags.HasLink = true
	}
	return flags
}

func fieldText(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	switch types.JSONKind(raw) {
	case "null":
		return "", false
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return string(compact(raw)), true
}

// compact returns raw JSON without insignificant whitespace. Non-ASCII text is kept as is.
func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return bytes.TrimSpace(raw)
	}
	return buf.Bytes()
}

// truthy reports whether raw JSON is a non-empty value: not null, false, 0, "", [] or {}.
func truthy(raw json.RawMessage) bool {
	c := compact(raw)
	switch string(c) {
	case "", "null", "false", "0", `""`, "[]", "{}":
		return false
	}
	if types.JSONKind(c) == "number" {
		var f float64
		if err := json.Unmarshal(c, &f); err == nil && f == 0 {
			return false
		}
	}
	return true
}
