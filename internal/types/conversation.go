package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Conversation is one record of an exported chat history.
type Conversation struct {
	ConversationID   string   `json:"conversation_id"`
	ID               string   `json:"id"`
	Title            *string  `json:"title"`
	CreateTime       *float64 `json:"create_time"`
	UpdateTime       *float64 `json:"update_time"`
	DefaultModelSlug *string  `json:"default_model_slug,omitempty"`
	Mapping          Mapping  `json:"mapping"`
}

// Key returns the conversation identifier, preferring conversation_id over id.
func (c *Conversation) Key() string {
	if c.ConversationID != "" {
		return c.ConversationID
	}
	return c.ID
}

// TitleOrEmpty returns the title, or "" when the export has none.
func (c *Conversation) TitleOrEmpty() string {
	if c.Title == nil {
		return ""
	}
	return *c.Title
}

// MappingEntry is one node of a conversation tree together with its id.
type MappingEntry struct {
	ID   string
	Node Node
}

// Mapping is the node-id keyed tree of a conversation, kept in input key order.
type Mapping []MappingEntry

// UnmarshalJSON decodes a JSON object while preserving key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("mapping must be an object, got %s", JSONKind(data))
	}

	var entries Mapping
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read mapping key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected mapping key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode node %s: %w", key, err)
		}
		if kind := JSONKind(raw); kind != "object" {
			return fmt.Errorf("node %s must be an object, got %s", key, kind)
		}
		var node Node
		if err := json.Unmarshal(raw, &node); err != nil {
			return fmt.Errorf("decode node %s: %w", key, err)
		}
		entries = append(entries, MappingEntry{ID: key, Node: node})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read mapping end: %w", err)
	}

	*m = entries
	return nil
}

// Node is one point in a conversation tree. Message is nil for structural nodes.
type Node struct {
	Parent   *string         `json:"parent"`
	Children json.RawMessage `json:"children"`
	Message  *Message        `json:"message"`
}

// ChildIDs returns the node's children. A missing or non-array value yields no children.
func (n *Node) ChildIDs() ([]string, error) {
	if JSONKind(n.Children) != "array" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal(n.Children, &ids); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Message is the payload carried by a node.
type Message struct {
	Author     json.RawMessage `json:"author"`
	CreateTime *float64        `json:"create_time"`
	UpdateTime *float64        `json:"update_time"`
	Content    json.RawMessage `json:"content"`
	Metadata   json.RawMessage `json:"metadata"`
}

// Role returns the author role, an open set (user, assistant, system, tool, ...).
// A missing author or role yields nil; a non-string role is returned in its JSON form.
func (m *Message) Role() (*string, error) {
	if JSONKind(m.Author) != "object" {
		return nil, nil
	}
	var author struct {
		Role json.RawMessage `json:"role"`
	}
	if err := json.Unmarshal(m.Author, &author); err != nil {
		return nil, fmt.Errorf("decode author: %w", err)
	}
	switch JSONKind(author.Role) {
	case "null":
		return nil, nil
	case "string":
		var role string
		if err := json.Unmarshal(author.Role, &role); err != nil {
			return nil, fmt.Errorf("decode role: %w", err)
		}
		return &role, nil
	default:
		role := string(bytes.TrimSpace(author.Role))
		return &role, nil
	}
}

// Content is the structured form of a message body.
type Content struct {
	ContentType *string         `json:"content_type"`
	Parts       json.RawMessage `json:"parts"`
}

// PartKind tags the variants of a content part.
type PartKind int

const (
	// PartText is a raw string part.
	PartText PartKind = iota
	// PartObject is a structured part (JSON object).
	PartObject
	// PartOpaque is any other JSON value; it is preserved but carries no text.
	PartOpaque
)

// Part is one element of a message's parts array.
type Part struct {
	Kind   PartKind
	Text   string
	Fields map[string]json.RawMessage
	Raw    json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Part) UnmarshalJSON(data []byte) error {
	p.Raw = append(json.RawMessage(nil), data...)
	switch JSONKind(data) {
	case "string":
		p.Kind = PartText
		return json.Unmarshal(data, &p.Text)
	case "object":
		p.Kind = PartObject
		return json.Unmarshal(data, &p.Fields)
	default:
		p.Kind = PartOpaque
		return nil
	}
}

// TextPart builds a PartText value.
func TextPart(s string) Part {
	raw, _ := json.Marshal(s)
	return Part{Kind: PartText, Text: s, Raw: raw}
}

// ObjectPart builds a PartObject value from a JSON object literal.
func ObjectPart(raw string) (Part, error) {
	var p Part
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Part{}, err
	}
	if p.Kind != PartObject {
		return Part{}, fmt.Errorf("expected object, got %s", JSONKind([]byte(raw)))
	}
	return p, nil
}

// JSONKind names the JSON type of a raw value: object, array, string, number, boolean, null.
// Empty input is reported as "null".
func JSONKind(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "null"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
