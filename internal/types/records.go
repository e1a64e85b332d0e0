package types

// MessageColumns are the message relation columns, in persisted order.
var MessageColumns = []string{
	"conversation_id",
	"conversation_title",
	"node_id",
	"parent_id",
	"children_ids",
	"create_time",
	"update_time",
	"role",
	"content_type",
	"parts_raw",
	"text",
	"has_code",
	"has_image",
	"has_link",
	"metadata_raw",
}

// EdgeColumns are the edge relation columns, in persisted order.
var EdgeColumns = []string{"conversation_id", "parent_id", "child_id"}

// MessageRecord is one flattened node. It is emitted for every node, with or without a message.
type MessageRecord struct {
	ConversationID    string   `json:"conversation_id"`
	ConversationTitle string   `json:"conversation_title"`
	NodeID            string   `json:"node_id"`
	ParentID          *string  `json:"parent_id"`
	ChildrenIDs       []string `json:"children_ids"`
	CreateTime        *float64 `json:"create_time"`
	UpdateTime        *float64 `json:"update_time"`
	Role              *string  `json:"role"`
	ContentType       *string  `json:"content_type"`
	PartsRaw          *string  `json:"parts_raw"`
	Text              string   `json:"text"`
	HasCode           bool     `json:"has_code"`
	HasImage          bool     `json:"has_image"`
	HasLink           bool     `json:"has_link"`
	MetadataRaw       *string  `json:"metadata_raw"`
}

// RoleOrEmpty returns the author role or "" for nodes without one.
func (r *MessageRecord) RoleOrEmpty() string {
	if r.Role == nil {
		return ""
	}
	return *r.Role
}

// EdgeRecord is one parent-child pair within a conversation.
type EdgeRecord struct {
	ConversationID string `json:"conversation_id"`
	ParentID       string `json:"parent_id"`
	ChildID        string `json:"child_id"`
}

// Relations holds both flattened relations of a run.
type Relations struct {
	Messages []MessageRecord
	Edges    []EdgeRecord
}

// ConversationIDs returns the distinct conversation ids in first-seen message order.
func (r *Relations) ConversationIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for i := range r.Messages {
		id := r.Messages[i].ConversationID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Group splits the relations per conversation id. Edges are never joined across conversations.
func (r *Relations) Group() map[string]*Relations {
	groups := make(map[string]*Relations)
	get := func(id string) *Relations {
		g, ok := groups[id]
		if !ok {
			g = &Relations{}
			groups[id] = g
		}
		return g
	}
	for _, m := range r.Messages {
		g := get(m.ConversationID)
		g.Messages = append(g.Messages, m)
	}
	for _, e := range r.Edges {
		g := get(e.ConversationID)
		g.Edges = append(g.Edges, e)
	}
	return groups
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}
