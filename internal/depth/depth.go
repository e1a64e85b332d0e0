// Package depth estimates how deep a conversation tree goes.
package depth

import (
	"github.com/chatinsight/chat-insight/internal/types"
)

// DefaultSample is the number of conversations the report stage estimates depth for.
const DefaultSample = 100

// SelectRoot picks the traversal start for one conversation, using the first rule that yields a candidate:
//  1. a message whose parent is null;
//  2. a parent id that never appears as a child in the edges;
//  3. the first message of the conversation.
//
// Only the first candidate is returned, so multi-root or disconnected graphs are
// approximated from a single root. ok is false when the conversation has no messages
// and no edges.
func SelectRoot(msgs []types.MessageRecord, edges []types.EdgeRecord) (root string, ok bool) {
	for i := range msgs {
		if msgs[i].ParentID == nil {
			return msgs[i].NodeID, true
		}
	}

	children := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		children[e.ChildID] = struct{}{}
	}
	for _, e := range edges {
		if _, isChild := children[e.ParentID]; !isChild {
			return e.ParentID, true
		}
	}

	if len(msgs) > 0 {
		return msgs[0].NodeID, true
	}
	return "", false
}

// Estimate returns the maximum root-to-node distance of one conversation, found by a
// breadth-first walk from SelectRoot. A node keeps the depth at which it was first reached.
// Callers must pass records of a single conversation.
func Estimate(msgs []types.MessageRecord, edges []types.EdgeRecord) int {
	root, ok := SelectRoot(msgs, edges)
	if !ok {
		return 0
	}

	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.ParentID] = append(adjacency[e.ParentID], e.ChildID)
	}

	type item struct {
		node  string
		depth int
	}
	depths := make(map[string]int)
	queue := []item{{node: root}}
	maxDepth := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := depths[cur.node]; seen {
			continue
		}
		depths[cur.node] = cur.depth
		if cur.depth > maxDepth {
			maxDepth = cur.depth
		}
		for _, child := range adjacency[cur.node] {
			if _, seen := depths[child]; !seen {
				queue = append(queue, item{node: child, depth: cur.depth + 1})
			}
		}
	}
	return maxDepth
}

// ConversationDepth is the estimated depth of one conversation.
type ConversationDepth struct {
	ConversationID string `json:"conversation_id"`
	Depth          int    `json:"depth"`
}

// Sample estimates depth for the first limit conversations, in first-seen message order.
// limit <= 0 estimates every conversation.
func Sample(rel *types.Relations, limit int) []ConversationDepth {
	ids := rel.ConversationIDs()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	groups := rel.Group()
	out := make([]ConversationDepth, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		out = append(out, ConversationDepth{
			ConversationID: id,
			Depth:          Estimate(g.Messages, g.Edges),
		})
	}
	return out
}
