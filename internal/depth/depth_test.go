package depth

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatinsight/chat-insight/internal/types"
)

func msg(conv, node string, parent *string) types.MessageRecord {
	return types.MessageRecord{ConversationID: conv, NodeID: node, ParentID: parent}
}

func edge(conv, parent, child string) types.EdgeRecord {
	return types.EdgeRecord{ConversationID: conv, ParentID: parent, ChildID: child}
}

func TestEstimateBranchingTree(t *testing.T) {
	p := types.StringPtr
	msgs := []types.MessageRecord{
		msg("c", "root", nil),
		msg("c", "a", p("root")),
		msg("c", "b", p("a")),
		msg("c", "c", p("a")),
		msg("c", "d", p("b")),
	}
	edges := []types.EdgeRecord{
		edge("c", "root", "a"),
		edge("c", "a", "b"),
		edge("c", "a", "c"),
		edge("c", "b", "d"),
	}
	assert.Equal(t, 3, Estimate(msgs, edges))
}

func TestEstimateSingleNode(t *testing.T) {
	assert.Equal(t, 0, Estimate([]types.MessageRecord{msg("c", "only", nil)}, nil))
}

func TestEstimateEmpty(t *testing.T) {
	assert.Equal(t, 0, Estimate(nil, nil))
}

func TestSelectRootPrefersNullParent(t *testing.T) {
	p := types.StringPtr
	msgs := []types.MessageRecord{msg("c", "x", p("y")), msg("c", "top", nil)}
	root, ok := SelectRoot(msgs, []types.EdgeRecord{edge("c", "y", "x")})
	assert.True(t, ok)
	assert.Equal(t, "top", root)
}

func TestSelectRootFallsBackToParentsMinusChildren(t *testing.T) {
	p := types.StringPtr
	msgs := []types.MessageRecord{
		msg("c", "b", p("a")),
		msg("c", "a", p("X")),
		msg("c", "X", p("missing")),
	}
	edges := []types.EdgeRecord{
		edge("c", "a", "b"),
		edge("c", "X", "a"),
	}
	root, ok := SelectRoot(msgs, edges)
	assert.True(t, ok)
	assert.Equal(t, "X", root)
	assert.Equal(t, 2, Estimate(msgs, edges))
}

func TestSelectRootFallsBackToFirstMessage(t *testing.T) {
	p := types.StringPtr
	// a cycle has no structural root
	msgs := []types.MessageRecord{msg("c", "b", p("a")), msg("c", "a", p("b"))}
	edges := []types.EdgeRecord{edge("c", "a", "b"), edge("c", "b", "a")}
	root, ok := SelectRoot(msgs, edges)
	assert.True(t, ok)
	assert.Equal(t, "b", root)
	assert.Equal(t, 1, Estimate(msgs, edges))
}

func TestEstimateKeepsFirstSeenDepth(t *testing.T) {
	// d is reachable at depth 2 (r->a->d) and depth 3 (r->b->c->d)
	msgs := []types.MessageRecord{msg("c", "r", nil)}
	edges := []types.EdgeRecord{
		edge("c", "r", "a"),
		edge("c", "r", "b"),
		edge("c", "a", "d"),
		edge("c", "b", "c"),
		edge("c", "c", "d"),
	}
	assert.Equal(t, 2, Estimate(msgs, edges))
}

func TestEstimateFollowsDanglingChildren(t *testing.T) {
	msgs := []types.MessageRecord{msg("c", "r", nil)}
	edges := []types.EdgeRecord{edge("c", "r", "ghost")}
	assert.Equal(t, 1, Estimate(msgs, edges))
}

func TestEstimateLongChain(t *testing.T) {
	const n = 5000
	msgs := []types.MessageRecord{msg("c", "n0", nil)}
	var edges []types.EdgeRecord
	for i := 0; i < n; i++ {
		edges = append(edges, edge("c", nodeName(i), nodeName(i+1)))
	}
	assert.Equal(t, n, Estimate(msgs, edges))
}

func TestSampleScopesByConversation(t *testing.T) {
	p := types.StringPtr
	rel := &types.Relations{
		Messages: []types.MessageRecord{
			msg("c1", "root", nil),
			msg("c1", "a", p("root")),
			msg("c2", "root", nil),
			msg("c3", "root", nil),
		},
		Edges: []types.EdgeRecord{
			edge("c1", "root", "a"),
			// same node ids in another conversation must not leak into c1
			edge("c2", "a", "z"),
			edge("c2", "z", "y"),
		},
	}

	got := Sample(rel, 0)
	assert.Equal(t, []ConversationDepth{
		{ConversationID: "c1", Depth: 1},
		{ConversationID: "c2", Depth: 0},
		{ConversationID: "c3", Depth: 0},
	}, got)

	assert.Len(t, Sample(rel, 2), 2)
}

func nodeName(i int) string {
	return "n" + strconv.Itoa(i)
}
