package flatten

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chatinsight/chat-insight/internal/types"
)

const progressEvery = 100

// Result is the output of a flatten run.
type Result struct {
	types.Relations
	Conversations int
	Skipped       []*ConversationParseError
}

// Flattener turns an exported conversation tree into message and edge relations.
type Flattener struct {
	logger  *logrus.Logger
	workers int
}

// New creates a Flattener. workers <= 1 flattens sequentially.
func New(logger *logrus.Logger, workers int) *Flattener {
	if workers < 1 {
		workers = 1
	}
	return &Flattener{logger: logger, workers: workers}
}

type conversationRows struct {
	messages []types.MessageRecord
	edges    []types.EdgeRecord
	err      *ConversationParseError
}

// Flatten reads a JSON array of conversations from r. A non-array root returns
// *FatalInputError. A conversation that fails to flatten is logged and skipped;
// the output keeps input order regardless of the worker count.
func (f *Flattener) Flatten(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("input is not valid JSON")
	}
	if kind := types.JSONKind(data); kind != "array" {
		return nil, &FatalInputError{Type: kind}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	f.logger.WithField("conversations", len(elements)).Info("flattening conversations")

	rows := make([]conversationRows, len(elements))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, raw := range elements {
		i, raw := i, raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			msgs, edges, err := parseConversation(raw)
			if err != nil {
				rows[i].err = &ConversationParseError{Index: i + 1, Err: err}
				return nil
			}
			rows[i].messages = msgs
			rows[i].edges = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Conversations: len(elements)}
	for i := range rows {
		if (i+1)%progressEvery == 0 {
			f.logger.WithFields(logrus.Fields{
				"processed": i + 1,
				"total":     len(elements),
			}).Info("flatten progress")
		}
		if rows[i].err != nil {
			f.logger.WithError(rows[i].err.Err).WithField("conversation_index", rows[i].err.Index).Warn("skipping conversation")
			result.Skipped = append(result.Skipped, rows[i].err)
			continue
		}
		result.Messages = append(result.Messages, rows[i].messages...)
		result.Edges = append(result.Edges, rows[i].edges...)
	}

	f.logger.WithFields(logrus.Fields{
		"messages": len(result.Messages),
		"edges":    len(result.Edges),
		"skipped":  len(result.Skipped),
	}).Info("flatten completed")
	return result, nil
}

func parseConversation(raw json.RawMessage) ([]types.MessageRecord, []types.EdgeRecord, error) {
	if kind := types.JSONKind(raw); kind != "object" {
		return nil, nil, fmt.Errorf("conversation must be an object, got %s", kind)
	}
	var conv types.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, nil, fmt.Errorf("decode conversation: %w", err)
	}
	return FlattenConversation(&conv)
}

// FlattenConversation emits one MessageRecord per mapping entry, in mapping order,
// and one EdgeRecord per (node, child) pair. Child ids are not validated.
func FlattenConversation(conv *types.Conversation) ([]types.MessageRecord, []types.EdgeRecord, error) {
	convID := conv.Key()
	title := conv.TitleOrEmpty()

	messages := make([]types.MessageRecord, 0, len(conv.Mapping))
	var edges []types.EdgeRecord

	for _, entry := range conv.Mapping {
		entry := entry
		children, err := entry.Node.ChildIDs()
		if err != nil {
			return nil, nil, fmt.Errorf("node %s: %w", entry.ID, err)
		}

		rec := types.MessageRecord{
			ConversationID:    convID,
			ConversationTitle: title,
			NodeID:            entry.ID,
			ParentID:          entry.Node.Parent,
			ChildrenIDs:       children,
			CreateTime:        conv.CreateTime,
			UpdateTime:        conv.UpdateTime,
		}
		if msg := entry.Node.Message; msg != nil {
			if err := applyMessage(&rec, msg); err != nil {
				return nil, nil, fmt.Errorf("node %s: %w", entry.ID, err)
			}
		}
		messages = append(messages, rec)

		for _, child := range children {
			edges = append(edges, types.EdgeRecord{
				ConversationID: convID,
				ParentID:       entry.ID,
				ChildID:        child,
			})
		}
	}
	return messages, edges, nil
}

func applyMessage(rec *types.MessageRecord, msg *types.Message) error {
	role, err := msg.Role()
	if err != nil {
		return err
	}
	rec.Role = role

	if set(msg.CreateTime) {
		rec.CreateTime = msg.CreateTime
	}
	if set(msg.UpdateTime) {
		rec.UpdateTime = msg.UpdateTime
	}

	if types.JSONKind(msg.Content) == "object" {
		var content types.Content
		if err := json.Unmarshal(msg.Content, &content); err != nil {
			return fmt.Errorf("decode content: %w", err)
		}
		rec.ContentType = content.ContentType

		parts, err := decodeParts(content.Parts)
		if err != nil {
			return err
		}
		if truthy(content.Parts) {
			rec.PartsRaw = rawString(content.Parts)
		}
		rec.Text = ExtractText(parts)
		flags := DetectFlags(parts, rec.Text)
		rec.HasCode = flags.HasCode
		rec.HasImage = flags.HasImage
		rec.HasLink = flags.HasLink
	} else {
		if truthy(msg.Content) {
			rec.PartsRaw = rawString(msg.Content)
		}
		switch types.JSONKind(msg.Content) {
		case "string":
			if err := json.Unmarshal(msg.Content, &rec.Text); err != nil {
				return fmt.Errorf("decode content: %w", err)
			}
		case "array":
			parts, err := decodeParts(msg.Content)
			if err != nil {
				return err
			}
			rec.Text = ExtractText(parts)
		}
	}

	if truthy(msg.Metadata) {
		rec.MetadataRaw = rawString(msg.Metadata)
	}
	return nil
}

// decodeParts decodes a parts array. Anything other than an array has no parts.
func decodeParts(raw json.RawMessage) ([]types.Part, error) {
	if types.JSONKind(raw) != "array" {
		return nil, nil
	}
	var parts []types.Part
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("decode parts: %w", err)
	}
	return parts, nil
}

func set(t *float64) bool {
	return t != nil && *t != 0
}

func rawString(raw json.RawMessage) *string {
	s := string(compact(raw))
	return &s
}
