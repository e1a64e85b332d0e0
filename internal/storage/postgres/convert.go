package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/chatinsight/chat-insight/internal/types"
)

// UUID conversions

func uuidToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{
		Bytes: id,
		Valid: true,
	}
}

func pgtypeToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}

// Text conversions

func stringPtrToPgtext(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func pgtextToStringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

// Float conversions

func floatPtrToPgfloat(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

func pgfloatToFloatPtr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

// Timestamptz conversions

func pgtimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// Row conversions

func messageToRow(runID pgtype.UUID, position int, m *types.MessageRecord) ([]any, error) {
	children := m.ChildrenIDs
	if children == nil {
		children = []string{}
	}
	childrenJSON, err := json.Marshal(children)
	if err != nil {
		return nil, err
	}
	return []any{
		runID,
		int32(position),
		m.ConversationID,
		m.ConversationTitle,
		m.NodeID,
		stringPtrToPgtext(m.ParentID),
		string(childrenJSON),
		floatPtrToPgfloat(m.CreateTime),
		floatPtrToPgfloat(m.UpdateTime),
		stringPtrToPgtext(m.Role),
		stringPtrToPgtext(m.ContentType),
		stringPtrToPgtext(m.PartsRaw),
		m.Text,
		m.HasCode,
		m.HasImage,
		m.HasLink,
		stringPtrToPgtext(m.MetadataRaw),
	}, nil
}

func edgeToRow(runID pgtype.UUID, position int, e *types.EdgeRecord) []any {
	return []any{runID, int32(position), e.ConversationID, e.ParentID, e.ChildID}
}

// messageRow mirrors a messages table row for scanning.
type messageRow struct {
	ConversationID    string
	ConversationTitle string
	NodeID            string
	ParentID          pgtype.Text
	ChildrenIDs       []byte
	CreateTime        pgtype.Float8
	UpdateTime        pgtype.Float8
	Role              pgtype.Text
	ContentType       pgtype.Text
	PartsRaw          pgtype.Text
	Text              string
	HasCode           bool
	HasImage          bool
	HasLink           bool
	MetadataRaw       pgtype.Text
}

func (r *messageRow) targets() []any {
	return []any{
		&r.ConversationID,
		&r.ConversationTitle,
		&r.NodeID,
		&r.ParentID,
		&r.ChildrenIDs,
		&r.CreateTime,
		&r.UpdateTime,
		&r.Role,
		&r.ContentType,
		&r.PartsRaw,
		&r.Text,
		&r.HasCode,
		&r.HasImage,
		&r.HasLink,
		&r.MetadataRaw,
	}
}

func messageFromRow(r *messageRow) (types.MessageRecord, error) {
	children := []string{}
	if len(r.ChildrenIDs) > 0 {
		if err := json.Unmarshal(r.ChildrenIDs, &children); err != nil {
			return types.MessageRecord{}, err
		}
	}
	return types.MessageRecord{
		ConversationID:    r.ConversationID,
		ConversationTitle: r.ConversationTitle,
		NodeID:            r.NodeID,
		ParentID:          pgtextToStringPtr(r.ParentID),
		ChildrenIDs:       children,
		CreateTime:        pgfloatToFloatPtr(r.CreateTime),
		UpdateTime:        pgfloatToFloatPtr(r.UpdateTime),
		Role:              pgtextToStringPtr(r.Role),
		ContentType:       pgtextToStringPtr(r.ContentType),
		PartsRaw:          pgtextToStringPtr(r.PartsRaw),
		Text:              r.Text,
		HasCode:           r.HasCode,
		HasImage:          r.HasImage,
		HasLink:           r.HasLink,
		MetadataRaw:       pgtextToStringPtr(r.MetadataRaw),
	}, nil
}
