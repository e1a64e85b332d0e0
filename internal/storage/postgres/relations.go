package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatinsight/chat-insight/internal/types"
)

// ErrNoRuns is returned when no import run has been stored yet.
var ErrNoRuns = errors.New("no import runs")

var (
	messageColumns = []string{
		"run_id", "position", "conversation_id", "conversation_title", "node_id", "parent_id",
		"children_ids", "create_time", "update_time", "role", "content_type", "parts_raw",
		"text", "has_code", "has_image", "has_link", "metadata_raw",
	}
	edgeColumns = []string{"run_id", "position", "conversation_id", "parent_id", "child_id"}
)

// RelationRepository stores flattened relations, one import run at a time.
type RelationRepository struct {
	pool *pgxpool.Pool
}

// NewRelationRepository creates a new RelationRepository.
func NewRelationRepository(pool *pgxpool.Pool) *RelationRepository {
	return &RelationRepository{pool: pool}
}

// SaveRun stores both relations under a new run id in a single transaction.
func (r *RelationRepository) SaveRun(ctx context.Context, source string, conversations, skipped int, rel *types.Relations) (*types.ImportRun, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	runID := uuidToPgtype(id)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var createdAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, `
		INSERT INTO import_runs (id, source, conversations, skipped, messages, edges)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		runID, source, conversations, skipped, len(rel.Messages), len(rel.Edges),
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	msgRows := make([][]any, 0, len(rel.Messages))
	for i := range rel.Messages {
		row, err := messageToRow(runID, i, &rel.Messages[i])
		if err != nil {
			return nil, fmt.Errorf("encode message %s: %w", rel.Messages[i].NodeID, err)
		}
		msgRows = append(msgRows, row)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"messages"}, messageColumns, pgx.CopyFromRows(msgRows)); err != nil {
		return nil, fmt.Errorf("copy messages: %w", err)
	}

	edgeRows := make([][]any, 0, len(rel.Edges))
	for i := range rel.Edges {
		edgeRows = append(edgeRows, edgeToRow(runID, i, &rel.Edges[i]))
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"edges"}, edgeColumns, pgx.CopyFromRows(edgeRows)); err != nil {
		return nil, fmt.Errorf("copy edges: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}

	return &types.ImportRun{
		ID:            id,
		Source:        source,
		Conversations: conversations,
		Skipped:       skipped,
		Messages:      len(rel.Messages),
		Edges:         len(rel.Edges),
		CreatedAt:     pgtimestamptzToTime(createdAt),
	}, nil
}

// LatestRun returns the most recently stored run.
func (r *RelationRepository) LatestRun(ctx context.Context) (*types.ImportRun, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
		run       types.ImportRun
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, conversations, skipped, messages, edges, created_at
		FROM import_runs
		ORDER BY created_at DESC
		LIMIT 1`,
	).Scan(&id, &run.Source, &run.Conversations, &run.Skipped, &run.Messages, &run.Edges, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	run.ID = pgtypeToUUID(id)
	run.CreatedAt = pgtimestamptzToTime(createdAt)
	return &run, nil
}

// LoadRun returns the relations of one run in their original order.
func (r *RelationRepository) LoadRun(ctx context.Context, id uuid.UUID) (*types.Relations, error) {
	runID := uuidToPgtype(id)

	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, conversation_title, node_id, parent_id, children_ids,
		       create_time, update_time, role, content_type, parts_raw, text,
		       has_code, has_image, has_link, metadata_raw
		FROM messages
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	rel := &types.Relations{}
	for rows.Next() {
		var row messageRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m, err := messageFromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("decode message %s: %w", row.NodeID, err)
		}
		rel.Messages = append(rel.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	edgeRows, err := r.pool.Query(ctx, `
		SELECT conversation_id, parent_id, child_id
		FROM edges
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e types.EdgeRecord
		if err := edgeRows.Scan(&e.ConversationID, &e.ParentID, &e.ChildID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		rel.Edges = append(rel.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}

	return rel, nil
}

// Load returns the relations of the latest run.
func (r *RelationRepository) Load(ctx context.Context) (*types.Relations, error) {
	run, err := r.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return r.LoadRun(ctx, run.ID)
}
