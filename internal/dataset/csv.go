// Package dataset persists the flattened relations as CSV files.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chatinsight/chat-insight/internal/types"
)

const (
	// MessagesFile is the file name of the message relation.
	MessagesFile = "messages.csv"
	// EdgesFile is the file name of the edge relation.
	EdgesFile = "edges.csv"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Dir reads and writes the relations under one directory.
type Dir struct {
	path string
}

// NewDir creates a Dir rooted at path.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Save writes messages.csv and edges.csv, creating the directory if needed.
func (d *Dir) Save(rel *types.Relations) error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeFile(filepath.Join(d.path, MessagesFile), func(w io.Writer) error {
		return WriteMessages(w, rel.Messages)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(d.path, EdgesFile), func(w io.Writer) error {
		return WriteEdges(w, rel.Edges)
	})
}

// Load reads both relations from the directory.
func (d *Dir) Load(_ context.Context) (*types.Relations, error) {
	msgs, err := readFile(filepath.Join(d.path, MessagesFile), ReadMessages)
	if err != nil {
		return nil, err
	}
	edges, err := readFile(filepath.Join(d.path, EdgesFile), ReadEdges)
	if err != nil {
		return nil, err
	}
	return &types.Relations{Messages: msgs, Edges: edges}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// WriteMessages writes the message relation with a UTF-8 BOM and a header row.
// Nullable fields are written empty; booleans as true/false; children_ids as a JSON array.
func WriteMessages(w io.Writer, msgs []types.MessageRecord) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(types.MessageColumns); err != nil {
		return err
	}
	for i := range msgs {
		m := &msgs[i]
		children, err := encodeIDs(m.ChildrenIDs)
		if err != nil {
			return fmt.Errorf("encode children of %s: %w", m.NodeID, err)
		}
		row := []string{
			m.ConversationID,
			m.ConversationTitle,
			m.NodeID,
			optString(m.ParentID),
			children,
			optFloat(m.CreateTime),
			optFloat(m.UpdateTime),
			optString(m.Role),
			optString(m.ContentType),
			optString(m.PartsRaw),
			m.Text,
			strconv.FormatBool(m.HasCode),
			strconv.FormatBool(m.HasImage),
			strconv.FormatBool(m.HasLink),
			optString(m.MetadataRaw),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdges writes the edge relation with a UTF-8 BOM and a header row.
func WriteEdges(w io.Writer, edges []types.EdgeRecord) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(types.EdgeColumns); err != nil {
		return err
	}
	for _, e := range edges {
		if err := cw.Write([]string{e.ConversationID, e.ParentID, e.ChildID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMessages parses a message relation written by WriteMessages.
func ReadMessages(r io.Reader) ([]types.MessageRecord, error) {
	rows, err := readRows(r, types.MessageColumns)
	if err != nil {
		return nil, err
	}
	msgs := make([]types.MessageRecord, 0, len(rows))
	for i, row := range rows {
		m := types.MessageRecord{
			ConversationID:    row[0],
			ConversationTitle: row[1],
			NodeID:            row[2],
			ParentID:          nullString(row[3]),
			Role:              nullString(row[7]),
			ContentType:       nullString(row[8]),
			PartsRaw:          nullString(row[9]),
			Text:              row[10],
			MetadataRaw:       nullString(row[14]),
		}
		line := i + 2
		if m.ChildrenIDs, err = decodeIDs(row[4]); err != nil {
			return nil, fmt.Errorf("line %d: children_ids: %w", line, err)
		}
		if m.CreateTime, err = nullFloat(row[5]); err != nil {
			return nil, fmt.Errorf("line %d: create_time: %w", line, err)
		}
		if m.UpdateTime, err = nullFloat(row[6]); err != nil {
			return nil, fmt.Errorf("line %d: update_time: %w", line, err)
		}
		if m.HasCode, err = strconv.ParseBool(row[11]); err != nil {
			return nil, fmt.Errorf("line %d: has_code: %w", line, err)
		}
		if m.HasImage, err = strconv.ParseBool(row[12]); err != nil {
			return nil, fmt.Errorf("line %d: has_image: %w", line, err)
		}
		if m.HasLink, err = strconv.ParseBool(row[13]); err != nil {
			return nil, fmt.Errorf("line %d: has_link: %w", line, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// ReadEdges parses an edge relation written by WriteEdges.
func ReadEdges(r io.Reader) ([]types.EdgeRecord, error) {
	rows, err := readRows(r, types.EdgeColumns)
	if err != nil {
		return nil, err
	}
	edges := make([]types.EdgeRecord, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, types.EdgeRecord{ConversationID: row[0], ParentID: row[1], ChildID: row[2]})
	}
	return edges, nil
}

func readRows(r io.Reader, columns []string) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(columns)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	for i, name := range columns {
		if header[i] != name {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i+1, name, header[i])
		}
	}
	return cr.ReadAll()
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ids); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func decodeIDs(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
