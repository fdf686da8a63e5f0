package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
	"github.com/supportflow/conversation-router/pkg/observability"
	"github.com/supportflow/conversation-router/pkg/redaction"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	state INTEGER NOT NULL,
	thread_root_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	participants TEXT NOT NULL DEFAULT '[]',
	created_ns INTEGER NOT NULL,
	last_state_change_ns INTEGER NOT NULL,
	last_message_posted_ns INTEGER NOT NULL,
	closed_ns INTEGER,
	archived_ns INTEGER
);
CREATE INDEX IF NOT EXISTS idx_conversations_room_activity
	ON conversations (room_id, last_message_posted_ns DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_thread_root
	ON conversations (room_id, thread_root_id);

CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	tracking_enabled INTEGER NOT NULL,
	warning_ns INTEGER,
	deadline_ns INTEGER
);

CREATE TABLE IF NOT EXISTS resolved_examples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	candidate_log TEXT NOT NULL,
	message_text TEXT NOT NULL,
	spans TEXT NOT NULL DEFAULT '[]',
	answer TEXT NOT NULL,
	created_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolved_examples_room
	ON resolved_examples (room_id, id DESC);
`

// SQLiteStore is the SQLite-backed Store implementation.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) a SQLite database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	observability.Infof("Opened SQLite conversation store at %s", dsn)
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func nsOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func durOrNull(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*d), Valid: true}
}

func scanConversation(scan func(dest ...any) error) (*conversation.Conversation, error) {
	var (
		c                               conversation.Conversation
		id, tagsJSON, participantsJSON  string
		state                           int
		createdNs, changeNs, postedNs   int64
		closedNs, archivedNs            sql.NullInt64
	)
	if err := scan(&id, &c.RoomID, &state, &c.ThreadRootID, &c.Title,
		&tagsJSON, &participantsJSON, &createdNs, &changeNs, &postedNs,
		&closedNs, &archivedNs); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt conversation id %q: %w", id, err)
	}
	c.ID = parsed
	c.State = conversation.State(state)

	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("corrupt tags for conversation %s: %w", id, err)
	}
	c.Tags = conversation.NewTagSet(tags...)
	if err := json.Unmarshal([]byte(participantsJSON), &c.Participants); err != nil {
		return nil, fmt.Errorf("corrupt participants for conversation %s: %w", id, err)
	}

	c.Created = time.Unix(0, createdNs)
	c.LastStateChangeOn = time.Unix(0, changeNs)
	c.LastMessagePostedOn = time.Unix(0, postedNs)
	if closedNs.Valid {
		t := time.Unix(0, closedNs.Int64)
		c.ClosedOn = &t
	}
	if archivedNs.Valid {
		t := time.Unix(0, archivedNs.Int64)
		c.ArchivedOn = &t
	}
	return &c, nil
}

const conversationColumns = `id, room_id, state, thread_root_id, title, tags,
	participants, created_ns, last_state_change_ns, last_message_posted_ns,
	closed_ns, archived_ns`

// ConversationByThreadRoot returns the conversation started by the given
// thread root, or nil when no conversation claims it.
func (s *SQLiteStore) ConversationByThreadRoot(ctx context.Context, roomID, threadRootID string) (*conversation.Conversation, error) {
	if threadRootID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE room_id = ? AND thread_root_id = ? LIMIT 1`, roomID, threadRootID)
	conv, err := scanConversation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// RecentActiveConversations returns non-terminal conversations in the room,
// most recently active first, up to limit.
func (s *SQLiteStore) RecentActiveConversations(ctx context.Context, roomID string, limit int) ([]conversation.Conversation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE room_id = ? AND state NOT IN (?, ?)
		 ORDER BY last_message_posted_ns DESC LIMIT ?`,
		roomID, int(conversation.StateClosed), int(conversation.StateArchived), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conversation.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

// Room returns the room's configuration, or nil when unknown.
func (s *SQLiteStore) Room(ctx context.Context, roomID string) (*conversation.Room, error) {
	var (
		room       conversation.Room
		tracking   int
		warningNs  sql.NullInt64
		deadlineNs sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, tracking_enabled, warning_ns, deadline_ns FROM rooms WHERE id = ?`,
		roomID).Scan(&room.ID, &room.OrgID, &tracking, &warningNs, &deadlineNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	room.ConversationTrackingEnabled = tracking != 0
	if warningNs.Valid {
		d := time.Duration(warningNs.Int64)
		room.TimeToRespond.Warning = &d
	}
	if deadlineNs.Valid {
		d := time.Duration(deadlineNs.Int64)
		room.TimeToRespond.Deadline = &d
	}
	return &room, nil
}

// ResolvedExamples returns up to limit prior resolved matches, newest first.
func (s *SQLiteStore) ResolvedExamples(ctx context.Context, roomID string, limit int) ([]matcher.ResolvedExample, error) {
	if limit <= 0 {
		limit = 6
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_log, message_text, spans, answer FROM resolved_examples
		 WHERE room_id = ? ORDER BY id DESC LIMIT ?`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matcher.ResolvedExample
	for rows.Next() {
		var (
			ex        matcher.ResolvedExample
			spansJSON string
		)
		if err := rows.Scan(&ex.CandidateLog, &ex.MessageText, &spansJSON, &ex.Answer); err != nil {
			return nil, err
		}
		var spans []redaction.Span
		if err := json.Unmarshal([]byte(spansJSON), &spans); err != nil {
			return nil, fmt.Errorf("corrupt spans in resolved example: %w", err)
		}
		ex.Spans = spans
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) upsertConversation(ctx context.Context, conv conversation.Conversation, mustExist bool) error {
	tagsJSON, err := json.Marshal(conv.Tags.Names())
	if err != nil {
		return err
	}
	participants := conv.Participants
	if participants == nil {
		participants = []string{}
	}
	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (`+conversationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			title = excluded.title,
			tags = excluded.tags,
			participants = excluded.participants,
			last_state_change_ns = excluded.last_state_change_ns,
			last_message_posted_ns = excluded.last_message_posted_ns,
			closed_ns = excluded.closed_ns,
			archived_ns = excluded.archived_ns`,
		conv.ID.String(), conv.RoomID, int(conv.State), conv.ThreadRootID, conv.Title,
		string(tagsJSON), string(participantsJSON),
		conv.Created.UnixNano(), conv.LastStateChangeOn.UnixNano(), conv.LastMessagePostedOn.UnixNano(),
		nsOrNull(conv.ClosedOn), nsOrNull(conv.ArchivedOn))
	if err != nil {
		return err
	}
	if mustExist {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// CreateConversation inserts a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv conversation.Conversation) error {
	return s.upsertConversation(ctx, conv, false)
}

// UpdateConversation replaces a conversation's stored state atomically.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, conv conversation.Conversation) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ?`, conv.ID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return s.upsertConversation(ctx, conv, true)
}

// GetConversation returns a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// SaveRoom inserts or replaces a room.
func (s *SQLiteStore) SaveRoom(ctx context.Context, room conversation.Room) error {
	tracking := 0
	if room.ConversationTrackingEnabled {
		tracking = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, org_id, tracking_enabled, warning_ns, deadline_ns)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			tracking_enabled = excluded.tracking_enabled,
			warning_ns = excluded.warning_ns,
			deadline_ns = excluded.deadline_ns`,
		room.ID, room.OrgID, tracking,
		durOrNull(room.TimeToRespond.Warning), durOrNull(room.TimeToRespond.Deadline))
	return err
}

// AddResolvedExample records a confirmed match for few-shot reuse.
func (s *SQLiteStore) AddResolvedExample(ctx context.Context, roomID string, example matcher.ResolvedExample) error {
	spans := example.Spans
	if spans == nil {
		spans = []redaction.Span{}
	}
	spansJSON, err := json.Marshal(spans)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resolved_examples (room_id, candidate_log, message_text, spans, answer, created_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		roomID, example.CandidateLog, example.MessageText, string(spansJSON),
		example.Answer, time.Now().UnixNano())
	return err
}
