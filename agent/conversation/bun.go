package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunStoreConfig configures the Postgres-backed store.
type BunStoreConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
}

// BunStore persists threads in Postgres through bun. It honors the same
// contract as MemoryStore; callers are expected to serialize turns per thread,
// so message sequence numbers are assigned without row locking.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

type threadRow struct {
	bun.BaseModel `bun:"table:conversation_threads,alias:t"`

	ID           string    `bun:"id,pk"`
	ActiveAgent  string    `bun:"active_agent,notnull"`
	LastDecision []byte    `bun:"last_decision,type:jsonb,nullzero"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:conversation_messages,alias:m"`

	ID         string    `bun:"id,pk"`
	ThreadID   string    `bun:"thread_id,notnull"`
	Seq        int64     `bun:"seq,notnull"`
	Role       string    `bun:"role,notnull"`
	Content    string    `bun:"content"`
	ToolCallID string    `bun:"tool_call_id,nullzero"`
	ToolName   string    `bun:"tool_name,nullzero"`
	ToolArgs   string    `bun:"tool_args,nullzero"`
	Timestamp  time.Time `bun:"ts,notnull"`
}

func NewBunStore(cfg BunStoreConfig) (*BunStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &BunStore{
		db:  bun.NewDB(sqldb, pgdialect.New()),
		now: time.Now,
	}, nil
}

// Migrate creates the backing tables when they do not exist yet.
func (s *BunStore) Migrate(ctx context.Context) error {
	models := []any{(*threadRow)(nil), (*messageRow)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*messageRow)(nil)).
		Index("idx_conversation_messages_thread_seq").
		Column("thread_id", "seq").
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) Append(ctx context.Context, threadID string, msgs ...Message) error {
	id := strings.TrimSpace(threadID)
	if id == "" {
		return ErrInvalidThreadID
	}
	if len(msgs) == 0 {
		return nil
	}
	now := s.now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &threadRow{
			ID:          id,
			ActiveAgent: string(AgentNone),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := tx.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("ensure thread: %w", err)
		}

		var maxSeq int64
		err := tx.NewSelect().
			Model((*messageRow)(nil)).
			ColumnExpr("COALESCE(MAX(seq), 0)").
			Where("thread_id = ?", id).
			Scan(ctx, &maxSeq)
		if err != nil {
			return fmt.Errorf("next message seq: %w", err)
		}

		rows := make([]messageRow, 0, len(msgs))
		for i, m := range msgs {
			rows = append(rows, messageRow{
				ID:         m.ID,
				ThreadID:   id,
				Seq:        maxSeq + int64(i) + 1,
				Role:       string(m.Role),
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				ToolName:   m.ToolName,
				ToolArgs:   m.ToolArgs,
				Timestamp:  m.Timestamp,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("append messages: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*threadRow)(nil)).
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (s *BunStore) RecentHistory(ctx context.Context, threadID string, maxTurns int) ([]Message, error) {
	if _, err := s.requireThread(ctx, threadID); err != nil {
		return nil, err
	}

	q := s.db.NewSelect().
		Model((*messageRow)(nil)).
		Where("thread_id = ?", strings.TrimSpace(threadID)).
		OrderExpr("seq DESC")
	if maxTurns > 0 {
		q = q.Limit(maxTurns)
	}

	var rows []messageRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs := make([]Message, len(rows))
	for i, r := range rows {
		msgs[len(rows)-1-i] = r.toMessage()
	}
	return msgs, nil
}

func (s *BunStore) SetActiveAgent(ctx context.Context, threadID string, agent AgentType) error {
	switch agent {
	case AgentNone, AgentGmail, AgentCalendar:
	default:
		return ErrInvalidAgent
	}
	return s.updateThread(ctx, threadID, "active_agent = ?", string(agent))
}

func (s *BunStore) SetLastDecision(ctx context.Context, threadID string, d RoutingDecision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode routing decision: %w", err)
	}
	return s.updateThread(ctx, threadID, "last_decision = ?", payload)
}

func (s *BunStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	row, err := s.requireThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.RecentHistory(ctx, threadID, 0)
	if err != nil {
		return nil, err
	}

	t := &Thread{
		ID:          row.ID,
		Messages:    msgs,
		ActiveAgent: AgentType(row.ActiveAgent),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.LastDecision) > 0 {
		var d RoutingDecision
		if err := json.Unmarshal(row.LastDecision, &d); err != nil {
			return nil, fmt.Errorf("decode routing decision: %w", err)
		}
		t.LastDecision = &d
	}
	return t, nil
}

func (s *BunStore) requireThread(ctx context.Context, threadID string) (*threadRow, error) {
	id := strings.TrimSpace(threadID)
	if id == "" {
		return nil, ErrInvalidThreadID
	}

	row := new(threadRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownThread
	}
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	return row, nil
}

func (s *BunStore) updateThread(ctx context.Context, threadID string, set string, arg any) error {
	if _, err := s.requireThread(ctx, threadID); err != nil {
		return err
	}

	_, err := s.db.NewUpdate().
		Model((*threadRow)(nil)).
		Set(set, arg).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", strings.TrimSpace(threadID)).
		Exec(ctx)
	return err
}

func (r messageRow) toMessage() Message {
	return Message{
		ID:         r.ID,
		Role:       Role(r.Role),
		Content:    r.Content,
		Timestamp:  r.Timestamp,
		ToolCallID: r.ToolCallID,
		ToolName:   r.ToolName,
		ToolArgs:   r.ToolArgs,
	}
}
