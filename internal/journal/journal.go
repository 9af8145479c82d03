// Package journal 把运行事件（保活结果、命令失败）持久化到 SQLite，
// 供排障时回溯。不记录成交历史。
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trade-console/internal/store"
)

// EventType 表示事件类型。
type EventType string

const (
	EventKeepaliveSweep EventType = "keepalive_sweep"
	EventCommandError   EventType = "command_error"
)

// Event 封装通用运行事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SweepPayload 记录单个账户的保活结果。
type SweepPayload struct {
	Client string `json:"client"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// CommandErrorPayload 记录命令级失败。
type CommandErrorPayload struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

// Service 负责写入与检索运行事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化事件日志，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS journal_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_events_type ON journal_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSweep 记录单个账户的保活触达结果。
func (s *Service) RecordSweep(ctx context.Context, client string, sweepErr error) {
	payload := SweepPayload{Client: client, OK: sweepErr == nil}
	if sweepErr != nil {
		payload.Error = sweepErr.Error()
	}
	if err := s.Record(ctx, Event{Type: EventKeepaliveSweep, Payload: payload}); err != nil {
		s.logger.Warn("记录保活事件失败", zap.Error(err))
	}
}

// RecordCommandError 记录命令级失败。
func (s *Service) RecordCommandError(ctx context.Context, command string, cmdErr error) {
	payload := CommandErrorPayload{Command: command, Error: cmdErr.Error()}
	if err := s.Record(ctx, Event{Type: EventCommandError, Payload: payload}); err != nil {
		s.logger.Warn("记录命令事件失败", zap.Error(err))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM journal_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("journal: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取事件失败: %w", err)
	}

	return events, nil
}
