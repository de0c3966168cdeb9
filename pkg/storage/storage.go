// Package storage is the embedded SQL store for SMS history and call
// records. SQLite is not safe across concurrent use of one handle, so
// every operation runs under the store mutex on a single connection.
package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SmsMessage is one stored SMS.
type SmsMessage struct {
	ID          int64   `json:"id"`
	Direction   string  `json:"direction"` // incoming / outgoing
	PhoneNumber string  `json:"phone_number"`
	Content     string  `json:"content"`
	Timestamp   string  `json:"timestamp"` // RFC 3339 UTC
	Status      string  `json:"status"`    // pending / sent / failed / received
	PDU         *string `json:"pdu"`
}

// CallRecord is one stored call.
type CallRecord struct {
	ID          int64   `json:"id"`
	Direction   string  `json:"direction"` // incoming / outgoing / missed
	PhoneNumber string  `json:"phone_number"`
	Duration    int64   `json:"duration"` // seconds
	StartTime   string  `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Answered    bool    `json:"answered"`
}

// SmsStats are the message counters.
type SmsStats struct {
	Total    int64 `json:"total"`
	Incoming int64 `json:"incoming"`
	Outgoing int64 `json:"outgoing"`
}

// CallStats are the call counters; TotalDuration sums answered calls only.
type CallStats struct {
	Total         int64 `json:"total"`
	Incoming      int64 `json:"incoming"`
	Outgoing      int64 `json:"outgoing"`
	Missed        int64 `json:"missed"`
	TotalDuration int64 `json:"total_duration"`
}

// Store wraps the single SQLite handle.
type Store struct {
	mu   sync.Mutex
	conn *sql.DB
}

// Open creates or opens the store and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One handle, guarded by the store mutex.
	conn.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS sms_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			direction TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			status TEXT NOT NULL,
			pdu TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sms_timestamp ON sms_messages(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sms_phone ON sms_messages(phone_number)`,
		`CREATE TABLE IF NOT EXISTS call_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			direction TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			duration INTEGER DEFAULT 0,
			start_time TEXT NOT NULL,
			end_time TEXT,
			answered INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_call_start_time ON call_history(start_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_call_phone ON call_history(phone_number)`,
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Store{conn: conn}, nil
}

// Close releases the handle.
func (s *Store) Close() error {
	return s.conn.Close()
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// InsertSms stores a message and returns its id.
func (s *Store) InsertSms(direction, phoneNumber, content, status string, pdu *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.Exec(
		`INSERT INTO sms_messages (direction, phone_number, content, timestamp, status, pdu)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		direction, phoneNumber, content, nowRFC3339(), status, pdu,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sms: %w", err)
	}
	return res.LastInsertId()
}

// GetSms returns one message by id.
func (s *Store) GetSms(id int64) (SmsMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msg SmsMessage
	err := s.conn.QueryRow(
		`SELECT id, direction, phone_number, content, timestamp, status, pdu
		 FROM sms_messages WHERE id = ?`, id,
	).Scan(&msg.ID, &msg.Direction, &msg.PhoneNumber, &msg.Content, &msg.Timestamp, &msg.Status, &msg.PDU)
	if err != nil {
		return SmsMessage{}, fmt.Errorf("failed to get sms %d: %w", id, err)
	}
	return msg, nil
}

// SmsMessages returns messages newest-first with paging.
func (s *Store) SmsMessages(limit, offset int64) ([]SmsMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(
		`SELECT id, direction, phone_number, content, timestamp, status, pdu
		 FROM sms_messages ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sms: %w", err)
	}
	defer rows.Close()
	return scanSmsRows(rows)
}

// SmsConversation returns the exchange with one number, newest-first.
func (s *Store) SmsConversation(phoneNumber string, limit int64) ([]SmsMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(
		`SELECT id, direction, phone_number, content, timestamp, status, pdu
		 FROM sms_messages WHERE phone_number = ? ORDER BY timestamp DESC LIMIT ?`,
		phoneNumber, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer rows.Close()
	return scanSmsRows(rows)
}

func scanSmsRows(rows *sql.Rows) ([]SmsMessage, error) {
	messages := []SmsMessage{}
	for rows.Next() {
		var msg SmsMessage
		if err := rows.Scan(&msg.ID, &msg.Direction, &msg.PhoneNumber, &msg.Content,
			&msg.Timestamp, &msg.Status, &msg.PDU); err != nil {
			return nil, fmt.Errorf("failed to scan sms row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SmsStats computes the message counters with direct aggregates.
func (s *Store) SmsStats() (SmsStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats SmsStats
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM sms_messages`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("failed to count sms: %w", err)
	}
	if err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM sms_messages WHERE direction = 'incoming'`).Scan(&stats.Incoming); err != nil {
		return stats, fmt.Errorf("failed to count incoming sms: %w", err)
	}
	if err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM sms_messages WHERE direction = 'outgoing'`).Scan(&stats.Outgoing); err != nil {
		return stats, fmt.Errorf("failed to count outgoing sms: %w", err)
	}
	return stats, nil
}

// ClearSms deletes every message.
func (s *Store) ClearSms() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`DELETE FROM sms_messages`); err != nil {
		return fmt.Errorf("failed to clear sms: %w", err)
	}
	return nil
}

// InsertCall creates a call row at ring/dial time and returns its id.
// Duration stays 0 until the call is answered and ends.
func (s *Store) InsertCall(direction, phoneNumber string, answered bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.Exec(
		`INSERT INTO call_history (direction, phone_number, duration, start_time, answered)
		 VALUES (?, ?, 0, ?, ?)`,
		direction, phoneNumber, nowRFC3339(), boolToInt(answered),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert call: %w", err)
	}
	return res.LastInsertId()
}

// UpdateCallEnd finalizes a call row when the call ends.
func (s *Store) UpdateCallEnd(id, duration int64, answered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(
		`UPDATE call_history SET duration = ?, end_time = ?, answered = ? WHERE id = ?`,
		duration, nowRFC3339(), boolToInt(answered), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update call %d: %w", id, err)
	}
	return nil
}

// MarkCallMissed flips an unanswered incoming call to missed.
func (s *Store) MarkCallMissed(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(
		`UPDATE call_history SET direction = 'missed', end_time = ?, answered = 0 WHERE id = ?`,
		nowRFC3339(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark call %d missed: %w", id, err)
	}
	return nil
}

// GetCall returns one call row by id.
func (s *Store) GetCall(id int64) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec CallRecord
	var answered int
	err := s.conn.QueryRow(
		`SELECT id, direction, phone_number, duration, start_time, end_time, answered
		 FROM call_history WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Direction, &rec.PhoneNumber, &rec.Duration, &rec.StartTime, &rec.EndTime, &answered)
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to get call %d: %w", id, err)
	}
	rec.Answered = answered != 0
	return rec, nil
}

// CallHistory returns calls newest-first with paging.
func (s *Store) CallHistory(limit, offset int64) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(
		`SELECT id, direction, phone_number, duration, start_time, end_time, answered
		 FROM call_history ORDER BY start_time DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query call history: %w", err)
	}
	defer rows.Close()

	records := []CallRecord{}
	for rows.Next() {
		var rec CallRecord
		var answered int
		if err := rows.Scan(&rec.ID, &rec.Direction, &rec.PhoneNumber, &rec.Duration,
			&rec.StartTime, &rec.EndTime, &answered); err != nil {
			return nil, fmt.Errorf("failed to scan call row: %w", err)
		}
		rec.Answered = answered != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CallStats computes the call counters; only answered rows contribute to
// the duration sum.
func (s *Store) CallStats() (CallStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats CallStats
	counters := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM call_history`, &stats.Total},
		{`SELECT COUNT(*) FROM call_history WHERE direction = 'incoming'`, &stats.Incoming},
		{`SELECT COUNT(*) FROM call_history WHERE direction = 'outgoing'`, &stats.Outgoing},
		{`SELECT COUNT(*) FROM call_history WHERE direction = 'missed'`, &stats.Missed},
		{`SELECT COALESCE(SUM(duration), 0) FROM call_history WHERE answered = 1`, &stats.TotalDuration},
	}
	for _, c := range counters {
		if err := s.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("failed to compute call stats: %w", err)
		}
	}
	return stats, nil
}

// DeleteCall removes one call row.
func (s *Store) DeleteCall(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`DELETE FROM call_history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete call %d: %w", id, err)
	}
	return nil
}

// ClearCalls deletes every call row.
func (s *Store) ClearCalls() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`DELETE FROM call_history`); err != nil {
		return fmt.Errorf("failed to clear call history: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
