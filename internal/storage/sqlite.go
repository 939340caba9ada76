package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"giveaway/internal/models"
)

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at dbPath. ":memory:" is accepted
// for tests.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id                  INTEGER PRIMARY KEY,
			owner_account_id    TEXT NOT NULL,
			status              TEXT NOT NULL,
			rewards             TEXT NOT NULL,
			rewards_token_id    TEXT,
			participants        TEXT NOT NULL,
			allow_duplicates    INTEGER NOT NULL,
			add_start           INTEGER NOT NULL,
			add_end             INTEGER NOT NULL,
			event_timestamp     INTEGER NOT NULL,
			finalized_timestamp INTEGER,
			title               TEXT NOT NULL,
			description         TEXT NOT NULL,
			draw_seed           TEXT NOT NULL DEFAULT '',
			escrow              TEXT NOT NULL,
			closed              INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS payouts (
			event_id   INTEGER NOT NULL,
			idx        INTEGER NOT NULL,
			account_id TEXT NOT NULL,
			amount     TEXT NOT NULL,
			token_id   TEXT,
			status     TEXT NOT NULL,
			PRIMARY KEY (event_id, idx)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) PutEvent(id uint64, ev *models.Event) error {
	rewardsJSON, err := json.Marshal(ev.Rewards)
	if err != nil {
		return fmt.Errorf("failed to marshal rewards: %w", err)
	}
	participantsJSON, err := json.Marshal(ev.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}
	var finalized *int64
	if ev.FinalizedTimestamp != nil {
		v := int64(*ev.FinalizedTimestamp)
		finalized = &v
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO events
			(id, owner_account_id, status, rewards, rewards_token_id,
			 participants, allow_duplicates, add_start, add_end,
			 event_timestamp, finalized_timestamp, title, description,
			 draw_seed, escrow, closed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, ev.OwnerAccountID, string(ev.Status), string(rewardsJSON), ev.RewardsTokenID,
		string(participantsJSON), boolToInt(ev.AllowDuplicateParticipants),
		int64(ev.AddParticipantsStartTimestamp), int64(ev.AddParticipantsEndTimestamp),
		int64(ev.EventTimestamp), finalized, ev.Title, ev.Description,
		ev.DrawSeed, ev.Escrow.String(), boolToInt(ev.Closed),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

func (s *SQLite) GetEvent(id uint64) (*models.Event, bool, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, true, nil
}

func (s *SQLite) EventCount() (uint64, error) {
	var n uint64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (s *SQLite) ListEvents(fromIndex, limit uint64) ([]IndexedEvent, error) {
	// Ids are dense int64s; anything past that range cannot match, and a
	// LIMIT clause sidesteps fromIndex+limit overflow.
	if fromIndex > math.MaxInt64 {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT id, `+eventCols+` FROM events
		WHERE id >= ? ORDER BY id LIMIT ?`, int64(fromIndex), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []IndexedEvent
	for rows.Next() {
		var id uint64
		ev, err := scanEventWithID(rows, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, IndexedEvent{ID: id, Event: ev})
	}
	return out, rows.Err()
}

func (s *SQLite) PutPayout(eventID, index uint64, p *models.Payout) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO payouts (event_id, idx, account_id, amount, token_id, status)
		VALUES (?,?,?,?,?,?)`,
		eventID, index, p.AccountID, p.Amount.String(), p.TokenID, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payout: %w", err)
	}
	return nil
}

func (s *SQLite) GetPayout(eventID, index uint64) (*models.Payout, bool, error) {
	row := s.db.QueryRow(`
		SELECT account_id, amount, token_id, status
		FROM payouts WHERE event_id = ? AND idx = ?`, eventID, index)
	p, err := scanPayout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, true, nil
}

func (s *SQLite) DeletePayouts(eventID uint64) error {
	if _, err := s.db.Exec(`DELETE FROM payouts WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("failed to delete payouts: %w", err)
	}
	return nil
}

func (s *SQLite) PayoutCount(eventID uint64) (uint64, error) {
	var n uint64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM payouts WHERE event_id = ?`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count payouts: %w", err)
	}
	return n, nil
}

func (s *SQLite) ListPayouts(eventID, fromIndex, limit uint64) ([]IndexedPayout, error) {
	if fromIndex > math.MaxInt64 {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT idx, account_id, amount, token_id, status
		FROM payouts WHERE event_id = ? AND idx >= ? ORDER BY idx LIMIT ?`,
		eventID, int64(fromIndex), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var out []IndexedPayout
	for rows.Next() {
		var idx uint64
		var accountID, amountStr, status string
		var tokenID *string
		if err := rows.Scan(&idx, &accountID, &amountStr, &tokenID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		amount, err := models.BalanceFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt payout amount: %w", err)
		}
		out = append(out, IndexedPayout{Index: idx, Payout: &models.Payout{
			AccountID: accountID,
			Amount:    amount,
			TokenID:   tokenID,
			Status:    models.PayoutStatus(status),
		}})
	}
	return out, rows.Err()
}

const eventCols = `owner_account_id, status, rewards, rewards_token_id,
	participants, allow_duplicates, add_start, add_end, event_timestamp,
	finalized_timestamp, title, description, draw_seed, escrow, closed`

func scanEvent(scan func(...any) error) (*models.Event, error) {
	return scanEventInto(scan, nil)
}

func scanEventWithID(rows *sql.Rows, id *uint64) (*models.Event, error) {
	return scanEventInto(rows.Scan, id)
}

func scanEventInto(scan func(...any) error, id *uint64) (*models.Event, error) {
	var ev models.Event
	var status, rewardsJSON, participantsJSON, escrowStr string
	var allowDup, closed int
	var addStart, addEnd, eventTS int64
	var finalized *int64

	dest := []any{
		&ev.OwnerAccountID, &status, &rewardsJSON, &ev.RewardsTokenID,
		&participantsJSON, &allowDup, &addStart, &addEnd, &eventTS,
		&finalized, &ev.Title, &ev.Description, &ev.DrawSeed, &escrowStr, &closed,
	}
	if id != nil {
		dest = append([]any{id}, dest...)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rewardsJSON), &ev.Rewards); err != nil {
		return nil, fmt.Errorf("corrupt rewards column: %w", err)
	}
	if err := json.Unmarshal([]byte(participantsJSON), &ev.Participants); err != nil {
		return nil, fmt.Errorf("corrupt participants column: %w", err)
	}
	escrow, err := models.BalanceFromString(escrowStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt escrow column: %w", err)
	}

	ev.Status = models.EventStatus(status)
	ev.AllowDuplicateParticipants = allowDup != 0
	ev.AddParticipantsStartTimestamp = models.Timestamp(addStart)
	ev.AddParticipantsEndTimestamp = models.Timestamp(addEnd)
	ev.EventTimestamp = models.Timestamp(eventTS)
	if finalized != nil {
		ts := models.Timestamp(*finalized)
		ev.FinalizedTimestamp = &ts
	}
	ev.Escrow = escrow
	ev.Closed = closed != 0
	return &ev, nil
}

func scanPayout(scan func(...any) error) (*models.Payout, error) {
	var p models.Payout
	var amountStr, status string
	if err := scan(&p.AccountID, &amountStr, &p.TokenID, &status); err != nil {
		return nil, err
	}
	amount, err := models.BalanceFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount column: %w", err)
	}
	p.Amount = amount
	p.Status = models.PayoutStatus(status)
	return &p, nil
}

func clampLimit(limit uint64) int64 {
	if limit > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(limit)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
