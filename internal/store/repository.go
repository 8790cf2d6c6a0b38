package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

const incidentColumns = `id, incident_code, incident_name, category, sub_category, severity,
	ticket_type, sla, date_time_reported, reported_by, plant, line, work_cell, shift,
	machine, production_order, lot_number, description, immediate_action, status,
	root_cause, corrective_action, closed_by, created_at`

func (s *Store) UpsertUser(ctx context.Context, u domain.UserProfile) error {
	now := time.Now().UTC()
	s.logger.Debug("upserting user", "phone", u.PhoneNumber)
	_, err := s.exec(ctx, `INSERT INTO users (phone_number, name, area, shift, role, line, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE SET
			name = excluded.name, area = excluded.area, shift = excluded.shift,
			role = excluded.role, line = excluded.line, updated_at = excluded.updated_at`,
		u.PhoneNumber, u.Name, u.Area, u.Shift, u.Role, u.Line, now, now)
	if err != nil {
		s.logger.Error("failed to upsert user", "phone", u.PhoneNumber, "error", err)
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, phone string) (*domain.UserProfile, error) {
	var u domain.UserProfile
	err := s.queryRow(ctx, `SELECT phone_number, name, area, shift, role, line, created_at, updated_at
		FROM users WHERE phone_number = ?`, phone).
		Scan(&u.PhoneNumber, &u.Name, &u.Area, &u.Shift, &u.Role, &u.Line, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *Store) DeleteUser(ctx context.Context, phone string) error {
	if _, err := s.exec(ctx, `DELETE FROM users WHERE phone_number = ?`, phone); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *Store) SaveIncident(ctx context.Context, rec domain.IncidentRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	if rec.ReportedAt.IsZero() {
		rec.ReportedAt = time.Now().UTC()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	stepKey := sql.NullString{String: rec.StepKey, Valid: rec.StepKey != ""}

	var id int64
	err := s.queryRow(ctx, `INSERT INTO incidents (incident_code, incident_name, category, sub_category,
			severity, ticket_type, sla, date_time_reported, reported_by, plant, line, work_cell, shift,
			machine, production_order, lot_number, description, immediate_action, status,
			root_cause, corrective_action, closed_by, created_at, step_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (step_key) DO NOTHING
		RETURNING id`,
		rec.IncidentCode, rec.IncidentName, string(rec.Category), rec.SubCategory,
		string(rec.Severity), string(rec.TicketType), rec.SLA, rec.ReportedAt, rec.ReportedBy,
		rec.Plant, rec.Line, rec.WorkCell, rec.Shift, rec.Machine, rec.ProductionOrder,
		rec.LotNumber, rec.Description, rec.ImmediateAction, string(rec.Status),
		rec.RootCause, rec.CorrectiveAction, rec.ClosedBy, rec.CreatedAt, stepKey,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) && stepKey.Valid {
		if err := s.queryRow(ctx, `SELECT id FROM incidents WHERE step_key = ?`, rec.StepKey).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to load duplicate incident: %w", classify(err))
		}
		s.logger.Debug("incident already saved", "id", id, "step_key", rec.StepKey)
		return id, ports.ErrDuplicate
	}
	if err != nil {
		s.logger.Error("failed to insert incident", "code", rec.IncidentCode, "error", err)
		return 0, fmt.Errorf("failed to save incident: %w", classify(err))
	}
	s.logger.Debug("incident saved", "id", id, "code", rec.IncidentCode)
	return id, nil
}

// RecentIncidents returns the newest incidents of a reporter first.
func (s *Store) RecentIncidents(ctx context.Context, phone string, limit int) ([]domain.IncidentRecord, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE reported_by = ? ORDER BY id DESC`
	args := []any{phone}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", classify(err))
	}
	defer rows.Close()

	var out []domain.IncidentRecord
	for rows.Next() {
		rec, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}
	return out, nil
}

// DeleteIncidentsByUser removes a reporter's incidents and their attachments.
func (s *Store) DeleteIncidentsByUser(ctx context.Context, phone string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM attachments
		WHERE incident_id IN (SELECT id FROM incidents WHERE reported_by = ?)`), phone); err != nil {
		return 0, fmt.Errorf("failed to delete attachments: %w", classify(err))
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM incidents WHERE reported_by = ?`), phone)
	if err != nil {
		return 0, fmt.Errorf("failed to delete incidents: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted incidents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", classify(err))
	}
	s.logger.Debug("incidents deleted", "phone", phone, "count", n)
	return n, nil
}

func (s *Store) SaveAttachment(ctx context.Context, a domain.Attachment) (int64, error) {
	var id int64
	err := s.queryRow(ctx, `INSERT INTO attachments (incident_id, file_path, media_type, original_name, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		a.IncidentID, a.FilePath, a.MediaType, a.OriginalName, a.Description, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save attachment: %w", classify(err))
	}
	return id, nil
}

func (s *Store) AppendLog(ctx context.Context, e domain.LogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO conversation_log (thread_id, role, content, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?)`, e.ThreadID, e.Role, e.Content, e.ConversationID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

func (s *Store) DeleteLog(ctx context.Context, threadID string) error {
	if _, err := s.exec(ctx, `DELETE FROM conversation_log WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	return nil
}

// Log returns the logged lines of a thread in order.
func (s *Store) Log(ctx context.Context, threadID string) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, thread_id, role, content, conversation_id, created_at
		FROM conversation_log WHERE thread_id = ? ORDER BY id`), threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log: %w", classify(err))
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Role, &e.Content, &e.ConversationID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateConversation(ctx context.Context, c domain.Conversation) error {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = domain.ConversationActive
	}
	_, err := s.exec(ctx, `INSERT INTO conversations (id, thread_id, started_at, status, outcome, incident_id, total_messages)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ThreadID, c.StartedAt, string(c.Status), c.Outcome, c.IncidentID, c.TotalMessages)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// ActiveConversation returns the most recently started active conversation.
func (s *Store) ActiveConversation(ctx context.Context, threadID string) (*domain.Conversation, error) {
	var (
		c       domain.Conversation
		status  string
		endedAt sql.NullTime
	)
	err := s.queryRow(ctx, `SELECT id, thread_id, started_at, ended_at, status, outcome, incident_id, total_messages
		FROM conversations WHERE thread_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`, threadID, string(domain.ConversationActive)).
		Scan(&c.ID, &c.ThreadID, &c.StartedAt, &endedAt, &status, &c.Outcome, &c.IncidentID, &c.TotalMessages)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get active conversation: %w", err)
	}
	c.Status = domain.ConversationStatus(status)
	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}
	return &c, nil
}

func (s *Store) FinishConversation(ctx context.Context, id string, status domain.ConversationStatus, outcome string, incidentID int64) error {
	res, err := s.exec(ctx, `UPDATE conversations
		SET status = ?, outcome = ?, ended_at = ?,
			incident_id = CASE WHEN ? <> 0 THEN ? ELSE incident_id END
		WHERE id = ?`,
		string(status), outcome, time.Now().UTC(), incidentID, incidentID, id)
	if err != nil {
		return fmt.Errorf("failed to finish conversation: %w", err)
	}
	return requireRow(res)
}

func (s *Store) IncrementMessages(ctx context.Context, id string, n int) error {
	res, err := s.exec(ctx, `UPDATE conversations SET total_messages = total_messages + ? WHERE id = ?`, n, id)
	if err != nil {
		return fmt.Errorf("failed to increment messages: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (domain.IncidentRecord, error) {
	var (
		rec                                    domain.IncidentRecord
		category, severity, ticketType, status string
	)
	err := row.Scan(&rec.ID, &rec.IncidentCode, &rec.IncidentName, &category, &rec.SubCategory,
		&severity, &ticketType, &rec.SLA, &rec.ReportedAt, &rec.ReportedBy, &rec.Plant, &rec.Line,
		&rec.WorkCell, &rec.Shift, &rec.Machine, &rec.ProductionOrder, &rec.LotNumber,
		&rec.Description, &rec.ImmediateAction, &status, &rec.RootCause, &rec.CorrectiveAction,
		&rec.ClosedBy, &rec.CreatedAt)
	if err != nil {
		return rec, fmt.Errorf("failed to scan incident: %w", err)
	}
	rec.Category = domain.Category(category)
	rec.Severity = domain.Severity(severity)
	rec.TicketType = domain.TicketType(ticketType)
	rec.Status = domain.IncidentStatus(status)
	return rec, nil
}
