package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.id, n.id, n.type, n.title, n.body,
           COALESCE(n.actor_id, 0), COALESCE(n.cycle_id, 0), COALESCE(n.plan_id, 0),
           COALESCE(n.assignment_id, 0), COALESCE(n.event_id, 0),
           n.meta, r.action_status, r.read_at, r.created_at
    FROM notification_recipients r
    JOIN notifications n ON n.id = r.notification_id
    WHERE r.user_id = $1 AND ($2 = false OR r.read_at IS NULL)
    ORDER BY r.created_at DESC, r.id DESC
    LIMIT $3 OFFSET $4
  `, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		var meta []byte
		if err := rows.Scan(
			&item.ID, &item.NotificationID, &item.Type, &item.Title, &item.Body,
			&item.ActorID, &item.CycleID, &item.PlanID, &item.AssignmentID, &item.EventID,
			&meta, &item.ActionStatus, &item.ReadAt, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &item.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) CountForUser(ctx context.Context, userID int64, unreadOnly bool) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM notification_recipients
    WHERE user_id = $1 AND ($2 = false OR read_at IS NULL)
  `, userID, unreadOnly).Scan(&total)
	return total, err
}

func (s *Store) MarkRead(ctx context.Context, userID, recipientID int64, at time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notification_recipients SET read_at = $3
    WHERE id = $1 AND user_id = $2 AND read_at IS NULL
  `, recipientID, userID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) RecipientExists(ctx context.Context, userID, recipientID int64) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM notification_recipients WHERE id = $1 AND user_id = $2)
  `, recipientID, userID).Scan(&exists)
	return exists, err
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notification_recipients SET read_at = $2
    WHERE user_id = $1 AND read_at IS NULL
  `, userID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) UserIDsByEmployeeIDs(ctx context.Context, employeeIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, id FROM users
    WHERE employee_id = ANY($1) AND status = 'active'
  `, employeeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var employeeID, userID int64
		if err := rows.Scan(&employeeID, &userID); err != nil {
			return nil, err
		}
		out[employeeID] = userID
	}
	return out, rows.Err()
}

// InsertNotification returns the existing row's id with created=false when
// the dedupe key was already used.
func (s *Store) InsertNotification(ctx context.Context, n Notification) (int64, bool, error) {
	meta := n.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = s.DB.QueryRow(ctx, `
    INSERT INTO notifications (type, actor_id, cycle_id, plan_id, assignment_id, event_id, dedupe_key, title, body, meta)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    ON CONFLICT (dedupe_key) DO NOTHING
    RETURNING id
  `, n.Type, nullIfZero(n.ActorID), nullIfZero(n.CycleID), nullIfZero(n.PlanID), nullIfZero(n.AssignmentID),
		nullIfZero(n.EventID), nullIfEmpty(n.DedupeKey), n.Title, n.Body, metaJSON).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	if err := s.DB.QueryRow(ctx, "SELECT id FROM notifications WHERE dedupe_key = $1", n.DedupeKey).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, false, nil
}

func (s *Store) InsertRecipient(ctx context.Context, notificationID, userID int64, actionStatus string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO notification_recipients (notification_id, user_id, action_status)
    VALUES ($1,$2,$3)
    ON CONFLICT (notification_id, user_id) DO NOTHING
  `, notificationID, userID, actionStatus)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CompleteActions(ctx context.Context, planID int64) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notification_recipients r SET action_status = $2
    FROM notifications n
    WHERE r.notification_id = n.id AND n.plan_id = $1 AND r.action_status = $3
  `, planID, ActionDone, ActionOpen)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullIfZero(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
