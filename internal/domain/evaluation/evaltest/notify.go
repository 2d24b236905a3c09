package evaltest

import (
	"context"
	"slices"
	"time"

	"kpieval/internal/domain/notifications"
)

func (s *Store) ListForUser(_ context.Context, userID int64, unreadOnly bool, limit, offset int) ([]notifications.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[int64]notifications.Notification, len(s.st.notifications))
	for _, n := range s.st.notifications {
		byID[n.ID] = n
	}
	var out []notifications.Item
	for _, r := range s.st.recipients {
		if r.UserID != userID || (unreadOnly && r.ReadAt != nil) {
			continue
		}
		n := byID[r.NotificationID]
		out = append(out, notifications.Item{
			ID:             r.ID,
			NotificationID: n.ID,
			Type:           n.Type,
			Title:          n.Title,
			Body:           n.Body,
			ActorID:        n.ActorID,
			CycleID:        n.CycleID,
			PlanID:         n.PlanID,
			AssignmentID:   n.AssignmentID,
			EventID:        n.EventID,
			Meta:           n.Meta,
			ActionStatus:   r.ActionStatus,
			ReadAt:         r.ReadAt,
			CreatedAt:      r.CreatedAt,
		})
	}
	slices.Reverse(out)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountForUser(_ context.Context, userID int64, unreadOnly bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.st.recipients {
		if r.UserID == userID && (!unreadOnly || r.ReadAt == nil) {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(_ context.Context, userID, recipientID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.recipients {
		r := &s.st.recipients[i]
		if r.ID == recipientID && r.UserID == userID && r.ReadAt == nil {
			stamp := at
			r.ReadAt = &stamp
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecipientExists(_ context.Context, userID, recipientID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.st.recipients {
		if r.ID == recipientID && r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkAllRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.st.recipients {
		r := &s.st.recipients[i]
		if r.UserID == userID && r.ReadAt == nil {
			stamp := at
			r.ReadAt = &stamp
			n++
		}
	}
	return n, nil
}
