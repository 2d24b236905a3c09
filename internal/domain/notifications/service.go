package notifications

import (
	"context"
	"time"

	"kpieval/internal/domain/apperr"
)

type Service struct {
	store StoreAPI
	now   func() time.Time
}

func New(store StoreAPI) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the clock used for read timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Item, int, error) {
	if userID == 0 {
		return nil, 0, apperr.Unauthenticated()
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListForUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	if userID == 0 {
		return 0, apperr.Unauthenticated()
	}
	return s.store.CountForUser(ctx, userID, true)
}

// MarkRead stamps read_at once. Marking an already-read row succeeds without
// moving the timestamp; rows owned by someone else are reported as missing.
func (s *Service) MarkRead(ctx context.Context, userID, recipientID int64) error {
	if userID == 0 {
		return apperr.Unauthenticated()
	}
	updated, err := s.store.MarkRead(ctx, userID, recipientID, s.now().UTC())
	if err != nil {
		return err
	}
	if updated {
		return nil
	}
	exists, err := s.store.RecipientExists(ctx, userID, recipientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, apperr.Unauthenticated()
	}
	return s.store.MarkAllRead(ctx, userID, s.now().UTC())
}
