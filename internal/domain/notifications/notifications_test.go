package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"kpieval/internal/domain/apperr"
)

type memStore struct {
	users         map[int64]int64
	notifications []Notification
	recipients    []Item
	nextID        int64
}

func newMemStore(users map[int64]int64) *memStore {
	return &memStore{users: users}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) UserIDsByEmployeeIDs(_ context.Context, employeeIDs []int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, id := range employeeIDs {
		if userID, ok := m.users[id]; ok {
			out[id] = userID
		}
	}
	return out, nil
}

func (m *memStore) InsertNotification(_ context.Context, n Notification) (int64, bool, error) {
	if n.DedupeKey != "" {
		for _, existing := range m.notifications {
			if existing.DedupeKey == n.DedupeKey {
				return existing.ID, false, nil
			}
		}
	}
	n.ID = m.id()
	m.notifications = append(m.notifications, n)
	return n.ID, true, nil
}

func (m *memStore) InsertRecipient(_ context.Context, notificationID, userID int64, actionStatus string) (bool, error) {
	for _, r := range m.recipients {
		if r.NotificationID == notificationID && r.ActorID == userID {
			return false, nil
		}
	}
	var planID int64
	for _, n := range m.notifications {
		if n.ID == notificationID {
			planID = n.PlanID
		}
	}
	// ActorID holds the recipient user in this fake.
	m.recipients = append(m.recipients, Item{ID: m.id(), NotificationID: notificationID, ActorID: userID, PlanID: planID, ActionStatus: actionStatus})
	return true, nil
}

func (m *memStore) CompleteActions(_ context.Context, planID int64) (int64, error) {
	var n int64
	for i := range m.recipients {
		if m.recipients[i].PlanID == planID && m.recipients[i].ActionStatus == ActionOpen {
			m.recipients[i].ActionStatus = ActionDone
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListForUser(_ context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Item, error) {
	var out []Item
	for _, r := range m.recipients {
		if r.ActorID == userID && (!unreadOnly || r.ReadAt == nil) {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountForUser(ctx context.Context, userID int64, unreadOnly bool) (int, error) {
	items, _ := m.ListForUser(ctx, userID, unreadOnly, len(m.recipients)+1, 0)
	return len(items), nil
}

func (m *memStore) MarkRead(_ context.Context, userID, recipientID int64, at time.Time) (bool, error) {
	for i := range m.recipients {
		r := &m.recipients[i]
		if r.ID == recipientID && r.ActorID == userID && r.ReadAt == nil {
			stamp := at
			r.ReadAt = &stamp
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) RecipientExists(_ context.Context, userID, recipientID int64) (bool, error) {
	for _, r := range m.recipients {
		if r.ID == recipientID && r.ActorID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) MarkAllRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	var n int64
	for i := range m.recipients {
		r := &m.recipients[i]
		if r.ActorID == userID && r.ReadAt == nil {
			stamp := at
			r.ReadAt = &stamp
			n++
		}
	}
	return n, nil
}

type countingRecorder struct {
	calls map[string]int
}

func (c *countingRecorder) NotificationDispatched(ntype string, recipients int) {
	c.calls[ntype] += recipients
}

func TestDispatchRequiredRecipientMissing(t *testing.T) {
	store := newMemStore(map[int64]int64{})
	d := NewDispatcher(nil)

	_, err := d.Dispatch(context.Background(), store, Dispatch{
		Type:                 TypePlanConfirmRequested,
		RecipientEmployeeIDs: []int64{7},
		Required:             true,
	})
	if !errors.Is(err, apperr.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if len(store.notifications) != 0 {
		t.Fatal("expected no notification row")
	}
}

func TestDispatchOptionalRecipientMissingIsSkipped(t *testing.T) {
	store := newMemStore(map[int64]int64{})
	d := NewDispatcher(nil)

	res, err := d.Dispatch(context.Background(), store, Dispatch{
		Type:                 TypePlanConfirmed,
		RecipientEmployeeIDs: []int64{7},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected skip")
	}
}

func TestDispatchDedupe(t *testing.T) {
	store := newMemStore(map[int64]int64{7: 70, 8: 80})
	rec := &countingRecorder{calls: map[string]int{}}
	d := NewDispatcher(rec)
	in := Dispatch{
		Type:                 TypePlanConfirmRequested,
		PlanID:               3,
		DedupeKey:            "plan-event:11",
		RecipientEmployeeIDs: []int64{7, 7, 8},
		ActionRequired:       true,
	}

	first, err := d.Dispatch(context.Background(), store, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Recipients != 2 {
		t.Fatalf("expected 2 recipients, got %d", first.Recipients)
	}
	second, err := d.Dispatch(context.Background(), store, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Duplicate || second.NotificationID != first.NotificationID {
		t.Fatalf("expected duplicate of %d, got %+v", first.NotificationID, second)
	}
	if len(store.recipients) != 2 {
		t.Fatalf("expected 2 recipient rows, got %d", len(store.recipients))
	}
	if store.notifications[0].Title != defaultTitles[TypePlanConfirmRequested] {
		t.Fatalf("unexpected title %q", store.notifications[0].Title)
	}
	if rec.calls[TypePlanConfirmRequested] != 2 {
		t.Fatalf("expected recorder to see 2 deliveries, got %d", rec.calls[TypePlanConfirmRequested])
	}
	for _, r := range store.recipients {
		if r.ActionStatus != ActionOpen {
			t.Fatalf("expected OPEN action, got %s", r.ActionStatus)
		}
	}

	if err := d.CompleteActions(context.Background(), store, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range store.recipients {
		if r.ActionStatus != ActionDone {
			t.Fatalf("expected DONE action, got %s", r.ActionStatus)
		}
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	store := newMemStore(map[int64]int64{7: 70})
	d := NewDispatcher(nil)
	if _, err := d.Dispatch(context.Background(), store, Dispatch{Type: TypePlanConfirmed, RecipientEmployeeIDs: []int64{7}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recipientID := store.recipients[0].ID

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := New(store).WithClock(func() time.Time { return first })
	if err := svc.MarkRead(context.Background(), 70, recipientID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.WithClock(func() time.Time { return first.Add(time.Hour) })
	if err := svc.MarkRead(context.Background(), 70, recipientID); err != nil {
		t.Fatalf("second mark read should succeed: %v", err)
	}
	if got := *store.recipients[0].ReadAt; !got.Equal(first) {
		t.Fatalf("expected read_at to stay %v, got %v", first, got)
	}

	if err := svc.MarkRead(context.Background(), 99, recipientID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for another user, got %v", err)
	}
}

func TestListAndCounts(t *testing.T) {
	store := newMemStore(map[int64]int64{7: 70})
	d := NewDispatcher(nil)
	for i := 0; i < 3; i++ {
		if _, err := d.Dispatch(context.Background(), store, Dispatch{Type: TypePlanRejected, RecipientEmployeeIDs: []int64{7}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	svc := New(store)

	items, total, err := svc.List(context.Background(), 70, false, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || total != 3 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}

	if err := svc.MarkRead(context.Background(), 70, items[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unread, err := svc.UnreadCount(context.Background(), 70)
	if err != nil || unread != 2 {
		t.Fatalf("expected 2 unread, got %d (%v)", unread, err)
	}
	n, err := svc.MarkAllRead(context.Background(), 70)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked, got %d (%v)", n, err)
	}

	if _, _, err := svc.List(context.Background(), 0, false, 10, 0); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
