package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/spec-kit/taskboard/internal/domain"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "store.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("bolt.Open() error: %v", err)
	}
	store, err := NewBoltStore(db)
	if err != nil {
		t.Fatalf("NewBoltStore() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createUser(t *testing.T, store *BoltStore, id, email string) *domain.User {
	t.Helper()
	user := &domain.User{ID: id, Email: email, PasswordHash: "hash"}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create(%s) error: %v", email, err)
	}
	return user
}

func TestBoltUsersCreateAndLookup(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	createUser(t, store, "u1", "ada@example.com")
	if err := store.Users().Create(ctx, &domain.User{ID: "u2", Email: "ADA@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate Create() error = %v, want ErrDuplicateEmail", err)
	}

	got, err := store.Users().GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error: %v", err)
	}
	if got.ID != "u1" || got.Version != 1 {
		t.Errorf("GetByEmail() = %+v, want id u1 version 1", got)
	}
	if got.TasksTaken == nil || got.Friends == nil {
		t.Errorf("lists should be empty, not nil: %+v", got)
	}

	if _, err := store.Users().GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBoltTxRollsBackOnError(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()
	createUser(t, store, "u1", "ada@example.com")

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		ticket := &domain.Ticket{ID: "t1", Task: "write docs", CreatedBy: "u1"}
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		users, err := tx.LockUsers(ctx, "u1")
		if err != nil {
			return err
		}
		users["u1"].AddTask("t1")
		if err := tx.SaveUser(ctx, users["u1"]); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	if _, err := store.Tickets().GetByID(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ticket survived rollback: err = %v", err)
	}
	user, _ := store.Users().GetByID(ctx, "u1")
	if len(user.TasksTaken) != 0 {
		t.Errorf("TasksTaken = %v after rollback, want empty", user.TasksTaken)
	}
}

func TestBoltSaveRejectsStaleVersion(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()
	createUser(t, store, "u1", "ada@example.com")

	if err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateTicket(ctx, &domain.Ticket{ID: "t1", Task: "write docs", CreatedBy: "u1"})
	}); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	stale, err := store.Tickets().GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}

	if err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		ticket, err := tx.LockTicket(ctx, "t1")
		if err != nil {
			return err
		}
		ticket.AddClaimant("u1")
		return tx.SaveTicket(ctx, ticket)
	}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		stale.PendingVerification = true
		return tx.SaveTicket(ctx, stale)
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale save error = %v, want ErrVersionConflict", err)
	}
}

func TestBoltSaveUserKeepsCredentials(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()
	createUser(t, store, "u1", "ada@example.com")

	if err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		users, err := tx.LockUsers(ctx, "u1")
		if err != nil {
			return err
		}
		users["u1"].PasswordHash = ""
		users["u1"].AddFriend("u2")
		return tx.SaveUser(ctx, users["u1"])
	}); err != nil {
		t.Fatalf("WithinTx() error: %v", err)
	}

	got, _ := store.Users().GetByID(ctx, "u1")
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want preserved", got.PasswordHash)
	}
	if got.Version != 2 || !got.IsFriend("u2") {
		t.Errorf("user = %+v, want version 2 with friend u2", got)
	}
}

func TestBoltLockUsersReportsMissing(t *testing.T) {
	store := newTestBoltStore(t)
	createUser(t, store, "u1", "ada@example.com")

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockUsers(ctx, "u1", "ghost")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("LockUsers() error = %v, want ErrNotFound", err)
	}
}

func TestBoltTicketListFilters(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()
	createUser(t, store, "u1", "ada@example.com")
	createUser(t, store, "u2", "bob@example.com")

	seed := []domain.Ticket{
		{ID: "open", Task: "a", CreatedBy: "u1"},
		{ID: "partial", Task: "b", CreatedBy: "u1", ClaimCount: 1, Claimants: []string{"u2"}},
		{ID: "full", Task: "c", CreatedBy: "u2", ClaimCount: 2, Claimants: []string{"u1", "u2"}},
	}
	for i := range seed {
		ticket := seed[i]
		if err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.CreateTicket(ctx, &ticket)
		}); err != nil {
			t.Fatalf("seed %s: %v", ticket.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter TicketFilter
		want   []string
	}{
		{name: "claimable", filter: TicketFilter{Claimable: true}, want: []string{"open", "partial"}},
		{name: "created by u1", filter: TicketFilter{CreatedBy: "u1"}, want: []string{"open", "partial"}},
		{name: "participant u2", filter: TicketFilter{Participant: "u2"}, want: []string{"full", "partial"}},
		{name: "ids", filter: TicketFilter{IDs: []string{"full"}}, want: []string{"full"}},
		{name: "empty ids", filter: TicketFilter{IDs: []string{}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Tickets().List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			ids := map[string]bool{}
			for _, ticket := range got {
				ids[ticket.ID] = true
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("List() = %v, want %v", ids, tt.want)
			}
			for _, id := range tt.want {
				if !ids[id] {
					t.Errorf("List() missing %s, got %v", id, ids)
				}
			}
		})
	}
}

func TestBoltHistoryIsScopedToTicket(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	if err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, entry := range []*domain.TicketHistory{
			{ID: "h1", TicketID: "t1", ActorID: "u1", ChangeType: domain.ChangeTypeCreated},
			{ID: "h2", TicketID: "t10", ActorID: "u1", ChangeType: domain.ChangeTypeCreated},
			{ID: "h3", TicketID: "t1", ActorID: "u2", ChangeType: domain.ChangeTypeClaimed},
		} {
			if err := tx.AppendHistory(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	entries, err := store.History().ListByTicket(ctx, "t1")
	if err != nil {
		t.Fatalf("ListByTicket() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListByTicket() returned %d entries, want 2", len(entries))
	}
	if entries[0].ChangeType != domain.ChangeTypeCreated || entries[1].ChangeType != domain.ChangeTypeClaimed {
		t.Errorf("entries out of order: %+v", entries)
	}
}
