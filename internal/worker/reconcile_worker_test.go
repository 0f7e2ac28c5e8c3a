package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/repository"
)

func TestAuditCleanSnapshot(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: "t1", CreatedBy: "a", ClaimCount: 2, Claimants: []string{"b", "c"}, PendingVerification: true},
		{ID: "t2", CreatedBy: "a", ClaimCount: 2, Claimants: []string{"b"}, Verified: true},
	}
	users := []domain.User{
		{ID: "a", Friends: []string{"b"}},
		{ID: "b", Friends: []string{"a"}, TasksTaken: []string{"t1", "t2"}, FriendRequestsSent: []string{"c"}},
		{ID: "c", TasksTaken: []string{"t1"}, FriendRequestsReceived: []string{"b"}},
	}

	report := Audit(tickets, users)
	if len(report.Violations) != 0 {
		t.Fatalf("Audit() violations = %+v, want none", report.Violations)
	}
	if report.Tickets != 2 || report.Users != 3 {
		t.Errorf("report counts = %d/%d", report.Tickets, report.Users)
	}
}

func TestAuditFindsViolations(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: "t1", ClaimCount: 2, Claimants: []string{"b"}},
		{ID: "t2", ClaimCount: 0, PendingVerification: true},
	}
	users := []domain.User{
		{ID: "a", Friends: []string{"b"}, TasksTaken: []string{"t2"}},
		{ID: "b"},
	}

	kinds := map[string]int{}
	for _, v := range Audit(tickets, users).Violations {
		kinds[v.Kind]++
	}
	for _, want := range []string{
		"claim_count_mismatch",
		"pending_without_claimant",
		"orphan_task",
		"missing_task",
		"asymmetric_friendship",
	} {
		if kinds[want] == 0 {
			t.Errorf("Audit() did not report %s, got %v", want, kinds)
		}
	}
}

func TestReconcileWorkerRunsAgainstStore(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "audit.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("bolt.Open() error: %v", err)
	}
	store, err := repository.NewBoltStore(db)
	if err != nil {
		t.Fatalf("NewBoltStore() error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Users().Create(ctx, &domain.User{ID: "a", Email: "a@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	w, err := NewReconcileWorker(store, "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewReconcileWorker() error: %v", err)
	}
	w.Start()
	defer w.Stop(ctx)

	report, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Users != 1 || len(report.Violations) != 0 {
		t.Errorf("Run() = %+v", report)
	}

	for _, schedule := range []string{"not a schedule", "0 */10 * * * *"} {
		if _, err := NewReconcileWorker(store, schedule, nil); err == nil {
			t.Errorf("NewReconcileWorker(%q) accepted an invalid schedule", schedule)
		}
	}
	for _, schedule := range []string{"*/10 * * * *", "@hourly", "@every 10m"} {
		if _, err := NewReconcileWorker(store, schedule, nil); err != nil {
			t.Errorf("NewReconcileWorker(%q) error: %v", schedule, err)
		}
	}
	disabled, err := NewReconcileWorker(store, "", nil)
	if err != nil {
		t.Fatalf("NewReconcileWorker(\"\") error: %v", err)
	}
	disabled.Start()
	disabled.Stop(ctx)
}
