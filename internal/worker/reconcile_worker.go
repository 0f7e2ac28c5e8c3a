package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/repository"
)

// Violation is one broken consistency rule found by the audit.
type Violation struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Report summarizes an audit run.
type Report struct {
	Tickets    int         `json:"tickets"`
	Users      int         `json:"users"`
	Violations []Violation `json:"violations"`
}

// ReconcileWorker periodically audits the store for claim and friendship
// inconsistencies. It only reports; it never repairs.
type ReconcileWorker struct {
	store   repository.Store
	logger  *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewReconcileWorker schedules the audit. An empty schedule yields a worker
// whose Start and Stop do nothing.
func NewReconcileWorker(store repository.Store, schedule string, logger *zap.Logger) (*ReconcileWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ReconcileWorker{store: store, logger: logger, timeout: time.Minute}
	if schedule == "" {
		return w, nil
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(schedule, w.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start launches the cron scheduler.
func (w *ReconcileWorker) Start() {
	if w == nil || w.cron == nil {
		return
	}
	w.cron.Start()
	w.logger.Info("reconcile worker started")
}

// Stop gracefully stops the scheduler.
func (w *ReconcileWorker) Stop(ctx context.Context) {
	if w == nil || w.cron == nil {
		return
	}
	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	w.logger.Info("reconcile worker stopped")
}

func (w *ReconcileWorker) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	report, err := w.Run(ctx)
	if err != nil {
		w.logger.Error("reconcile failed", zap.Error(err))
		return
	}
	if len(report.Violations) == 0 {
		w.logger.Info("reconcile clean", zap.Int("tickets", report.Tickets), zap.Int("users", report.Users))
		return
	}
	for _, v := range report.Violations {
		w.logger.Warn("consistency violation",
			zap.String("kind", v.Kind),
			zap.String("subject", v.Subject),
			zap.String("detail", v.Detail))
	}
}

// Run performs one audit. Tickets and users are read in separate snapshots, so
// a mutation committed in between can show up as a transient violation.
func (w *ReconcileWorker) Run(ctx context.Context) (Report, error) {
	tickets, err := w.store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("list tickets: %w", err)
	}
	users, err := w.store.Users().List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	return Audit(tickets, users), nil
}

// Audit checks the claim, verification and friendship rules over a snapshot.
func Audit(tickets []domain.Ticket, users []domain.User) Report {
	report := Report{Tickets: len(tickets), Users: len(users), Violations: []Violation{}}
	add := func(kind, subject, format string, args ...any) {
		report.Violations = append(report.Violations, Violation{
			Kind:    kind,
			Subject: subject,
			Detail:  fmt.Sprintf(format, args...),
		})
	}

	claimed := map[string]map[string]bool{}
	for _, t := range tickets {
		if t.ClaimCount < 0 || t.ClaimCount > domain.MaxClaimants {
			add("claim_count_range", t.ID, "claim count %d", t.ClaimCount)
		}
		if !t.Verified && t.ClaimCount != len(t.Claimants) {
			add("claim_count_mismatch", t.ID, "claim count %d with %d claimants", t.ClaimCount, len(t.Claimants))
		}
		if t.PendingVerification && t.ClaimCount < 1 {
			add("pending_without_claimant", t.ID, "pending verification with claim count %d", t.ClaimCount)
		}
		seen := map[string]bool{}
		for _, c := range t.Claimants {
			if seen[c] {
				add("duplicate_claimant", t.ID, "user %s listed twice", c)
			}
			seen[c] = true
			if claimed[c] == nil {
				claimed[c] = map[string]bool{}
			}
			claimed[c][t.ID] = true
		}
	}

	byID := make(map[string]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for _, u := range users {
		taken := map[string]bool{}
		for _, id := range u.TasksTaken {
			taken[id] = true
			if !claimed[u.ID][id] {
				add("orphan_task", u.ID, "tasksTaken lists %s but user is not a claimant", id)
			}
		}
		for _, id := range sortedKeys(claimed[u.ID]) {
			if !taken[id] {
				add("missing_task", u.ID, "claimant of %s but tasksTaken does not list it", id)
			}
		}

		for _, f := range u.Friends {
			other, ok := byID[f]
			if !ok || !other.IsFriend(u.ID) {
				add("asymmetric_friendship", u.ID, "friend %s does not list the user back", f)
			}
			if u.HasSentRequestTo(f) || u.HasRequestFrom(f) {
				add("pending_between_friends", u.ID, "pending request with friend %s", f)
			}
		}
		for _, r := range u.FriendRequestsSent {
			other, ok := byID[r]
			if !ok || !other.HasRequestFrom(u.ID) {
				add("dangling_request", u.ID, "sent request to %s not received", r)
			}
			if u.HasRequestFrom(r) {
				add("bidirectional_request", u.ID, "requests pending in both directions with %s", r)
			}
		}
		for _, r := range u.FriendRequestsReceived {
			other, ok := byID[r]
			if !ok || !other.HasSentRequestTo(u.ID) {
				add("dangling_request", u.ID, "received request from %s not sent", r)
			}
		}
	}

	// Claimants that have no user record at all.
	for _, id := range sortedKeys(claimedUsers(claimed)) {
		if _, ok := byID[id]; !ok {
			add("unknown_claimant", id, "claims %d tickets but has no user record", len(claimed[id]))
		}
	}
	return report
}

func claimedUsers(claimed map[string]map[string]bool) map[string]bool {
	out := make(map[string]bool, len(claimed))
	for id := range claimed {
		out[id] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
