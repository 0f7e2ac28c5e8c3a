package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

func TestConcurrentClaimsAdmitExactlyTwo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.addUser(t, "creator")
	ticket, err := env.tickets.CreateTicket(ctx, creator, "move the couch")
	if err != nil {
		t.Fatalf("CreateTicket() error: %v", err)
	}

	const claimants = 12
	ids := make([]string, claimants)
	for i := range ids {
		ids[i] = env.addUser(t, fmt.Sprintf("claimant-%02d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		full      int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.tickets.ClaimTicket(ctx, ticket.ID, id, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyFull):
				full++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if succeeded != 2 || full != claimants-2 {
		t.Fatalf("succeeded = %d, full = %d, want 2 and %d", succeeded, full, claimants-2)
	}
	got := env.ticket(t, ticket.ID)
	if got.ClaimCount != 2 || len(got.Claimants) != 2 {
		t.Errorf("ticket = %+v, want two claimants", got)
	}
	env.assertConsistent(t)
}

func TestRandomClaimSequencesKeepInvariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	users := make([]string, 5)
	for i := range users {
		users[i] = env.addUser(t, fmt.Sprintf("u%d", i))
	}
	tickets := make([]string, 4)
	for i := range tickets {
		ticket, err := env.tickets.CreateTicket(ctx, users[i%len(users)], fmt.Sprintf("task %d", i))
		if err != nil {
			t.Fatalf("CreateTicket() error: %v", err)
		}
		tickets[i] = ticket.ID
	}

	for step := 0; step < 200; step++ {
		ticketID := tickets[rng.Intn(len(tickets))]
		actor := users[rng.Intn(len(users))]
		ticket := env.ticket(t, ticketID)

		var err error
		switch rng.Intn(4) {
		case 0, 1:
			_, err = env.tickets.ClaimTicket(ctx, ticketID, actor, "")
		case 2:
			if len(ticket.Claimants) > 0 {
				actor = ticket.Claimants[rng.Intn(len(ticket.Claimants))]
			}
			_, err = env.tickets.SubmitCompletion(ctx, ticketID, actor)
		case 3:
			_, err = env.tickets.VerifyCompletion(ctx, ticketID, ticket.CreatedBy, rng.Intn(3) > 0)
		}
		if err != nil && !isPreconditionError(err) {
			t.Fatalf("step %d: unexpected error %v", step, err)
		}
		env.assertConsistent(t)
	}
}

func isPreconditionError(err error) bool {
	for _, target := range []error{
		ErrAlreadyFull, ErrAlreadyClaimed, ErrNotClaimant, ErrNotCreator,
		ErrCompletionPending, ErrAlreadyVerified, ErrNoPendingRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestConcurrentCrossRequestsLeaveOnePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.addUser(t, "a"), env.addUser(t, "b")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]string{{a, b}, {b, a}} {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			errs[i] = env.friends.SendRequest(ctx, from, to)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyPending):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d requests succeeded, want exactly 1", ok)
	}
	userA, userB := env.user(t, a), env.user(t, b)
	pending := len(userA.FriendRequestsSent) + len(userB.FriendRequestsSent)
	if pending != 1 {
		t.Errorf("pending requests = %d, want 1", pending)
	}
}
