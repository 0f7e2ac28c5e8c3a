package service

import (
	"context"
	"errors"
	"testing"
)

func TestFriendRequestApproveIsSymmetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.addUser(t, "a"), env.addUser(t, "b")

	if err := env.friends.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest() error: %v", err)
	}
	if !env.user(t, a).HasSentRequestTo(b) || !env.user(t, b).HasRequestFrom(a) {
		t.Fatal("pending request not recorded on both sides")
	}

	received, err := env.friends.ListReceivedRequests(ctx, b)
	if err != nil || len(received) != 1 || received[0].ID != a {
		t.Errorf("ListReceivedRequests(b) = %+v, %v", received, err)
	}
	sent, err := env.friends.ListSentRequests(ctx, a)
	if err != nil || len(sent) != 1 || sent[0].ID != b {
		t.Errorf("ListSentRequests(a) = %+v, %v", sent, err)
	}

	if err := env.friends.ApproveRequest(ctx, b, a); err != nil {
		t.Fatalf("ApproveRequest() error: %v", err)
	}

	userA, userB := env.user(t, a), env.user(t, b)
	if !userA.IsFriend(b) || !userB.IsFriend(a) {
		t.Error("friendship is not symmetric")
	}
	if len(userA.FriendRequestsSent) != 0 || len(userB.FriendRequestsReceived) != 0 {
		t.Errorf("pending entries survived approval: a=%v b=%v", userA.FriendRequestsSent, userB.FriendRequestsReceived)
	}

	friends, err := env.friends.ListFriends(ctx, a)
	if err != nil || len(friends) != 1 || friends[0].ID != b {
		t.Errorf("ListFriends(a) = %+v, %v", friends, err)
	}

	if err := env.friends.SendRequest(ctx, b, a); !errors.Is(err, ErrAlreadyFriends) {
		t.Errorf("request between friends error = %v, want ErrAlreadyFriends", err)
	}
	if err := env.friends.ApproveRequest(ctx, b, a); !errors.Is(err, ErrNoSuchRequest) {
		t.Errorf("second approve error = %v, want ErrNoSuchRequest", err)
	}
}

func TestFriendRequestReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.addUser(t, "a"), env.addUser(t, "b")

	if err := env.friends.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest() error: %v", err)
	}
	if err := env.friends.RejectRequest(ctx, b, a); err != nil {
		t.Fatalf("RejectRequest() error: %v", err)
	}

	userA, userB := env.user(t, a), env.user(t, b)
	if userA.IsFriend(b) || userB.IsFriend(a) {
		t.Error("rejection created a friendship")
	}
	if len(userA.FriendRequestsSent) != 0 || len(userB.FriendRequestsReceived) != 0 {
		t.Error("rejection left pending entries")
	}

	if err := env.friends.SendRequest(ctx, a, b); err != nil {
		t.Errorf("request after rejection error = %v, want nil", err)
	}
}

func TestFriendRequestPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := env.addUser(t, "a"), env.addUser(t, "b")

	err := env.friends.SendRequest(ctx, a, a)
	if !errors.Is(err, ErrSelfRequest) {
		t.Errorf("self request error = %v, want ErrSelfRequest", err)
	}
	assertCode(t, env.friends.SendRequest(ctx, a, "ghost"), "NOT_FOUND")

	if err := env.friends.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest() error: %v", err)
	}
	if err := env.friends.SendRequest(ctx, a, b); !errors.Is(err, ErrAlreadyPending) {
		t.Errorf("duplicate request error = %v, want ErrAlreadyPending", err)
	}
	if err := env.friends.SendRequest(ctx, b, a); !errors.Is(err, ErrAlreadyPending) {
		t.Errorf("reverse request error = %v, want ErrAlreadyPending", err)
	}

	// Only the recipient can resolve a request.
	if err := env.friends.ApproveRequest(ctx, a, b); !errors.Is(err, ErrNoSuchRequest) {
		t.Errorf("approve by sender error = %v, want ErrNoSuchRequest", err)
	}
	if err := env.friends.RejectRequest(ctx, b, "ghost"); !errors.Is(err, ErrNoSuchRequest) {
		t.Errorf("reject from unknown user error = %v, want ErrNoSuchRequest", err)
	}
	if _, err := env.friends.ListFriends(ctx, "ghost"); err == nil {
		t.Error("ListFriends(ghost) succeeded")
	}
}
