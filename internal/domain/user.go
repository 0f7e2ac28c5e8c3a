package domain

import "time"

// User is an account holder together with its social-graph edges and the
// tickets it has claimed. Each list belongs to this record only; the engines
// keep the mirrored entries on other users consistent.
type User struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"password_hash"`
	Name                   string    `json:"name,omitempty"`
	TasksTaken             []string  `json:"tasks_taken"`
	Friends                []string  `json:"friends"`
	FriendRequestsSent     []string  `json:"friend_requests_sent"`
	FriendRequestsReceived []string  `json:"friend_requests_received"`
	Version                int64     `json:"version"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// IsFriend reports whether other is an accepted friend.
func (u *User) IsFriend(other string) bool {
	return containsID(u.Friends, other)
}

// HasSentRequestTo reports an outstanding request from u to other.
func (u *User) HasSentRequestTo(other string) bool {
	return containsID(u.FriendRequestsSent, other)
}

// HasRequestFrom reports an outstanding request from other to u.
func (u *User) HasRequestFrom(other string) bool {
	return containsID(u.FriendRequestsReceived, other)
}

// HasTask reports whether ticketID is in the user's taken list.
func (u *User) HasTask(ticketID string) bool {
	return containsID(u.TasksTaken, ticketID)
}

// AddTask appends ticketID to the taken list. It is a no-op when already present.
func (u *User) AddTask(ticketID string) {
	u.TasksTaken = appendUnique(u.TasksTaken, ticketID)
}

// RemoveTask drops ticketID from the taken list.
func (u *User) RemoveTask(ticketID string) {
	u.TasksTaken = removeID(u.TasksTaken, ticketID)
}

// AddFriend records an accepted friendship edge on this side.
func (u *User) AddFriend(other string) {
	u.Friends = appendUnique(u.Friends, other)
}

// AddSentRequest records an outgoing pending request.
func (u *User) AddSentRequest(other string) {
	u.FriendRequestsSent = appendUnique(u.FriendRequestsSent, other)
}

// AddReceivedRequest records an incoming pending request.
func (u *User) AddReceivedRequest(other string) {
	u.FriendRequestsReceived = appendUnique(u.FriendRequestsReceived, other)
}

// ClearPendingWith removes pending entries with other in both directions.
func (u *User) ClearPendingWith(other string) {
	u.FriendRequestsSent = removeID(u.FriendRequestsSent, other)
	u.FriendRequestsReceived = removeID(u.FriendRequestsReceived, other)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
