package dto

import (
	"time"

	"github.com/spec-kit/taskboard/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserSummary is the public view of another user.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserProfile is the caller's own record including the social graph.
type UserProfile struct {
	UserSummary
	TasksTaken             []string  `json:"tasks_taken"`
	Friends                []string  `json:"friends"`
	FriendRequestsSent     []string  `json:"friend_requests_sent"`
	FriendRequestsReceived []string  `json:"friend_requests_received"`
	CreatedAt              time.Time `json:"created_at"`
}

// NewUserSummary maps a domain user.
func NewUserSummary(u *domain.User) UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// NewUserSummaries maps a slice of users.
func NewUserSummaries(users []domain.User) []UserSummary {
	resp := make([]UserSummary, 0, len(users))
	for i := range users {
		resp = append(resp, NewUserSummary(&users[i]))
	}
	return resp
}

// NewUserProfile maps the caller's record.
func NewUserProfile(u *domain.User) UserProfile {
	return UserProfile{
		UserSummary:            NewUserSummary(u),
		TasksTaken:             nonNil(u.TasksTaken),
		Friends:                nonNil(u.Friends),
		FriendRequestsSent:     nonNil(u.FriendRequestsSent),
		FriendRequestsReceived: nonNil(u.FriendRequestsReceived),
		CreatedAt:              u.CreatedAt,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
