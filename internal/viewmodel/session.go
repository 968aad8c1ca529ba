package viewmodel

import (
	"slices"
	"strings"
	"time"

	"coinstock/backend/internal/domain"
)

// Session is the signed-in user plus the user directory shown in pickers.
// It is only changed through Reduce.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.UserSummary
	Users     []domain.UserSummary
}

type Event interface {
	sessionEvent()
}

type LoginSucceeded struct {
	Response domain.LoginResponse
}

type LoggedOut struct{}

type UsersRefreshed struct {
	Users []domain.UserSummary
}

func (LoginSucceeded) sessionEvent() {}
func (LoggedOut) sessionEvent()      {}
func (UsersRefreshed) sessionEvent() {}

// Reduce returns the next session. The input session is never modified.
func Reduce(s Session, e Event) Session {
	switch ev := e.(type) {
	case LoginSucceeded:
		user := ev.Response.User
		if user.Role == "" {
			user.Role = ev.Response.Role
		}
		// An unreadable expiry leaves ExpiresAt zero, which Authenticated
		// treats as expired.
		expires, err := time.Parse(time.RFC3339, ev.Response.ExpiresAt)
		if err != nil {
			expires = time.Time{}
		}
		return Session{
			Token:     ev.Response.AccessToken,
			ExpiresAt: expires,
			User:      &user,
			Users:     slices.Clone(s.Users),
		}
	case LoggedOut:
		return Session{}
	case UsersRefreshed:
		users := slices.Clone(ev.Users)
		slices.SortStableFunc(users, func(a, b domain.UserSummary) int {
			return strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName))
		})
		next := s
		next.Users = users
		if s.User != nil {
			current := *s.User
			if idx := slices.IndexFunc(users, func(u domain.UserSummary) bool { return u.ID == current.ID }); idx >= 0 {
				current = users[idx]
			}
			next.User = &current
		}
		return next
	default:
		return s
	}
}

func (s Session) Authenticated(now time.Time) bool {
	if s.User == nil || s.Token == "" {
		return false
	}
	return !s.ExpiresAt.IsZero() && now.Before(s.ExpiresAt)
}

func (s Session) IsAdmin() bool {
	return s.User != nil && s.User.Role == domain.RoleAdmin
}

// DisplayName resolves a user id against the directory, for ledger rows
// whose join came back empty.
func (s Session) DisplayName(userID string) string {
	for _, u := range s.Users {
		if u.ID == userID {
			return u.FullName
		}
	}
	return ""
}
