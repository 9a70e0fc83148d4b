package users

import (
	"strings"
	"time"
)

// FallbackFirstName greets users whose profile carries no display name.
const FallbackFirstName = "User"

// User is the signed-in identity as last reported by the identity provider.
type User struct {
	ID          string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PictureURL  string    `json:"picture"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FirstName is the first word of the display name, or FallbackFirstName.
func (u User) FirstName() string {
	return FirstName(u.DisplayName)
}

// FirstName returns the first whitespace separated word of displayName.
func FirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return FallbackFirstName
	}
	return fields[0]
}
