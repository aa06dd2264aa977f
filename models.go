package authsession

import (
	"strings"
	"time"

	"github.com/mitchellh/copystructure"
)

const (
	// DefaultTimezone is assigned when an identity carries no timezone.
	DefaultTimezone = "UTC"
	// DefaultLanguage is assigned when an identity carries no language.
	DefaultLanguage = "en"
)

// User is the authenticated identity tracked by the Manager
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	FullName    string         `json:"full_name"`
	Phone       string         `json:"phone,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Role        Role           `json:"role"`
	IsActive    bool           `json:"is_active"`
	Timezone    string         `json:"timezone"`
	Language    string         `json:"language"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the user. Nested maps and slices inside
// preferences are copied as well so the clone never aliases the original.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Preferences = cloneMap(u.Preferences)
	return &c
}

// SetPreference will add a preference value, allocating the map if needed
func (u *User) SetPreference(key string, val any) *User {
	if u.Preferences == nil {
		u.Preferences = make(map[string]any)
	}
	u.Preferences[key] = val
	return u
}

// normalizeIdentity builds the canonical User from a collaborator identity.
// The email is lower-cased, falling back to the identifier used to sign in,
// and locale preferences are defaulted when absent.
func normalizeIdentity(identity *User, fallbackEmail string) *User {
	if identity == nil {
		return nil
	}
	u := identity.Clone()
	u.Email = strings.ToLower(u.Email)
	if u.Email == "" {
		u.Email = strings.ToLower(fallbackEmail)
	}
	if u.Timezone == "" {
		u.Timezone = DefaultTimezone
	}
	if u.Language == "" {
		u.Language = DefaultLanguage
	}
	return u
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep copies v. Values copystructure cannot walk are kept as is.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	c, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return c
}
