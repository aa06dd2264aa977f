package authsession

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ProfileUpdate carries the fields a user may change about themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FullName    *string        `json:"full_name,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	AvatarURL   *string        `json:"avatar_url,omitempty"`
	Timezone    *string        `json:"timezone,omitempty"`
	Language    *string        `json:"language,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// IsEmpty reports whether the update carries no changes
func (p ProfileUpdate) IsEmpty() bool {
	return p.FullName == nil &&
		p.Phone == nil &&
		p.AvatarURL == nil &&
		p.Timezone == nil &&
		p.Language == nil &&
		len(p.Preferences) == 0
}

// Validate checks the update shape. Backends may apply stricter rules.
func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&p.Phone, validation.Length(0, 32)),
		validation.Field(&p.AvatarURL, is.URL),
		validation.Field(&p.Timezone, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&p.Language, validation.NilOrNotEmpty, validation.Length(2, 16)),
	)
}

// Apply merges the update into a copy of user
func (p ProfileUpdate) Apply(user *User) *User {
	u := user.Clone()
	if u == nil {
		return nil
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Timezone != nil {
		u.Timezone = *p.Timezone
	}
	if p.Language != nil {
		u.Language = *p.Language
	}
	for k, v := range p.Preferences {
		u.SetPreference(k, cloneValue(v))
	}
	return u
}

// mergeAccepted copies the profile fields a backend accepted into current.
// Identity fields (id, email, role, activity) stay as they were.
func mergeAccepted(current, accepted *User) *User {
	u := current.Clone()
	u.FullName = accepted.FullName
	u.Phone = accepted.Phone
	u.AvatarURL = accepted.AvatarURL
	if accepted.Timezone != "" {
		u.Timezone = accepted.Timezone
	}
	if accepted.Language != "" {
		u.Language = accepted.Language
	}
	if accepted.Preferences != nil {
		u.Preferences = cloneMap(accepted.Preferences)
	}
	if !accepted.UpdatedAt.IsZero() {
		u.UpdatedAt = accepted.UpdatedAt
	}
	return u
}

// StringPtr is a helper to build ProfileUpdate values
func StringPtr(s string) *string {
	return &s
}
