package authsession

import (
	"testing"
)

func TestUserCloneCopiesNestedPreferences(t *testing.T) {
	u := &User{ID: "u1"}
	u.SetPreference("notifications", map[string]any{"email": true})
	u.SetPreference("tags", []any{"vip"})

	c := u.Clone()
	c.Preferences["notifications"].(map[string]any)["email"] = false
	c.Preferences["tags"].([]any)[0] = "regular"

	if u.Preferences["notifications"].(map[string]any)["email"] != true {
		t.Fatalf("clone aliases nested map")
	}
	if u.Preferences["tags"].([]any)[0] != "vip" {
		t.Fatalf("clone aliases nested slice")
	}
}

func TestUserCloneCopiesTypedPreferences(t *testing.T) {
	limit := 3
	u := &User{ID: "u1"}
	u.SetPreference("labels", map[string]string{"floor": "2"})
	u.SetPreference("rooms", []int{101, 102})
	u.SetPreference("limit", &limit)
	u.SetPreference("nested", map[string]any{"codes": map[string][]string{"a": {"x"}}})

	c := u.Clone()
	c.Preferences["labels"].(map[string]string)["floor"] = "9"
	c.Preferences["rooms"].([]int)[0] = 999
	*c.Preferences["limit"].(*int) = 10
	c.Preferences["nested"].(map[string]any)["codes"].(map[string][]string)["a"][0] = "y"

	if got := u.Preferences["labels"].(map[string]string)["floor"]; got != "2" {
		t.Fatalf("clone aliases typed map, got %q", got)
	}
	if got := u.Preferences["rooms"].([]int)[0]; got != 101 {
		t.Fatalf("clone aliases typed slice, got %d", got)
	}
	if limit != 3 {
		t.Fatalf("clone aliases pointer, got %d", limit)
	}
	if got := u.Preferences["nested"].(map[string]any)["codes"].(map[string][]string)["a"][0]; got != "x" {
		t.Fatalf("clone aliases nested typed value, got %q", got)
	}
}

func TestProfileUpdateApplyDoesNotShareCallerValues(t *testing.T) {
	labels := map[string]string{"floor": "2"}
	update := ProfileUpdate{Preferences: map[string]any{"labels": labels}}

	u := update.Apply(&User{ID: "u1"})
	labels["floor"] = "9"

	if got := u.Preferences["labels"].(map[string]string)["floor"]; got != "2" {
		t.Fatalf("applied preferences alias caller map, got %q", got)
	}
}

func TestUserCloneNil(t *testing.T) {
	var u *User
	if u.Clone() != nil {
		t.Fatalf("expected nil clone")
	}
}

func TestNormalizeIdentityDefaults(t *testing.T) {
	cases := []struct {
		name     string
		identity *User
		fallback string
		email    string
		timezone string
		language string
	}{
		{
			name:     "lowercases email",
			identity: &User{Email: "Owner@Hotel.COM"},
			email:    "owner@hotel.com",
			timezone: DefaultTimezone,
			language: DefaultLanguage,
		},
		{
			name:     "falls back to identifier",
			identity: &User{},
			fallback: "Staff@Hotel.com",
			email:    "staff@hotel.com",
			timezone: DefaultTimezone,
			language: DefaultLanguage,
		},
		{
			name:     "keeps locale",
			identity: &User{Email: "a@b.co", Timezone: "Europe/Madrid", Language: "es"},
			email:    "a@b.co",
			timezone: "Europe/Madrid",
			language: "es",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeIdentity(tc.identity, tc.fallback)
			if got == tc.identity {
				t.Fatalf("expected a copy of the identity")
			}
			if got.Email != tc.email {
				t.Fatalf("email = %q, expected %q", got.Email, tc.email)
			}
			if got.Timezone != tc.timezone || got.Language != tc.language {
				t.Fatalf("locale = %s/%s, expected %s/%s", got.Timezone, got.Language, tc.timezone, tc.language)
			}
		})
	}

	if normalizeIdentity(nil, "x@y.z") != nil {
		t.Fatalf("nil identity should stay nil")
	}
}
