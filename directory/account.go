package directory

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MinPasswordLength applies to registrations and password changes
const MinPasswordLength = 8

// Account is the stored form of a user
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Email         string         `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string         `bun:"password_hash,notnull" json:"-"`
	FullName      string         `bun:"full_name" json:"full_name"`
	Phone         string         `bun:"phone" json:"phone,omitempty"`
	AvatarURL     string         `bun:"avatar_url" json:"avatar_url,omitempty"`
	Role          string         `bun:"role,notnull" json:"role"`
	IsActive      bool           `bun:"is_active,notnull" json:"is_active"`
	Timezone      string         `bun:"timezone" json:"timezone"`
	Language      string         `bun:"language" json:"language"`
	Preferences   map[string]any `bun:"preferences,type:text" json:"preferences,omitempty"`
	LoginAttempts int            `bun:"login_attempts,notnull,default:0" json:"login_attempts"`
	LoggedInAt    *time.Time     `bun:"logged_in_at,nullzero" json:"logged_in_at,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// NewAccountsRepository returns the accounts repository, looked up by email
// when an identifier is not an id
func NewAccountsRepository(db *bun.DB) repository.Repository[*Account] {
	return repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

// User returns the identity view of the account
func (a *Account) User() *authsession.User {
	if a == nil {
		return nil
	}
	u := &authsession.User{
		ID:        a.ID.String(),
		Email:     a.Email,
		FullName:  a.FullName,
		Phone:     a.Phone,
		AvatarURL: a.AvatarURL,
		Role:      authsession.Role(a.Role),
		IsActive:  a.IsActive,
		Timezone:  a.Timezone,
		Language:  a.Language,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	for k, v := range a.Preferences {
		u.SetPreference(k, v)
	}
	return u
}

// Registration is the input to Register
type Registration struct {
	Email    string           `json:"email"`
	Password string           `json:"password"`
	FullName string           `json:"full_name"`
	Phone    string           `json:"phone,omitempty"`
	Role     authsession.Role `json:"role"`
	Timezone string           `json:"timezone,omitempty"`
	Language string           `json:"language,omitempty"`
}

// Validate checks the registration shape
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 72)),
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Role, validation.Required, validation.By(validRole)),
	)
}

func validRole(value any) error {
	role, _ := value.(authsession.Role)
	if !role.IsValid() {
		return validation.NewError("validation_role_invalid", "must be one of "+strings.Join(roleNames(), ", "))
	}
	return nil
}

func roleNames() []string {
	roles := authsession.GetAllRoles()
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}
