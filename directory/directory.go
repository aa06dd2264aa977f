// Package directory is a reference account backend over bun. It verifies
// credentials, revalidates sessions and applies profile and password
// changes, reporting rejections with the authsession sentinel errors.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// ErrAccountNotFound is returned by admin operations for unknown ids
var ErrAccountNotFound = errors.New("account not found")

// ErrEmailTaken is returned by Register for duplicate emails
var ErrEmailTaken = errors.New("email already registered")

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
const DefaultPhoneRegion = "US"

// Directory stores accounts in the accounts table
type Directory struct {
	db       *bun.DB
	accounts repository.Repository[*Account]
	cost     int
	region   string
	now      func() time.Time
	logger   authsession.Logger
}

var (
	_ authsession.CredentialVerifier = (*Directory)(nil)
	_ authsession.SessionRevalidator = (*Directory)(nil)
	_ authsession.ProfileUpdater     = (*Directory)(nil)
	_ authsession.PasswordChanger    = (*Directory)(nil)
)

// Option customizes a Directory
type Option func(*Directory)

// WithBcryptCost sets the cost used for new password hashes
func WithBcryptCost(cost int) Option {
	return func(d *Directory) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			d.cost = cost
		}
	}
}

// WithPhoneRegion sets the default region for phone parsing
func WithPhoneRegion(region string) Option {
	return func(d *Directory) {
		if region != "" {
			d.region = strings.ToUpper(region)
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(d *Directory) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(logger authsession.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a Directory over db. Call Migrate before first use.
func New(db *bun.DB, opts ...Option) *Directory {
	d := &Directory{
		db:       db,
		accounts: NewAccountsRepository(db),
		cost:     bcrypt.DefaultCost,
		region:   DefaultPhoneRegion,
		now:      time.Now,
		logger:   authsession.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Migrate creates the accounts table if missing
func (d *Directory) Migrate(ctx context.Context) error {
	_, err := d.db.NewCreateTable().
		Model((*Account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return oops.In("directory").Wrapf(err, "create accounts table")
	}
	return nil
}

// Register creates a new active account
func (d *Directory) Register(ctx context.Context, reg Registration) (*authsession.User, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if err := reg.Validate(); err != nil {
		return nil, oops.In("directory").With("email", reg.Email).Wrapf(err, "invalid registration")
	}

	if _, err := d.byEmail(ctx, reg.Email); err == nil {
		return nil, oops.In("directory").With("email", reg.Email).Wrap(ErrEmailTaken)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	phone, err := d.normalizePhone(reg.Phone)
	if err != nil {
		return nil, err
	}

	hash, err := d.hash(reg.Password)
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	acc := &Account{
		ID:           uuid.New(),
		Email:        reg.Email,
		PasswordHash: hash,
		FullName:     reg.FullName,
		Phone:        phone,
		Role:         reg.Role.String(),
		IsActive:     true,
		Timezone:     valueOr(reg.Timezone, authsession.DefaultTimezone),
		Language:     valueOr(reg.Language, authsession.DefaultLanguage),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	acc, err = d.accounts.Create(ctx, acc)
	if err != nil {
		return nil, oops.In("directory").With("email", reg.Email).Wrapf(err, "insert account")
	}

	d.logger.Info("registered account %s (%s)", acc.ID, acc.Role)
	return acc.User(), nil
}

// Get returns the account identity by id
func (d *Directory) Get(ctx context.Context, id string) (*authsession.User, error) {
	acc, err := d.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	return acc.User(), nil
}

// GetByEmail returns the account identity by email
func (d *Directory) GetByEmail(ctx context.Context, email string) (*authsession.User, error) {
	acc, err := d.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return acc.User(), nil
}

// SetActive activates or deactivates an account. Deactivated accounts fail
// verification and revalidation.
func (d *Directory) SetActive(ctx context.Context, id string, active bool) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	// explicit columns: the repository update skips zero values like false
	res, err := d.db.NewUpdate().
		Model((*Account)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", d.now().UTC()).
		Where("id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return oops.In("directory").With("id", id).Wrapf(err, "update account status")
	}
	return requireAffected(res, id)
}

// Delete removes an account
func (d *Directory) Delete(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	res, err := d.db.NewDelete().
		Model((*Account)(nil)).
		Where("id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return oops.In("directory").With("id", id).Wrapf(err, "delete account")
	}
	return requireAffected(res, id)
}

// VerifyCredentials implements authsession.CredentialVerifier
func (d *Directory) VerifyCredentials(ctx context.Context, creds authsession.Credentials) (*authsession.User, error) {
	acc, err := d.byEmail(ctx, creds.Identifier)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, oops.In("directory").With("identifier", creds.Identifier).Wrap(authsession.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}

	if err := comparePassword(acc.PasswordHash, creds.Secret); err != nil {
		d.trackAttempt(ctx, acc)
		return nil, err
	}

	if !acc.IsActive {
		return nil, oops.In("directory").With("id", acc.ID).Wrap(authsession.ErrInactiveAccount)
	}

	now := d.now().UTC()
	acc.LoginAttempts = 0
	acc.LoggedInAt = &now
	if _, err := d.db.NewUpdate().
		Model(acc).
		Column("login_attempts", "logged_in_at").
		WherePK().
		Exec(ctx); err != nil {
		d.logger.Warn("track successful login %s: %v", acc.ID, err)
	}

	return acc.User(), nil
}

// Revalidate implements authsession.SessionRevalidator
func (d *Directory) Revalidate(ctx context.Context, userID string) (*authsession.User, error) {
	acc, err := d.byID(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, oops.In("directory").With("id", userID).Wrap(authsession.ErrSessionRejected)
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsActive {
		return nil, oops.In("directory").With("id", userID).Wrap(authsession.ErrSessionRejected)
	}
	return acc.User(), nil
}

// UpdateProfile implements authsession.ProfileUpdater
func (d *Directory) UpdateProfile(ctx context.Context, userID string, update authsession.ProfileUpdate) (*authsession.User, error) {
	if err := update.Validate(); err != nil {
		return nil, oops.In("directory").With("id", userID).Wrapf(authsession.ErrUpdateRejected, "invalid profile: %v", err)
	}

	acc, err := d.activeAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Phone != nil {
		phone, err := d.normalizePhone(*update.Phone)
		if err != nil {
			return nil, err
		}
		update.Phone = &phone
	}

	user := update.Apply(acc.User())
	acc.FullName = user.FullName
	acc.Phone = user.Phone
	acc.AvatarURL = user.AvatarURL
	acc.Timezone = user.Timezone
	acc.Language = user.Language
	acc.Preferences = user.Preferences
	acc.UpdatedAt = d.now().UTC()

	if _, err := d.db.NewUpdate().
		Model(acc).
		Column("full_name", "phone", "avatar_url", "timezone", "language", "preferences", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, oops.In("directory").With("id", userID).Wrapf(err, "update profile")
	}

	return acc.User(), nil
}

// ChangePassword implements authsession.PasswordChanger
func (d *Directory) ChangePassword(ctx context.Context, userID, current, next string) (*authsession.User, error) {
	acc, err := d.activeAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := comparePassword(acc.PasswordHash, current); err != nil {
		return nil, err
	}
	if len(next) < MinPasswordLength {
		return nil, oops.In("directory").With("id", userID).Wrapf(authsession.ErrUpdateRejected, "password must be at least %d characters", MinPasswordLength)
	}

	hash, err := d.hash(next)
	if err != nil {
		return nil, err
	}

	acc.PasswordHash = hash
	acc.UpdatedAt = d.now().UTC()
	updated, err := d.accounts.Update(ctx, acc, repository.UpdateByID(acc.ID.String()))
	if err != nil {
		return nil, oops.In("directory").With("id", userID).Wrapf(err, "update password")
	}

	return updated.User(), nil
}

func (d *Directory) activeAccount(ctx context.Context, id string) (*Account, error) {
	acc, err := d.byID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, oops.In("directory").With("id", id).Wrap(authsession.ErrUpdateRejected)
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsActive {
		return nil, oops.In("directory").With("id", id).Wrap(authsession.ErrInactiveAccount)
	}
	return acc, nil
}

func (d *Directory) byID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAccountNotFound
	}
	acc, err := d.accounts.GetByID(ctx, id)
	if repository.IsRecordNotFound(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, oops.In("directory").With("id", id).Wrapf(err, "select account")
	}
	return acc, nil
}

func (d *Directory) byEmail(ctx context.Context, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrAccountNotFound
	}
	acc, err := d.accounts.GetByIdentifier(ctx, email)
	if repository.IsRecordNotFound(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, oops.In("directory").With("email", email).Wrapf(err, "select account")
	}
	return acc, nil
}

func (d *Directory) trackAttempt(ctx context.Context, acc *Account) {
	_, err := d.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = login_attempts + 1").
		Where("id = ?", acc.ID).
		Exec(ctx)
	if err != nil {
		d.logger.Warn("track attempted login %s: %v", acc.ID, err)
	}
}

func (d *Directory) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return "", oops.In("directory").Wrapf(err, "hash password")
	}
	return string(h), nil
}

// normalizePhone formats phone as E.164. Empty input clears the number.
func (d *Directory) normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(phone, d.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", oops.In("directory").With("phone", phone).Wrapf(authsession.ErrUpdateRejected, "invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func comparePassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return authsession.ErrInvalidCredentials
		}
		return oops.In("directory").Wrapf(err, "compare password")
	}
	return nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return oops.In("directory").With("id", id).Wrapf(err, "rows affected")
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
