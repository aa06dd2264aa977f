package authsession

import (
	"encoding/json"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// RecordVersion is the current persisted record format
const RecordVersion = 1

// DefaultNamespace is the fixed key stores use for the session record
const DefaultNamespace = "authsession.user"

type persistedRecord struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	User    *User     `json:"user"`
}

// EncodeRecord serializes the user snapshot into a persisted record
func EncodeRecord(user *User, savedAt time.Time) ([]byte, error) {
	if err := ValidateUser(user); err != nil {
		return nil, err
	}
	return json.Marshal(persistedRecord{
		Version: RecordVersion,
		SavedAt: savedAt.UTC(),
		User:    user,
	})
}

// DecodeRecord parses and validates a persisted record. Any failure is
// reported as CodeMalformedPersistedSession.
func DecodeRecord(raw []byte) (*User, error) {
	if len(raw) == 0 {
		return nil, newErrorf(CodeMalformedPersistedSession, nil, "persisted record is empty")
	}

	var rec persistedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, newErrorf(CodeMalformedPersistedSession, err, "persisted record is not valid JSON")
	}

	if rec.Version != RecordVersion {
		return nil, newErrorf(CodeMalformedPersistedSession, nil, "unsupported record version %d", rec.Version)
	}

	if err := ValidateUser(rec.User); err != nil {
		return nil, newErrorf(CodeMalformedPersistedSession, err, "persisted user is invalid")
	}

	return rec.User, nil
}

// ValidateUser checks the fields a session cannot work without
func ValidateUser(user *User) error {
	if user == nil {
		return errNilUser
	}
	return validation.ValidateStruct(user,
		validation.Field(&user.ID, validation.Required),
		validation.Field(&user.Email, validation.Required, is.EmailFormat),
		validation.Field(&user.Role, validation.Required, validation.In(roleValues()...)),
	)
}

var errNilUser = errors.New("user is nil")
