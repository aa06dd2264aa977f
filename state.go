package authsession

// Status is the phase of the session lifecycle
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusInitializing    Status = "initializing"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusSigningOut      Status = "signing_out"
	StatusUnauthenticated Status = "unauthenticated"
)

// String implements fmt.Stringer
func (s Status) String() string {
	return string(s)
}

// IsTransient reports whether the status is an in-flight phase. While
// transient, User and IsAuthenticated keep the previous settled values.
func (s Status) IsTransient() bool {
	switch s {
	case StatusInitializing, StatusAuthenticating, StatusSigningOut:
		return true
	default:
		return false
	}
}

// AuthState is the canonical authentication state. Values handed out by
// the Manager are snapshots, mutating them has no effect on the Manager.
type AuthState struct {
	Status          Status    `json:"status"`
	User            *User     `json:"user"`
	IsLoading       bool      `json:"is_loading"`
	IsAuthenticated bool      `json:"is_authenticated"`
	Error           string    `json:"error,omitempty"`
	ErrorCode       ErrorCode `json:"error_code,omitempty"`
}

// Clone returns an independent copy of the state
func (s AuthState) Clone() AuthState {
	s.User = s.User.Clone()
	return s
}

// Consistent reports whether the authenticated flag agrees with the user
// presence. Loading states are exempt.
func (s AuthState) Consistent() bool {
	if s.IsLoading {
		return true
	}
	return s.IsAuthenticated == (s.User != nil)
}

func initialState() AuthState {
	return AuthState{Status: StatusUninitialized}
}

// loading moves into a transient phase keeping the settled identity
func (s AuthState) loading(status Status) AuthState {
	s.Status = status
	s.IsLoading = true
	s.Error = ""
	s.ErrorCode = ""
	return s
}

func authenticatedState(user *User) AuthState {
	return AuthState{
		Status:          StatusAuthenticated,
		User:            user,
		IsAuthenticated: true,
	}
}

func unauthenticatedState(code ErrorCode) AuthState {
	st := AuthState{Status: StatusUnauthenticated}
	if code.Surfaced() {
		st.Error = code.Message()
		st.ErrorCode = code
	}
	return st
}
