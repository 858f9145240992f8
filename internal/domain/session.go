package domain

// SessionState is the authentication state of the storefront.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StateAuthenticating
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its name.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LogoutReason records why the session last became anonymous.
type LogoutReason string

const (
	ReasonNone    LogoutReason = ""
	ReasonLogout  LogoutReason = "logout"
	ReasonExpired LogoutReason = "expired"
)

// User is the signed-in customer's profile.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is a snapshot of the identity store. User is only meaningful while
// Token is set.
type Session struct {
	Token  string       `json:"-"`
	User   *User        `json:"user,omitempty"`
	State  SessionState `json:"state"`
	Reason LogoutReason `json:"reason,omitempty"`

	Version uint64 `json:"-"`
}

// Seq returns the session's publish counter.
func (s Session) Seq() uint64 { return s.Version }

// Authenticated reports whether the session holds a credential.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && s.Token != ""
}

// UserID returns the signed-in user's ID, or "" when unknown.
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Clone returns a deep copy safe to hand to observers.
func (s Session) Clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Credentials are the inputs of a login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration are the inputs of a signup.
type Registration struct {
	Name       string `json:"name" validate:"required,min=3"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RePassword string `json:"rePassword" validate:"required,eqfield=Password"`
	Phone      string `json:"phone" validate:"required,phone"`
}

// PasswordReset is the input of a forgot-password request.
type PasswordReset struct {
	Email string `json:"email" validate:"required,email"`
}
