package model

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// A user holds at most one token at a time; its purpose says which flow
// may consume it.
const (
	TokenPurposeVerify = "verify"
	TokenPurposeReset  = "reset"
)

type User struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Email                   string `json:"email"`
	PasswordHash            string `json:"-"`
	IsVerified              bool   `json:"is_verified"`
	Role                    string `json:"role"`
	VerificationToken       string `json:"-"`
	VerificationTokenExpiry int64  `json:"-"`
	TokenPurpose            string `json:"-"`
	Ctime                   int64  `json:"ctime"`
	Mtime                   int64  `json:"mtime"`
}

// UserSummary is the identity returned by register and login.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
