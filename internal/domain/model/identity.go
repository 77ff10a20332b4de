package model

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity is the authenticated caller, supplied by the auth capability.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
