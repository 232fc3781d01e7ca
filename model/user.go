package model

// Role is the access tier of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User model. Passwords are stored in plain text and matched by equality,
// mirroring the behavior of the original deployment.
type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

const UserCollectionName = "users"
