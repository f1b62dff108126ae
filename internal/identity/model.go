package identity

import "time"

// Account is a registered identity. The ledger owns the balance side of the
// account; this type carries only identity and credential data.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Registration captures the data needed to create an account.
type Registration struct {
	Email    string
	Password string
	Name     string
}

// Credentials is a login attempt.
type Credentials struct {
	Email    string
	Password string
}
