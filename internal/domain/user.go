package domain

// User is the identity resolved from the bearer token. A nil *User is a guest.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
