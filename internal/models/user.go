package models

// Account is the opaque record stored for an auth token.
type Account map[string]interface{}

// Username returns the "username" field of the account.
func (a Account) Username() string {
	if a == nil {
		return ""
	}
	name, _ := a["username"].(string)
	return name
}

// User is the identity resolved for a request.
type User struct {
	Username string
	// Impersonated is set when a trusted caller authenticated with the shared secret.
	Impersonated bool
	// Account is nil for impersonated users.
	Account Account
}
