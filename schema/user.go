package schema

// User is the signed-in identity, nil when signed out
type User struct {
	ID          string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// SameUser compares identities by id, nil meaning signed out
func SameUser(a *User, b *User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
