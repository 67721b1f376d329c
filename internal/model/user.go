package model

// User is the profile of a member of the network as returned by the user
// service. The authenticated principal is also a User.
type User struct {
	// ID is shared with the auth service; empty for fallback principals
	// built when the profile could not be fetched.
	ID string `json:"id,omitempty"`

	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	Bio           string `json:"bio,omitempty"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`
	CoverPicURL   string `json:"coverPicUrl,omitempty"`
}

// DisplayName returns the best human-readable label for the user.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

// Keys under which client state is persisted in local storage.
const (
	StorageKeyToken = "token"
	StorageKeyUser  = "user"
	StorageKeyTheme = "theme"
)
