package models

// UserInfo is the profile persisted in the session store after login.
type UserInfo struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	Role            string `json:"role,omitempty"`
	PermissionLevel int    `json:"permission_level"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type LoginReply struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type,omitempty"`
	User        UserInfo `json:"user"`
}

type VerifyReply struct {
	Valid bool     `json:"valid"`
	User  UserInfo `json:"user,omitempty"`
}
