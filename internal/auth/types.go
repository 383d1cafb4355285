package auth

// LoginRequest struct for handling login requests
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token for the refresh and blacklist endpoints
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// VerifyRequest carries a token of any type to be checked
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenResponse struct for sending back access and refresh tokens. Refresh is
// omitted when a refresh call did not rotate it.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// RegisterRequest represents the request body for account registration.
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,max=150,username"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email" binding:"max=254,email_or_blank"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}
