package dto

// SignupRequest represents a local signup request
type SignupRequest struct {
	Email           string  `json:"email" binding:"required"`
	Password        string  `json:"password" binding:"required"`
	ConfirmPassword string  `json:"confirmPassword" binding:"required"`
	FullName        *string `json:"fullName,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest asks for a password-reset email
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyEmailRequest redeems an emailed one-time code
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResendVerificationRequest asks for a new one-time code
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required"`
}

// AcceptInviteRequest accepts an organization invitation
type AcceptInviteRequest struct {
	Token    string  `json:"token" binding:"required"`
	Password string  `json:"password"`
	FullName *string `json:"fullName,omitempty"`
}

// SupabaseSessionRequest exchanges a Supabase access token for a session
type SupabaseSessionRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

// SupabaseUpdatePasswordRequest completes a password reset started at Supabase
type SupabaseUpdatePasswordRequest struct {
	AccessToken     string `json:"accessToken" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthResponse carries a session token and the signed-in user
type AuthResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int          `json:"expiresIn"`
	User      UserResponse `json:"user"`
}

// SignupResponse is returned by a successful signup
type SignupResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// AuthURLResponse carries a provider authorization URL
type AuthURLResponse struct {
	AuthURL string `json:"authUrl"`
}

// RingCentralStatusResponse reports whether the integration is connected
type RingCentralStatusResponse struct {
	Connected bool `json:"connected"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
