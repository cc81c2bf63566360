package domain

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterData is the registration payload. ConfirmPassword never leaves the client.
type RegisterData struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"-" validate:"omitempty,eqfield=Password"`
	Role            Role   `json:"role" validate:"required,oneof=admin agent"`
	Phone           string `json:"phone,omitempty"`
	Department      string `json:"department,omitempty"`
}

// PasswordChange is the change-password payload. ConfirmPassword never leaves the client.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"-" validate:"omitempty,eqfield=NewPassword"`
}

// ProfileUpdate is a partial user update. Email is immutable after registration.
type ProfileUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Phone       *string          `json:"phone,omitempty"`
	Department  *string          `json:"department,omitempty"`
	Avatar      *string          `json:"avatar,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// Empty reports whether the update carries no fields.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Department == nil && p.Avatar == nil && p.Preferences == nil
}
