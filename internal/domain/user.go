package domain

import "time"

// Role determines the static set of allowed resource/action pairs.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// DashboardView is the screen a user lands on.
type DashboardView string

const (
	DashboardViewLeads     DashboardView = "leads"
	DashboardViewAnalytics DashboardView = "analytics"
	DashboardViewCalendar  DashboardView = "calendar"
)

// User is an authenticated CRM account as returned by the API.
type User struct {
	ID            string           `json:"id" yaml:"id"`
	Email         string           `json:"email" yaml:"email"`
	Name          string           `json:"name" yaml:"name"`
	Role          Role             `json:"role" yaml:"role"`
	Avatar        string           `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Phone         string           `json:"phone,omitempty" yaml:"phone,omitempty"`
	Department    string           `json:"department,omitempty" yaml:"department,omitempty"`
	IsActive      bool             `json:"isActive" yaml:"isActive"`
	LastLogin     *time.Time       `json:"lastLogin,omitempty" yaml:"lastLogin,omitempty"`
	CreatedAt     time.Time        `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt" yaml:"updatedAt"`
	Preferences   *UserPreferences `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	GoogleAccount *GoogleAccount   `json:"googleAccount,omitempty" yaml:"googleAccount,omitempty"`
}

// UserPreferences holds per-user UI and notification settings.
type UserPreferences struct {
	Theme         Theme                   `json:"theme" yaml:"theme"`
	Notifications NotificationPreferences `json:"notifications" yaml:"notifications"`
	Dashboard     DashboardPreferences    `json:"dashboard" yaml:"dashboard"`
}

// NotificationPreferences toggles each notification channel.
type NotificationPreferences struct {
	Email         bool `json:"email" yaml:"email"`
	Push          bool `json:"push" yaml:"push"`
	LeadUpdates   bool `json:"leadUpdates" yaml:"leadUpdates"`
	TaskReminders bool `json:"taskReminders" yaml:"taskReminders"`
}

// DashboardPreferences holds dashboard defaults.
type DashboardPreferences struct {
	DefaultView  DashboardView `json:"defaultView" yaml:"defaultView"`
	LeadsPerPage int           `json:"leadsPerPage" yaml:"leadsPerPage"`
}

// GoogleAccount is the link state of an external Google account.
type GoogleAccount struct {
	Email        string    `json:"email" yaml:"email"`
	Name         string    `json:"name" yaml:"name"`
	Picture      string    `json:"picture,omitempty" yaml:"picture,omitempty"`
	IsConnected  bool      `json:"isConnected" yaml:"isConnected"`
	ConnectedAt  time.Time `json:"connectedAt" yaml:"connectedAt"`
	AccessToken  string    `json:"accessToken,omitempty" yaml:"-"`
	RefreshToken string    `json:"refreshToken,omitempty" yaml:"-"`
}

// DefaultPreferences returns the preferences applied when a user has none.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme: ThemeSystem,
		Notifications: NotificationPreferences{
			Email:         true,
			Push:          true,
			LeadUpdates:   true,
			TaskReminders: true,
		},
		Dashboard: DashboardPreferences{
			DefaultView:  DashboardViewLeads,
			LeadsPerPage: 20,
		},
	}
}

// Normalize fills absent preferences with defaults.
func (u *User) Normalize() {
	if u == nil {
		return
	}
	if u.Preferences == nil {
		prefs := DefaultPreferences()
		u.Preferences = &prefs
		return
	}
	defaults := DefaultPreferences()
	if u.Preferences.Theme == "" {
		u.Preferences.Theme = defaults.Theme
	}
	if u.Preferences.Dashboard.DefaultView == "" {
		u.Preferences.Dashboard.DefaultView = defaults.Dashboard.DefaultView
	}
	if u.Preferences.Dashboard.LeadsPerPage <= 0 {
		u.Preferences.Dashboard.LeadsPerPage = defaults.Dashboard.LeadsPerPage
	}
}

// GoogleConnected reports whether a Google account is linked.
func (u *User) GoogleConnected() bool {
	return u != nil && u.GoogleAccount != nil && u.GoogleAccount.IsConnected
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.Preferences != nil {
		p := *u.Preferences
		c.Preferences = &p
	}
	if u.GoogleAccount != nil {
		g := *u.GoogleAccount
		c.GoogleAccount = &g
	}
	return &c
}
