package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/observability"
	"github.com/spec-kit/leadcrm/internal/session"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. The token and user are stored so
later commands resume the session.

Examples:
  leadcrm login --email agent@example.com --password secret
  echo secret | leadcrm login --email agent@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				pw, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = pw
			}
			user, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.out.print(user, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.session.Logout(cmd.Context())
			return a.out.print(a.session.Snapshot(), func(w io.Writer) {
				fmt.Fprintln(w, "Logged out")
			})
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var data domain.RegisterData
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. Registering does not sign you in.

Examples:
  leadcrm register --name "Jo Agent" --email jo@example.com --password secret --confirm-password secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data.Role = domain.Role(role)
			user, err := a.session.Register(cmd.Context(), data)
			if err != nil {
				return err
			}
			return a.out.print(user, func(w io.Writer) {
				fmt.Fprintf(w, "Registered %s <%s> as %s. Run 'leadcrm login' to sign in.\n", user.Name, user.Email, user.Role)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Name, "name", "", "full name")
	f.StringVar(&data.Email, "email", "", "email address")
	f.StringVar(&data.Password, "password", "", "password (min 6 characters)")
	f.StringVar(&data.ConfirmPassword, "confirm-password", "", "repeat the password")
	f.StringVar(&role, "role", string(domain.RoleAgent), "role (admin, agent)")
	f.StringVar(&data.Phone, "phone", "", "phone number")
	f.StringVar(&data.Department, "department", "", "department")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			return a.out.print(user, func(w io.Writer) { writeUser(w, user) })
		},
	}
}

type statusReport struct {
	Session   session.State           `json:"session" yaml:"session"`
	TokenRole domain.Role             `json:"tokenRole,omitempty" yaml:"tokenRole,omitempty"`
	APIURL    string                  `json:"apiUrl" yaml:"apiUrl"`
	Storage   string                  `json:"storage" yaml:"storage"`
	Metrics   *observability.Snapshot `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state and connection settings",
		Long: `Show whether a session is active, which API it talks to and where it
is stored. With --verbose the request counters of this run are included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := statusReport{
				Session: a.session.Snapshot(),
				APIURL:  a.client.BaseURL(),
				Storage: a.cfg.Storage.Driver,
			}
			token, err := a.session.Token(cmd.Context())
			if err != nil {
				return err
			}
			report.TokenRole = auth.RoleFromToken(token)
			if a.verbose {
				snap := a.metrics.Snapshot()
				report.Metrics = &snap
			}
			return a.out.print(report, func(w io.Writer) {
				user := "-"
				if u := report.Session.User; u != nil {
					user = fmt.Sprintf("%s <%s> (%s)", u.Name, u.Email, u.Role)
				}
				fields(w,
					[2]string{"Session", string(report.Session.Phase)},
					[2]string{"User", user},
					[2]string{"Token role", string(report.TokenRole)},
					[2]string{"API", report.APIURL},
					[2]string{"Storage", orDash(report.Storage)},
					[2]string{"Last error", report.Session.LastError},
				)
				if report.Metrics != nil {
					fmt.Fprintln(w)
					writeMetrics(w, *report.Metrics)
				}
			})
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}

	var (
		name, phone, department, avatar string
		theme, defaultView              string
		leadsPerPage                    int
		notify                          []string
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields and preferences",
		Long: `Update only the fields given as flags.

Examples:
  leadcrm profile update --name "Jo A." --theme dark
  leadcrm profile update --notify email=false,push=true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := a.requireUser()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			var upd domain.ProfileUpdate
			if f.Changed("name") {
				upd.Name = &name
			}
			if f.Changed("phone") {
				upd.Phone = &phone
			}
			if f.Changed("department") {
				upd.Department = &department
			}
			if f.Changed("avatar") {
				upd.Avatar = &avatar
			}
			if f.Changed("theme") || f.Changed("default-view") || f.Changed("leads-per-page") || f.Changed("notify") {
				prefs := domain.DefaultPreferences()
				if current.Preferences != nil {
					prefs = *current.Preferences
				}
				if f.Changed("theme") {
					prefs.Theme = domain.Theme(theme)
				}
				if f.Changed("default-view") {
					prefs.Dashboard.DefaultView = domain.DashboardView(defaultView)
				}
				if f.Changed("leads-per-page") {
					prefs.Dashboard.LeadsPerPage = leadsPerPage
				}
				if err := applyNotify(&prefs.Notifications, notify); err != nil {
					return err
				}
				upd.Preferences = &prefs
			}

			user, err := a.session.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return a.out.print(user, func(w io.Writer) {
				fmt.Fprintln(w, "Profile updated")
				writeUser(w, user)
			})
		},
	}
	f := update.Flags()
	f.StringVar(&name, "name", "", "full name")
	f.StringVar(&phone, "phone", "", "phone number")
	f.StringVar(&department, "department", "", "department")
	f.StringVar(&avatar, "avatar", "", "avatar URL")
	f.StringVar(&theme, "theme", "", "theme (light, dark, system)")
	f.StringVar(&defaultView, "default-view", "", "dashboard view (leads, analytics, calendar)")
	f.IntVar(&leadsPerPage, "leads-per-page", 0, "leads per page")
	f.StringSliceVar(&notify, "notify", nil, "notification toggles as name=bool (email, push, leadUpdates, taskReminders)")

	profile.AddCommand(update)
	return profile
}

func applyNotify(n *domain.NotificationPreferences, toggles []string) error {
	for _, t := range toggles {
		key, raw, ok := strings.Cut(t, "=")
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("invalid notification toggle %q, want name=bool", t), nil)
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("invalid value for %s: %q", key, raw), nil)
		}
		switch key {
		case "email":
			n.Email = on
		case "push":
			n.Push = on
		case "leadUpdates":
			n.LeadUpdates = on
		case "taskReminders":
			n.TaskReminders = on
		default:
			return apperrors.NewValidationError(fmt.Sprintf("unknown notification %q", key), nil)
		}
	}
	return nil
}

func newPasswordCmd(a *app) *cobra.Command {
	password := &cobra.Command{
		Use:   "password",
		Short: "Manage your password",
	}
	var change domain.PasswordChange
	changeCmd := &cobra.Command{
		Use:   "change",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireUser(); err != nil {
				return err
			}
			if err := a.session.ChangePassword(cmd.Context(), change); err != nil {
				return err
			}
			return a.out.print(map[string]string{"message": "Password changed"}, func(w io.Writer) {
				fmt.Fprintln(w, "Password changed")
			})
		},
	}
	f := changeCmd.Flags()
	f.StringVar(&change.CurrentPassword, "current", "", "current password")
	f.StringVar(&change.NewPassword, "new", "", "new password (min 6 characters)")
	f.StringVar(&change.ConfirmPassword, "confirm", "", "repeat the new password")

	password.AddCommand(changeCmd)
	return password
}

func newGoogleCmd(a *app) *cobra.Command {
	google := &cobra.Command{
		Use:   "google",
		Short: "Link or unlink a Google account",
	}
	google.AddCommand(
		&cobra.Command{
			Use:   "connect",
			Short: "Print the Google consent URL",
			Long: `Print the URL to open in a browser to link a Google account. The
account shows as connected once the consent flow completes.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := a.requireUser(); err != nil {
					return err
				}
				authURL, err := a.session.ConnectGoogle(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.print(map[string]string{"authUrl": authURL}, func(w io.Writer) {
					fmt.Fprintln(w, "Open this URL to connect Google:")
					fmt.Fprintln(w, authURL)
				})
			},
		},
		&cobra.Command{
			Use:   "disconnect",
			Short: "Unlink the Google account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := a.requireUser(); err != nil {
					return err
				}
				if err := a.session.DisconnectGoogle(cmd.Context()); err != nil {
					return err
				}
				return a.out.print(map[string]string{"message": "Google account disconnected"}, func(w io.Writer) {
					fmt.Fprintln(w, "Google account disconnected")
				})
			},
		},
	)
	return google
}

// requireUser returns the signed-in user or an UNAUTHORIZED error.
func (a *app) requireUser() (*domain.User, error) {
	user := a.session.CurrentUser()
	if user == nil {
		return nil, apperrors.NewUnauthorized("not logged in, run 'leadcrm login'")
	}
	return user, nil
}

func writeUser(w io.Writer, u *domain.User) {
	google := "not connected"
	if u.GoogleConnected() {
		google = u.GoogleAccount.Email
	}
	pairs := [][2]string{
		{"ID", u.ID},
		{"Name", u.Name},
		{"Email", u.Email},
		{"Role", string(u.Role)},
		{"Phone", u.Phone},
		{"Department", u.Department},
		{"Google", google},
	}
	if u.Preferences != nil {
		pairs = append(pairs,
			[2]string{"Theme", string(u.Preferences.Theme)},
			[2]string{"Default view", string(u.Preferences.Dashboard.DefaultView)},
		)
	}
	fields(w, pairs...)
}

func writeMetrics(w io.Writer, snap observability.Snapshot) {
	rows := make([][]string, 0, len(snap.Requests)+len(snap.Errors))
	for _, c := range snap.Requests {
		rows = append(rows, []string{"request", c.Key, strconv.FormatInt(c.Count, 10), c.Total.String()})
	}
	for _, c := range snap.Errors {
		rows = append(rows, []string{"error", c.Key, strconv.FormatInt(c.Count, 10), "-"})
	}
	table(w, "KIND\tKEY\tCOUNT\tLATENCY", rows)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
