package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
)

type permissionCheck struct {
	Role     domain.Role `json:"role" yaml:"role"`
	Resource string      `json:"resource" yaml:"resource"`
	Action   string      `json:"action" yaml:"action"`
	Allowed  bool        `json:"allowed" yaml:"allowed"`
}

func newPermissionsCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Show what a role may do",
		Long: `List the resource/action table for your role, or for --role.

The table only gates what this client offers; the API decides.

Examples:
  leadcrm permissions
  leadcrm permissions --role agent
  leadcrm permissions check leads delete`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			r, err := a.permissionRole(role)
			if err != nil {
				return err
			}
			perms := auth.Permissions(r)
			return a.out.print(perms, func(w io.Writer) {
				if len(perms) == 0 {
					fmt.Fprintf(w, "Role %q has no permissions\n", r)
					return
				}
				rows := make([][]string, 0, len(perms))
				for _, p := range perms {
					rows = append(rows, []string{p.Resource, strings.Join(p.Actions, ", ")})
				}
				table(w, "RESOURCE\tACTIONS", rows)
			})
		},
	}
	cmd.PersistentFlags().StringVar(&role, "role", "", "role to inspect (default: your role)")

	cmd.AddCommand(&cobra.Command{
		Use:   "check <resource> <action>",
		Short: "Check a single resource/action pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			r, err := a.permissionRole(role)
			if err != nil {
				return err
			}
			res := permissionCheck{
				Role:     r,
				Resource: args[0],
				Action:   args[1],
				Allowed:  auth.RoleHasPermission(r, args[0], args[1]),
			}
			return a.out.print(res, func(w io.Writer) {
				verdict := "denied"
				if res.Allowed {
					verdict = "allowed"
				}
				fmt.Fprintf(w, "%s: %s %s is %s\n", res.Role, res.Resource, res.Action, verdict)
			})
		},
	})
	return cmd
}

// permissionRole resolves --role, falling back to the session user's role.
func (a *app) permissionRole(role string) (domain.Role, error) {
	if role != "" {
		return domain.Role(role), nil
	}
	user, err := a.requireUser()
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
