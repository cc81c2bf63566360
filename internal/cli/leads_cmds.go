package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/leads"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

func newLeadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List and edit leads",
		Long: `Work with leads. Agents see the leads assigned to them; admins see all
leads and may reassign or delete them.`,
	}
	cmd.AddCommand(
		newLeadsListCmd(a),
		newLeadsGetCmd(a),
		newLeadsCreateCmd(a),
		newLeadsUpdateCmd(a),
		newLeadsDeleteCmd(a),
		newLeadsActivityCmd(a),
	)
	return cmd
}

func newLeadsListCmd(a *app) *cobra.Command {
	var status, source, leadType, agent string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Long: `List leads, optionally filtered.

Examples:
  leadcrm leads list
  leadcrm leads list --status "Site Visit Scheduled" --type Lead`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.leads.Fetch(cmd.Context(), domain.LeadFilters{
				Status:        domain.LeadStatus(status),
				Source:        domain.LeadSource(source),
				LeadType:      domain.LeadType(leadType),
				AssignedAgent: agent,
			})
			if err != nil {
				return err
			}
			return a.out.print(list, func(w io.Writer) { writeLeadTable(w, list) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "filter by status")
	f.StringVar(&source, "source", "", "filter by source")
	f.StringVar(&leadType, "type", "", "filter by lead type (Lead, Cold-Lead)")
	f.StringVar(&agent, "agent", "", "filter by assigned agent id")
	return cmd
}

func newLeadsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one lead with its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lead, err := a.leads.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.print(lead, func(w io.Writer) { writeLead(w, lead) })
		},
	}
}

func newLeadsCreateCmd(a *app) *cobra.Command {
	var (
		lead               domain.NewLead
		propertyType       string
		source, status     string
		score, leadType    string
		preferredLocations []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead",
		Long: `Create a lead. Agents create leads for themselves; admins may assign
another agent with --agent.

Examples:
  leadcrm leads create --name "Jane Buyer" --phone 555-0101 --email jane@example.com \
    --property-type Residential --source Referral --score High`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lead.PropertyType = domain.PropertyType(propertyType)
			lead.Source = domain.LeadSource(source)
			lead.Status = domain.LeadStatus(status)
			lead.LeadScore = domain.LeadScore(score)
			lead.LeadType = domain.LeadType(leadType)
			lead.PreferredLocations = preferredLocations
			created, err := a.leads.Create(cmd.Context(), lead)
			if err != nil {
				return err
			}
			return a.out.print(created, func(w io.Writer) {
				fmt.Fprintf(w, "Created lead %s\n", created.ID)
				writeLead(w, created)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&lead.Name, "name", "", "lead name")
	f.StringVar(&lead.PrimaryPhone, "phone", "", "primary phone")
	f.StringVar(&lead.SecondaryPhone, "secondary-phone", "", "secondary phone")
	f.StringVar(&lead.PrimaryEmail, "email", "", "primary email")
	f.StringVar(&lead.SecondaryEmail, "secondary-email", "", "secondary email")
	f.StringVar(&propertyType, "property-type", string(domain.PropertyResidential), "Residential, Commercial or Land")
	f.StringVar(&lead.BudgetRange, "budget", "", "budget range")
	f.StringSliceVar(&preferredLocations, "location", nil, "preferred location (repeatable)")
	f.StringVar(&source, "source", string(domain.SourceWebsite), "lead source")
	f.StringVar(&status, "status", string(domain.StatusNew), "lead status")
	f.StringVar(&lead.AssignedAgent, "agent", "", "assigned agent id (admin only)")
	f.StringVar(&lead.Notes, "notes", "", "notes")
	f.StringVar(&score, "score", string(domain.ScoreMedium), "High, Medium or Low")
	f.StringVar(&leadType, "type", string(domain.LeadTypeLead), "Lead or Cold-Lead")
	return cmd
}

func newLeadsUpdateCmd(a *app) *cobra.Command {
	var (
		name, phone, email, budget, notes string
		status, source, score, leadType   string
		agent                             string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a lead",
		Long: `Update only the fields given as flags. Changing --agent requires the
admin role.

Examples:
  leadcrm leads update 3f2a --status Contacted --notes "called back"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var upd domain.LeadUpdate
			setString(f.Changed("name"), &upd.Name, name)
			setString(f.Changed("phone"), &upd.PrimaryPhone, phone)
			setString(f.Changed("email"), &upd.PrimaryEmail, email)
			setString(f.Changed("budget"), &upd.BudgetRange, budget)
			setString(f.Changed("notes"), &upd.Notes, notes)
			setString(f.Changed("agent"), &upd.AssignedAgent, agent)
			if f.Changed("status") {
				v := domain.LeadStatus(status)
				upd.Status = &v
			}
			if f.Changed("source") {
				v := domain.LeadSource(source)
				upd.Source = &v
			}
			if f.Changed("score") {
				v := domain.LeadScore(score)
				upd.LeadScore = &v
			}
			if f.Changed("type") {
				v := domain.LeadType(leadType)
				upd.LeadType = &v
			}

			lead, err := a.leads.Update(cmd.Context(), args[0], upd)
			if err != nil {
				return err
			}
			return a.out.print(lead, func(w io.Writer) {
				fmt.Fprintf(w, "Updated lead %s\n", lead.ID)
				writeLead(w, lead)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "lead name")
	f.StringVar(&phone, "phone", "", "primary phone")
	f.StringVar(&email, "email", "", "primary email")
	f.StringVar(&budget, "budget", "", "budget range")
	f.StringVar(&notes, "notes", "", "notes")
	f.StringVar(&agent, "agent", "", "assigned agent id (admin only)")
	f.StringVar(&status, "status", "", "lead status")
	f.StringVar(&source, "source", "", "lead source")
	f.StringVar(&score, "score", "", "High, Medium or Low")
	f.StringVar(&leadType, "type", "", "Lead or Cold-Lead")
	return cmd
}

func setString(changed bool, dst **string, v string) {
	if changed {
		*dst = &v
	}
}

func newLeadsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a lead (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.leads.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.out.print(map[string]string{"message": "Lead deleted", "id": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted lead %s\n", args[0])
			})
		},
	}
}

func newLeadsActivityCmd(a *app) *cobra.Command {
	var activityType, description, date string
	cmd := &cobra.Command{
		Use:   "activity <id>",
		Short: "Log an activity against a lead",
		Long: `Log a call, email, meeting or note against a lead.

Examples:
  leadcrm leads activity 3f2a --type Call --description "Intro call"
  leadcrm leads activity 3f2a --type Meeting --description "Site tour" --date 2026-10-20T15:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			activity := domain.NewActivity{
				Type:        domain.ActivityType(activityType),
				Description: description,
			}
			if date != "" {
				at, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return apperrors.NewValidationError("date must be RFC3339, e.g. 2026-10-20T15:00:00Z", map[string]any{"date": date})
				}
				activity.Date = &at
			}
			lead, err := a.leads.AddActivity(cmd.Context(), args[0], activity)
			if err != nil {
				return err
			}
			return a.out.print(lead, func(w io.Writer) {
				fmt.Fprintf(w, "Logged %s on %s\n", activity.Type, lead.Name)
				writeActivities(w, lead.Activities)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&activityType, "type", string(domain.ActivityNote), "Call, Email, Meeting, Note or Property Shown")
	f.StringVar(&description, "description", "", "what happened")
	f.StringVar(&date, "date", "", "when it happened (RFC3339, default now)")
	return cmd
}

type dashboardReport struct {
	Summary        leads.Summary `json:"summary" yaml:"summary"`
	ConversionRate float64       `json:"conversionRate" yaml:"conversionRate"`
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize the leads you can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.leads.Fetch(cmd.Context(), domain.LeadFilters{})
			if err != nil {
				return err
			}
			sum := leads.Summarize(list, a.now())
			report := dashboardReport{Summary: sum, ConversionRate: sum.ConversionRate()}
			return a.out.print(report, func(w io.Writer) {
				fields(w,
					[2]string{"Total leads", strconv.Itoa(sum.Total)},
					[2]string{"New today", strconv.Itoa(sum.NewToday)},
					[2]string{"Cold leads", strconv.Itoa(sum.ColdLeads)},
					[2]string{"Converted", strconv.Itoa(sum.Converted)},
					[2]string{"Conversion", fmt.Sprintf("%.1f%%", report.ConversionRate*100)},
				)
				if len(sum.ByStatus) == 0 {
					return
				}
				fmt.Fprintln(w)
				rows := make([][]string, 0, len(sum.ByStatus))
				for _, st := range statusOrder {
					if n := sum.ByStatus[st]; n > 0 {
						rows = append(rows, []string{string(st), strconv.Itoa(n)})
					}
				}
				table(w, "STATUS\tLEADS", rows)
			})
		},
	}
}

var statusOrder = []domain.LeadStatus{
	domain.StatusNew,
	domain.StatusContacted,
	domain.StatusQualified,
	domain.StatusNurturing,
	domain.StatusSiteVisitScheduled,
	domain.StatusSiteVisited,
	domain.StatusNegotiation,
	domain.StatusConverted,
	domain.StatusLost,
	domain.StatusHold,
}

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			agents, err := a.leads.Agents(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.print(agents, func(w io.Writer) {
				rows := make([][]string, 0, len(agents))
				for _, u := range agents {
					active := "yes"
					if !u.IsActive {
						active = "no"
					}
					rows = append(rows, []string{u.ID, u.Name, u.Email, orDash(u.Department), active})
				}
				table(w, "ID\tNAME\tEMAIL\tDEPARTMENT\tACTIVE", rows)
			})
		},
	}
}

func writeLeadTable(w io.Writer, list []domain.Lead) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No leads found")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, l := range list {
		rows = append(rows, []string{
			l.ID,
			l.Name,
			string(l.Status),
			string(l.LeadScore),
			string(l.LeadType),
			orDash(l.AssignedAgent),
			string(l.Source),
		})
	}
	table(w, "ID\tNAME\tSTATUS\tSCORE\tTYPE\tAGENT\tSOURCE", rows)
}

func writeLead(w io.Writer, l *domain.Lead) {
	lastContacted := ""
	if l.LastContacted != nil {
		lastContacted = l.LastContacted.Local().Format(time.RFC822)
	}
	fields(w,
		[2]string{"ID", l.ID},
		[2]string{"Name", l.Name},
		[2]string{"Phone", l.PrimaryPhone},
		[2]string{"Email", l.PrimaryEmail},
		[2]string{"Property", string(l.PropertyType)},
		[2]string{"Budget", l.BudgetRange},
		[2]string{"Locations", strings.Join(l.PreferredLocations, ", ")},
		[2]string{"Source", string(l.Source)},
		[2]string{"Status", string(l.Status)},
		[2]string{"Score", string(l.LeadScore)},
		[2]string{"Type", string(l.LeadType)},
		[2]string{"Agent", l.AssignedAgent},
		[2]string{"Last contacted", lastContacted},
		[2]string{"Notes", l.Notes},
	)
	if len(l.Activities) > 0 {
		fmt.Fprintln(w)
		writeActivities(w, l.Activities)
	}
}

func writeActivities(w io.Writer, list []domain.Activity) {
	rows := make([][]string, 0, len(list))
	for _, act := range list {
		rows = append(rows, []string{act.Date.Local().Format(time.RFC822), string(act.Type), act.Description})
	}
	table(w, "DATE\tTYPE\tDESCRIPTION", rows)
}
