package domain

import "time"

// PropertyType is the kind of property a lead is looking for.
type PropertyType string

const (
	PropertyResidential PropertyType = "Residential"
	PropertyCommercial  PropertyType = "Commercial"
	PropertyLand        PropertyType = "Land"
)

// LeadSource is where a lead came from.
type LeadSource string

const (
	SourceWebsite       LeadSource = "Website"
	SourceReferral      LeadSource = "Referral"
	SourceSocialMedia   LeadSource = "Social Media"
	SourceWalkIn        LeadSource = "Walk-in"
	SourceAdvertisement LeadSource = "Advertisement"
	SourceOther         LeadSource = "Other"
)

// LeadStatus tracks progress through the sales funnel.
type LeadStatus string

const (
	StatusNew                LeadStatus = "New"
	StatusContacted          LeadStatus = "Contacted"
	StatusQualified          LeadStatus = "Qualified"
	StatusNurturing          LeadStatus = "Nurturing"
	StatusSiteVisitScheduled LeadStatus = "Site Visit Scheduled"
	StatusSiteVisited        LeadStatus = "Site Visited"
	StatusNegotiation        LeadStatus = "Negotiation"
	StatusConverted          LeadStatus = "Converted"
	StatusLost               LeadStatus = "Lost"
	StatusHold               LeadStatus = "Hold"
)

// LeadScore is the agent's rating of a lead.
type LeadScore string

const (
	ScoreHigh   LeadScore = "High"
	ScoreMedium LeadScore = "Medium"
	ScoreLow    LeadScore = "Low"
)

// LeadType separates active leads from cold ones.
type LeadType string

const (
	LeadTypeLead LeadType = "Lead"
	LeadTypeCold LeadType = "Cold-Lead"
)

// ActivityType classifies an activity entry.
type ActivityType string

const (
	ActivityCall          ActivityType = "Call"
	ActivityEmail         ActivityType = "Email"
	ActivityMeeting       ActivityType = "Meeting"
	ActivityNote          ActivityType = "Note"
	ActivityStatusChange  ActivityType = "Status Change"
	ActivityPropertyShown ActivityType = "Property Shown"
)

// Lead is a prospective client record.
type Lead struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	PrimaryPhone       string       `json:"primaryPhone" yaml:"primaryPhone"`
	SecondaryPhone     string       `json:"secondaryPhone,omitempty" yaml:"secondaryPhone,omitempty"`
	PrimaryEmail       string       `json:"primaryEmail" yaml:"primaryEmail"`
	SecondaryEmail     string       `json:"secondaryEmail,omitempty" yaml:"secondaryEmail,omitempty"`
	PropertyType       PropertyType `json:"propertyType" yaml:"propertyType"`
	BudgetRange        string       `json:"budgetRange" yaml:"budgetRange"`
	PreferredLocations []string     `json:"preferredLocations" yaml:"preferredLocations"`
	Source             LeadSource   `json:"source" yaml:"source"`
	Status             LeadStatus   `json:"status" yaml:"status"`
	AssignedAgent      string       `json:"assignedAgent,omitempty" yaml:"assignedAgent,omitempty"`
	Notes              string       `json:"notes" yaml:"notes"`
	CreatedAt          time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt" yaml:"updatedAt"`
	LastContacted      *time.Time   `json:"lastContacted,omitempty" yaml:"lastContacted,omitempty"`
	LeadScore          LeadScore    `json:"leadScore" yaml:"leadScore"`
	Activities         []Activity   `json:"activities" yaml:"activities"`
	Attachments        []string     `json:"attachments" yaml:"attachments"`
	CreatedBy          string       `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	LeadType           LeadType     `json:"leadType" yaml:"leadType"`
}

// Activity is one interaction logged against a lead.
type Activity struct {
	ID          string         `json:"id" yaml:"id"`
	Type        ActivityType   `json:"type" yaml:"type"`
	Description string         `json:"description" yaml:"description"`
	Date        time.Time      `json:"date" yaml:"date"`
	Agent       string         `json:"agent" yaml:"agent"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewLead is the create payload; server-generated fields are absent.
type NewLead struct {
	Name               string       `json:"name" validate:"required"`
	PrimaryPhone       string       `json:"primaryPhone" validate:"required"`
	SecondaryPhone     string       `json:"secondaryPhone,omitempty"`
	PrimaryEmail       string       `json:"primaryEmail" validate:"required,email"`
	SecondaryEmail     string       `json:"secondaryEmail,omitempty" validate:"omitempty,email"`
	PropertyType       PropertyType `json:"propertyType" validate:"required,oneof=Residential Commercial Land"`
	BudgetRange        string       `json:"budgetRange"`
	PreferredLocations []string     `json:"preferredLocations"`
	Source             LeadSource   `json:"source" validate:"required"`
	Status             LeadStatus   `json:"status" validate:"required"`
	AssignedAgent      string       `json:"assignedAgent,omitempty"`
	Notes              string       `json:"notes"`
	LeadScore          LeadScore    `json:"leadScore" validate:"required,oneof=High Medium Low"`
	LeadType           LeadType     `json:"leadType" validate:"required,oneof=Lead Cold-Lead"`
	Activities         []Activity   `json:"activities,omitempty"`
	Attachments        []string     `json:"attachments,omitempty"`
}

// LeadUpdate is a partial lead update.
type LeadUpdate struct {
	Name               *string       `json:"name,omitempty"`
	PrimaryPhone       *string       `json:"primaryPhone,omitempty"`
	SecondaryPhone     *string       `json:"secondaryPhone,omitempty"`
	PrimaryEmail       *string       `json:"primaryEmail,omitempty"`
	SecondaryEmail     *string       `json:"secondaryEmail,omitempty"`
	PropertyType       *PropertyType `json:"propertyType,omitempty"`
	BudgetRange        *string       `json:"budgetRange,omitempty"`
	PreferredLocations []string      `json:"preferredLocations,omitempty"`
	Source             *LeadSource   `json:"source,omitempty"`
	Status             *LeadStatus   `json:"status,omitempty"`
	AssignedAgent      *string       `json:"assignedAgent,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
	LeadScore          *LeadScore    `json:"leadScore,omitempty"`
	LeadType           *LeadType     `json:"leadType,omitempty"`
}

// NewActivity is the payload for logging an activity.
type NewActivity struct {
	Type        ActivityType   `json:"type" validate:"required"`
	Description string         `json:"description" validate:"required"`
	Date        *time.Time     `json:"date,omitempty"`
	Agent       string         `json:"agent"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// LeadFilters narrows a lead listing.
type LeadFilters struct {
	Status        LeadStatus
	AssignedAgent string
	Source        LeadSource
	LeadType      LeadType
}

// Apply mutates l with the non-nil fields of u.
func (u LeadUpdate) Apply(l *Lead) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.PrimaryPhone != nil {
		l.PrimaryPhone = *u.PrimaryPhone
	}
	if u.SecondaryPhone != nil {
		l.SecondaryPhone = *u.SecondaryPhone
	}
	if u.PrimaryEmail != nil {
		l.PrimaryEmail = *u.PrimaryEmail
	}
	if u.SecondaryEmail != nil {
		l.SecondaryEmail = *u.SecondaryEmail
	}
	if u.PropertyType != nil {
		l.PropertyType = *u.PropertyType
	}
	if u.BudgetRange != nil {
		l.BudgetRange = *u.BudgetRange
	}
	if u.PreferredLocations != nil {
		l.PreferredLocations = append([]string(nil), u.PreferredLocations...)
	}
	if u.Source != nil {
		l.Source = *u.Source
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.AssignedAgent != nil {
		l.AssignedAgent = *u.AssignedAgent
	}
	if u.Notes != nil {
		l.Notes = *u.Notes
	}
	if u.LeadScore != nil {
		l.LeadScore = *u.LeadScore
	}
	if u.LeadType != nil {
		l.LeadType = *u.LeadType
	}
}

// Clone returns a deep copy of l.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	if l.LastContacted != nil {
		t := *l.LastContacted
		c.LastContacted = &t
	}
	c.PreferredLocations = append([]string(nil), l.PreferredLocations...)
	c.Attachments = append([]string(nil), l.Attachments...)
	if l.Activities != nil {
		c.Activities = make([]Activity, len(l.Activities))
		for i, a := range l.Activities {
			c.Activities[i] = a
			if a.Metadata != nil {
				c.Activities[i].Metadata = make(map[string]any, len(a.Metadata))
				for k, v := range a.Metadata {
					c.Activities[i].Metadata[k] = v
				}
			}
		}
	}
	return &c
}

// Matches reports whether l satisfies every non-empty filter field.
func (f LeadFilters) Matches(l *Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.AssignedAgent != "" && l.AssignedAgent != f.AssignedAgent {
		return false
	}
	if f.Source != "" && l.Source != f.Source {
		return false
	}
	if f.LeadType != "" && l.LeadType != f.LeadType {
		return false
	}
	return true
}
