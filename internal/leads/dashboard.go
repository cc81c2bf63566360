package leads

import (
	"time"

	"github.com/spec-kit/leadcrm/internal/domain"
)

// Summary is the dashboard roll-up of a lead list.
type Summary struct {
	Total     int                       `json:"total" yaml:"total"`
	NewToday  int                       `json:"newToday" yaml:"newToday"`
	ColdLeads int                       `json:"coldLeads" yaml:"coldLeads"`
	Converted int                       `json:"converted" yaml:"converted"`
	ByStatus  map[domain.LeadStatus]int `json:"byStatus" yaml:"byStatus"`
	BySource  map[domain.LeadSource]int `json:"bySource" yaml:"bySource"`
}

// Summarize counts leads. "Today" is the calendar day of now in now's location.
func Summarize(leads []domain.Lead, now time.Time) Summary {
	sum := Summary{
		Total:    len(leads),
		ByStatus: map[domain.LeadStatus]int{},
		BySource: map[domain.LeadSource]int{},
	}
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	for _, lead := range leads {
		if !lead.CreatedAt.Before(startOfDay) && !lead.CreatedAt.After(now) {
			sum.NewToday++
		}
		if lead.LeadType == domain.LeadTypeCold {
			sum.ColdLeads++
		}
		if lead.Status == domain.StatusConverted {
			sum.Converted++
		}
		sum.ByStatus[lead.Status]++
		sum.BySource[lead.Source]++
	}
	return sum
}

// ConversionRate is converted over total, or 0 for an empty list.
func (s Summary) ConversionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Converted) / float64(s.Total)
}
