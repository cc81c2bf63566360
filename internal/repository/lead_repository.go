package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leadcrm/internal/domain"
)

// LeadRepository encapsulates lead persistence.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.LeadFilters) ([]domain.Lead, error)
}

type leadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository instantiates repository.
func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

const leadColumns = `id, name, primary_phone, secondary_phone, primary_email, secondary_email, property_type,
               budget_range, preferred_locations, source, status, assigned_agent, notes, created_at,
               updated_at, last_contacted, lead_score, activities, attachments, created_by, lead_type`

func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	const query = `
        INSERT INTO leads (` + leadColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`
	_, err := r.pool.Exec(ctx, query, leadArgs(lead)...)
	return err
}

func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	const query = `
        UPDATE leads SET name=$2, primary_phone=$3, secondary_phone=$4, primary_email=$5, secondary_email=$6,
            property_type=$7, budget_range=$8, preferred_locations=$9, source=$10, status=$11,
            assigned_agent=$12, notes=$13, created_at=$14, updated_at=$15, last_contacted=$16,
            lead_score=$17, activities=$18, attachments=$19, created_by=$20, lead_type=$21
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, leadArgs(lead)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *leadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return lead, err
}

func (r *leadRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *leadRepository) List(ctx context.Context, filter domain.LeadFilters) ([]domain.Lead, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.AssignedAgent != "" {
		args = append(args, filter.AssignedAgent)
		clauses = append(clauses, fmt.Sprintf("assigned_agent=$%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		clauses = append(clauses, fmt.Sprintf("source=$%d", len(args)))
	}
	if filter.LeadType != "" {
		args = append(args, filter.LeadType)
		clauses = append(clauses, fmt.Sprintf("lead_type=$%d", len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

func leadArgs(lead *domain.Lead) []any {
	return []any{
		lead.ID,
		lead.Name,
		lead.PrimaryPhone,
		lead.SecondaryPhone,
		lead.PrimaryEmail,
		lead.SecondaryEmail,
		lead.PropertyType,
		lead.BudgetRange,
		nonNil(lead.PreferredLocations),
		lead.Source,
		lead.Status,
		lead.AssignedAgent,
		lead.Notes,
		lead.CreatedAt,
		lead.UpdatedAt,
		lead.LastContacted,
		lead.LeadScore,
		nonNilActivities(lead.Activities),
		nonNil(lead.Attachments),
		lead.CreatedBy,
		lead.LeadType,
	}
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var lead domain.Lead
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.PrimaryPhone,
		&lead.SecondaryPhone,
		&lead.PrimaryEmail,
		&lead.SecondaryEmail,
		&lead.PropertyType,
		&lead.BudgetRange,
		&lead.PreferredLocations,
		&lead.Source,
		&lead.Status,
		&lead.AssignedAgent,
		&lead.Notes,
		&lead.CreatedAt,
		&lead.UpdatedAt,
		&lead.LastContacted,
		&lead.LeadScore,
		&lead.Activities,
		&lead.Attachments,
		&lead.CreatedBy,
		&lead.LeadType,
	); err != nil {
		return nil, err
	}
	return &lead, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilActivities(values []domain.Activity) []domain.Activity {
	if values == nil {
		return []domain.Activity{}
	}
	return values
}
