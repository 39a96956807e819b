package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/database"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// MilestoneRepository defines the interface for milestone data access.
// All read paths exclude soft-deleted rows; deleted milestones stay in
// the table but never appear in queries or counts.
type MilestoneRepository interface {
	// CreateWithCapCheck atomically enforces the per-project cap on
	// non-deleted milestones and inserts the milestone. Returns
	// apperrors.ErrLimitExceeded when the project already holds the
	// maximum. The count and the insert are serialized against
	// concurrent creates by locking the project row.
	CreateWithCapCheck(ctx context.Context, milestone *models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	// GetByIDForUpdate reads the milestone with a row lock. Call inside a
	// transaction begun on the tenant connection so a check-then-update
	// sequence cannot interleave with a concurrent writer.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	Update(ctx context.Context, milestone *models.Milestone) error
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, deletedAt time.Time) error
	ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Milestone, error)
	CountActiveByProject(ctx context.Context, projectID uuid.UUID) (int, error)
	AppendProgress(ctx context.Context, entry *models.ProgressEntry) error
	GetProgressHistory(ctx context.Context, milestoneID uuid.UUID) ([]models.ProgressEntry, error)
}

// milestoneRepository implements MilestoneRepository using PostgreSQL.
type milestoneRepository struct{}

// NewMilestoneRepository creates a new milestone repository.
func NewMilestoneRepository() MilestoneRepository {
	return &milestoneRepository{}
}

const milestoneColumns = `
	id, project_id, name, due_date, progress, progress_method, status,
	created_by, assigned_users,
	is_locked, locked_by, locked_at,
	is_deleted, deleted_by, deleted_at,
	approval_requested_by, approval_requested_at, approved_by, approved_at,
	created_at, updated_at`

// scanMilestone reads one milestone row in milestoneColumns order.
func scanMilestone(row pgx.Row) (*models.Milestone, error) {
	var m models.Milestone
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Name,
		&m.DueDate,
		&m.Progress,
		&m.ProgressMethod,
		&m.Status,
		&m.CreatedBy,
		&m.AssignedUsers,
		&m.IsLocked,
		&m.LockedBy,
		&m.LockedAt,
		&m.IsDeleted,
		&m.DeletedBy,
		&m.DeletedAt,
		&m.ApprovalRequestedBy,
		&m.ApprovalRequestedAt,
		&m.ApprovedBy,
		&m.ApprovedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateWithCapCheck atomically enforces the active-milestone cap and
// inserts the milestone.
func (r *milestoneRepository) CreateWithCapCheck(ctx context.Context, milestone *models.Milestone) (err error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the project row so two concurrent creates cannot both pass
	// the count below.
	var projectID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, milestone.ProjectID).Scan(&projectID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock project: %w", err)
	}

	var activeCount int
	countQuery := `SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND NOT is_deleted`
	err = tx.QueryRow(ctx, countQuery, milestone.ProjectID).Scan(&activeCount)
	if err != nil {
		return fmt.Errorf("failed to count active milestones: %w", err)
	}

	if activeCount >= models.MaxActiveMilestones {
		return apperrors.ErrLimitExceeded
	}

	now := time.Now()
	milestone.CreatedAt = now
	milestone.UpdatedAt = now

	insertQuery := `
		INSERT INTO milestones (
			id, project_id, name, due_date, progress, progress_method, status,
			created_by, assigned_users, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, insertQuery,
		milestone.ID,
		milestone.ProjectID,
		milestone.Name,
		milestone.DueDate,
		milestone.Progress,
		milestone.ProgressMethod,
		milestone.Status,
		milestone.CreatedBy,
		milestone.AssignedUsers,
		milestone.CreatedAt,
		milestone.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an active milestone by ID.
func (r *milestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate retrieves an active milestone by ID with a row lock.
func (r *milestoneRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return r.get(ctx, id, true)
}

func (r *milestoneRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Milestone, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1 AND NOT is_deleted`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	milestone, err := scanMilestone(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}

	return milestone, nil
}

// Update writes all mutable milestone fields.
func (r *milestoneRepository) Update(ctx context.Context, milestone *models.Milestone) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	milestone.UpdatedAt = time.Now()

	query := `
		UPDATE milestones
		SET name = $1, due_date = $2, progress = $3, progress_method = $4,
		    status = $5, assigned_users = $6,
		    is_locked = $7, locked_by = $8, locked_at = $9,
		    approval_requested_by = $10, approval_requested_at = $11,
		    approved_by = $12, approved_at = $13,
		    updated_at = $14
		WHERE id = $15 AND NOT is_deleted`

	result, err := scope.Conn.Exec(ctx, query,
		milestone.Name,
		milestone.DueDate,
		milestone.Progress,
		milestone.ProgressMethod,
		milestone.Status,
		milestone.AssignedUsers,
		milestone.IsLocked,
		milestone.LockedBy,
		milestone.LockedAt,
		milestone.ApprovalRequestedBy,
		milestone.ApprovalRequestedAt,
		milestone.ApprovedBy,
		milestone.ApprovedAt,
		milestone.UpdatedAt,
		milestone.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SoftDelete flags a milestone as deleted. The row is retained.
func (r *milestoneRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, deletedAt time.Time) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE milestones
		SET is_deleted = TRUE, deleted_by = $1, deleted_at = $2, updated_at = $2
		WHERE id = $3 AND NOT is_deleted`

	result, err := scope.Conn.Exec(ctx, query, deletedBy, deletedAt, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete milestone: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListActiveByProject retrieves all non-deleted milestones for a project.
func (r *milestoneRepository) ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Milestone, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT ` + milestoneColumns + `
		FROM milestones
		WHERE project_id = $1 AND NOT is_deleted
		ORDER BY created_at`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*models.Milestone
	for rows.Next() {
		milestone, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, milestone)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestones: %w", err)
	}

	return milestones, nil
}

// CountActiveByProject returns the number of non-deleted milestones for a
// project.
func (r *milestoneRepository) CountActiveByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND NOT is_deleted`

	var count int
	if err := scope.Conn.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count milestones: %w", err)
	}

	return count, nil
}

// AppendProgress inserts one history record. History rows are never
// updated or deleted.
func (r *milestoneRepository) AppendProgress(ctx context.Context, entry *models.ProgressEntry) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		INSERT INTO milestone_progress_history (id, milestone_id, progress, changed_by, changed_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := scope.Conn.Exec(ctx, query,
		entry.ID,
		entry.MilestoneID,
		entry.Progress,
		entry.ChangedBy,
		entry.ChangedAt,
		entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to append progress history: %w", err)
	}

	return nil
}

// GetProgressHistory retrieves the full audit trail for a milestone in
// insertion order.
func (r *milestoneRepository) GetProgressHistory(ctx context.Context, milestoneID uuid.UUID) ([]models.ProgressEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, milestone_id, progress, changed_by, changed_at, reason
		FROM milestone_progress_history
		WHERE milestone_id = $1
		ORDER BY changed_at, id`

	rows, err := scope.Conn.Query(ctx, query, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress history: %w", err)
	}
	defer rows.Close()

	var entries []models.ProgressEntry
	for rows.Next() {
		var entry models.ProgressEntry
		err := rows.Scan(
			&entry.ID,
			&entry.MilestoneID,
			&entry.Progress,
			&entry.ChangedBy,
			&entry.ChangedAt,
			&entry.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress history: %w", err)
	}

	return entries, nil
}

// Ensure milestoneRepository implements MilestoneRepository at compile time.
var _ MilestoneRepository = (*milestoneRepository)(nil)
