// Package repository provides the PostgreSQL-backed record store for
// capsules. Every query is scoped to one owner's partition.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/chronos/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a capsule does not exist, belongs to another
// owner or has been deleted.
var ErrNotFound = errors.New("capsule not found")

const capsuleColumns = `id, owner_id, title, message, created_at, unlock_at, status, attachments, theme_color`

// Fields is a partial update. Nil fields are left unchanged.
type Fields struct {
	Status      *models.Status
	Attachments *[]models.Attachment
	// IfStatus restricts the update to a capsule currently in that status.
	// A capsule in any other status is reported as ErrNotFound.
	IfStatus *models.Status
}

// PostgresCapsuleRepository implements capsule persistence against a PostgreSQL database.
type PostgresCapsuleRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// now stamps soft deletes; replaced in tests.
	now func() time.Time
}

// NewPostgresCapsuleRepository creates a repository over db.
// db must be a valid connection to a PostgreSQL instance.
func NewPostgresCapsuleRepository(db *sql.DB) *PostgresCapsuleRepository {
	return &PostgresCapsuleRepository{DB: db, now: time.Now}
}

// Create inserts c for ownerID and returns the identifier the store assigned.
// Any ID already set on c is ignored.
func (r *PostgresCapsuleRepository) Create(ctx context.Context, ownerID string, c models.Capsule) (string, error) {
	attachments, err := json.Marshal(models.NormalizeAttachments(c.Attachments))
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}

	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO capsules (id, owner_id, title, message, created_at, unlock_at, status, attachments, theme_color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, ownerID, c.Title, c.Message, c.CreatedAt, c.UnlockAt, string(c.Status), string(attachments), c.ThemeColor)
	if err != nil {
		return "", fmt.Errorf("insert capsule: %w", err)
	}
	return id, nil
}

// ListByOwner returns the owner's live capsules ordered by unlock time.
//
//	ctx:     context for cancellation and deadlines
//	ownerID: identifier of the owner
//
// Missing or null attachment columns come back as empty slices.
func (r *PostgresCapsuleRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Capsule, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+capsuleColumns+` FROM capsules
		WHERE owner_id = $1 AND deleted = false
		ORDER BY unlock_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	defer rows.Close()

	capsules := []models.Capsule{}
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, err
		}
		capsules = append(capsules, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	return capsules, nil
}

// GetByID retrieves a single live capsule of the owner.
func (r *PostgresCapsuleRepository) GetByID(ctx context.Context, ownerID, id string) (models.Capsule, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+capsuleColumns+` FROM capsules
		WHERE owner_id = $1 AND id = $2 AND deleted = false
	`, ownerID, id)
	c, err := scanCapsule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Capsule{}, ErrNotFound
	}
	return c, err
}

// UpdateFields applies a partial update to one capsule. An empty Fields is a
// no-op that still verifies the capsule exists.
func (r *PostgresCapsuleRepository) UpdateFields(ctx context.Context, ownerID, id string, f Fields) error {
	var (
		sets []string
		args = []any{ownerID, id}
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Attachments != nil {
		b, err := json.Marshal(models.NormalizeAttachments(*f.Attachments))
		if err != nil {
			return fmt.Errorf("encode attachments: %w", err)
		}
		args = append(args, string(b))
		sets = append(sets, fmt.Sprintf("attachments = $%d", len(args)))
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, ownerID, id)
		return err
	}

	where := `owner_id = $1 AND id = $2 AND deleted = false`
	if f.IfStatus != nil {
		args = append(args, string(*f.IfStatus))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE capsules SET `+strings.Join(sets, ", ")+` WHERE `+where,
		args...)
	if err != nil {
		return fmt.Errorf("update capsule: %w", err)
	}
	return expectOne(res)
}

// Delete soft-deletes a capsule. The row is purged later by the cleaner.
func (r *PostgresCapsuleRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE capsules SET deleted = true, deleted_at = $3
		WHERE owner_id = $1 AND id = $2 AND deleted = false
	`, ownerID, id, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("delete capsule: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapsule(s scanner) (models.Capsule, error) {
	var (
		c           models.Capsule
		status      string
		attachments []byte
	)
	err := s.Scan(&c.ID, &c.UserID, &c.Title, &c.Message, &c.CreatedAt, &c.UnlockAt, &status, &attachments, &c.ThemeColor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan: %w", err)
	}
	c.Status = models.Status(status)
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return c, fmt.Errorf("decode attachments of %s: %w", c.ID, err)
		}
	}
	c.Attachments = models.NormalizeAttachments(c.Attachments)
	return c, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
