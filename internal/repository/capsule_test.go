package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/chronos/internal/models"
	"github.com/google/uuid"
)

var columns = []string{"id", "owner_id", "title", "message", "created_at", "unlock_at", "status", "attachments", "theme_color"}

func setupMock(t *testing.T) (*PostgresCapsuleRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresCapsuleRepository(db)
	repo.now = func() time.Time { return time.UnixMilli(1700000000000) }
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

// uuidArg matches any well-formed UUID string.
type uuidArg struct{}

func (uuidArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func TestCreate_AssignsID(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	c := models.Capsule{
		ID:         "client-chosen",
		Title:      "Hello",
		Message:    "line1\nline2",
		CreatedAt:  100,
		UnlockAt:   200,
		Status:     models.StatusLocked,
		ThemeColor: "indigo",
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO capsules (id, owner_id, title, message, created_at, unlock_at, status, attachments, theme_color)`)).
		WithArgs(sqlmock.AnyArg(), "owner1", "Hello", "line1\nline2", int64(100), int64(200), "LOCKED", "[]", "indigo").
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.Create(context.Background(), "owner1", c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "client-chosen" || !(uuidArg{}).Match(id) {
		t.Errorf("id = %q; want a store-assigned uuid", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreate_Error(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO capsules`)).
		WillReturnError(errors.New("insert fail"))

	_, err := repo.Create(context.Background(), "owner1", models.Capsule{Title: "t"})
	if err == nil || !regexp.MustCompile(`insert capsule`).MatchString(err.Error()) {
		t.Errorf("expected insert capsule error, got %v", err)
	}
}

func TestListByOwner_NormalizesAttachments(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(columns).
		AddRow("a", "owner1", "A", "", int64(1), int64(10), "LOCKED", []byte(`[{"id":"x","type":"IMAGE","url":"data:image/png;base64,AA==","name":"a.png"}]`), "indigo").
		AddRow("b", "owner1", "B", "", int64(1), int64(20), "UNLOCKED", nil, "cyan").
		AddRow("c", "owner1", "C", "", int64(1), int64(30), "LOCKED", []byte(`null`), "")

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE owner_id = $1 AND deleted = false`)).
		WithArgs("owner1").
		WillReturnRows(rows)

	capsules, err := repo.ListByOwner(context.Background(), "owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(capsules) != 3 {
		t.Fatalf("expected 3 capsules, got %d", len(capsules))
	}
	if got := capsules[0].Attachments; len(got) != 1 || got[0].Type != models.MediaImage || !got[0].IsInline() {
		t.Errorf("unexpected attachments: %+v", got)
	}
	for _, c := range capsules[1:] {
		if c.Attachments == nil || len(c.Attachments) != 0 {
			t.Errorf("capsule %s attachments = %#v; want empty slice", c.ID, c.Attachments)
		}
	}
	if capsules[1].Status != models.StatusUnlocked {
		t.Errorf("status = %q; want UNLOCKED", capsules[1].Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListByOwner_Empty(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM capsules`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(columns))

	capsules, err := repo.ListByOwner(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capsules == nil || len(capsules) != 0 {
		t.Errorf("capsules = %#v; want empty non-nil slice", capsules)
	}
}

func TestListByOwner_Error(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM capsules`)).
		WillReturnError(errors.New("query fail"))

	_, err := repo.ListByOwner(context.Background(), "owner1")
	if err == nil || !regexp.MustCompile(`ListByOwner`).MatchString(err.Error()) {
		t.Errorf("expected ListByOwner error, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE owner_id = $1 AND id = $2 AND deleted = false`)).
		WithArgs("owner1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "owner1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE owner_id = $1 AND id = $2 AND deleted = false`)).
		WithArgs("owner1", "a").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("a", "owner1", "A", "hi", int64(1), int64(10), "LOCKED", []byte(`[]`), "indigo"))

	c, err := repo.GetByID(context.Background(), "owner1", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "a" || c.UserID != "owner1" || c.UnlockAt != 10 {
		t.Errorf("unexpected capsule: %+v", c)
	}
}

func TestUpdateFields_Status(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	status := models.StatusUnlocked
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE capsules SET status = $3 WHERE owner_id = $1 AND id = $2 AND deleted = false`)).
		WithArgs("owner1", "a", "UNLOCKED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFields(context.Background(), "owner1", "a", Fields{Status: &status}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateFields_AttachmentsAndStatus(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	status := models.StatusUnlocked
	atts := []models.Attachment{{ID: "x", Type: models.MediaFile, URL: "https://cdn/x", Name: "x.txt"}}
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE capsules SET status = $3, attachments = $4 WHERE`)).
		WithArgs("owner1", "a", "UNLOCKED", `[{"id":"x","type":"FILE","url":"https://cdn/x","name":"x.txt"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateFields(context.Background(), "owner1", "a", Fields{Status: &status, Attachments: &atts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateFields_IfStatus(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	status, from := models.StatusUnlocked, models.StatusLocked
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE capsules SET status = $3 WHERE owner_id = $1 AND id = $2 AND deleted = false AND status = $4`)).
		WithArgs("owner1", "a", "UNLOCKED", "LOCKED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), "owner1", "a", Fields{Status: &status, IfStatus: &from})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound for an already unlocked capsule", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateFields_NotFound(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	status := models.StatusUnlocked
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE capsules SET status = $3`)).
		WithArgs("owner1", "gone", "UNLOCKED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), "owner1", "gone", Fields{Status: &status})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestDelete_SoftDeletes(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE capsules SET deleted = true, deleted_at = $3`)).
		WithArgs("owner1", "a", int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "owner1", "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDelete_Error(t *testing.T) {
	repo, mock, cleanup := setupMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE capsules SET deleted = true`)).
		WillReturnError(errors.New("delete fail"))

	err := repo.Delete(context.Background(), "owner1", "a")
	if err == nil || !regexp.MustCompile(`delete capsule`).MatchString(err.Error()) {
		t.Errorf("expected delete capsule error, got %v", err)
	}
}
