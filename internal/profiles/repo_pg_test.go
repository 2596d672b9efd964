package profiles

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoUpsertEncodesLists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs("user-1", []byte(`["peanuts"]`), []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Upsert(context.Background(), Profile{UserID: "user-1", Allergies: []string{"peanuts"}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	updated := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"user_id", "allergies", "medications", "updated_at"}).
		AddRow("user-1", []byte(`["peanuts","milk"]`), []byte(`["warfarin"]`), updated)
	mock.ExpectQuery("SELECT user_id, allergies, medications, updated_at").
		WithArgs("user-1").
		WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	profile, err := repo.GetByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if !reflect.DeepEqual(profile.Allergies, []string{"peanuts", "milk"}) || !reflect.DeepEqual(profile.Medications, []string{"warfarin"}) {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if !profile.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected updatedAt %v", profile.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByUserIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT user_id").WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	repo := &PGRepo{DB: db}
	if _, err := repo.GetByUserID(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
