package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillmentorx-api/internal/models"
)

var studentCols = []string{"id", "user_id", "full_name", "email", "location", "phone", "avatar_url", "education_level", "selected_course", "selected_stack", "created_at", "updated_at"}

func TestStudentFindByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sp.user_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(studentCols).AddRow(
			"p1", "s1", "Sam Student", "sam@example.com", "Jakarta", "+62811111111", "", "bachelor", "web_development", "React", now, now))

	profile, err := repo.FindByUserID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", profile.Email)
	assert.Equal(t, models.EducationBachelor, profile.EducationLevel)
	assert.Equal(t, "React", profile.SelectedStack)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFindByUserIDMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM student_profiles").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserID(context.Background(), "s1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO student_profiles").WillReturnResult(sqlmock.NewResult(0, 1))

	profile := &models.StudentProfile{UserID: "s1", FullName: "Sam Student", EducationLevel: models.EducationSelfTaught}
	require.NoError(t, repo.Create(context.Background(), profile))
	assert.NotEmpty(t, profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO student_profiles").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.StudentProfile{UserID: "s1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStudentUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE student_profiles SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.StudentProfile{UserID: "s1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRequestedStacks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT stack FROM requests WHERE student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"stack"}).AddRow("Node").AddRow("Go"))

	stacks, err := repo.RequestedStacks(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Node", "Go"}, stacks)
	assert.NoError(t, mock.ExpectationsWereMet())
}
