package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-academic-api/internal/models"
)

func TestAttendanceRepositoryReplaceSequence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE class_id = $1 AND date = $2")).
		WithArgs("class-c", date).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "stu-1", "class-c", date, models.AttendanceStatusLate, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("att-1"))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	removed, err := repo.DeleteByClassDate(context.Background(), tx, "class-c", date)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	records := []models.AttendanceRecord{{StudentID: "stu-1", ClassID: "class-c", Date: date, Status: models.AttendanceStatusLate}}
	require.NoError(t, repo.BulkInsert(context.Background(), tx, records))
	assert.NotEmpty(t, records[0].ID)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM attendance_records WHERE student_id = $1 AND class_id = $2 GROUP BY status")).
		WithArgs("stu-1", "class-c").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("PRESENT", 6).
			AddRow("LATE", 2).
			AddRow("ABSENT", 2))

	counts, err := repo.StudentCounts(context.Background(), "stu-1", "class-c")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceCounts{Present: 6, Late: 2, Absent: 2, Total: 10}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByClassDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "date", "status", "notes", "recorded_by", "created_at"}).
		AddRow("att-1", "stu-1", "class-c", date, "PRESENT", nil, "teacher-1", time.Now())
	mock.ExpectQuery("FROM attendance_records WHERE class_id = \\$1 AND date = \\$2").
		WithArgs("class-c", date).
		WillReturnRows(rows)

	records, err := repo.ListByClassDate(context.Background(), nil, "class-c", date)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].RecordedBy)
	assert.Equal(t, "teacher-1", *records[0].RecordedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
