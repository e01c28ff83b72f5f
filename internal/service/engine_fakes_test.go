package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/internal/repository"
	"github.com/noah-isme/sma-academic-api/pkg/config"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTestReconciler(t *testing.T, metrics *MetricsService) (*Reconciler, sqlmock.Sqlmock) {
	provider, mock := newTxProviderMock(t)
	return NewReconciler(provider, metrics, nil, config.ReconcileConfig{Timeout: time.Second, LockMode: config.LockModeRow}), mock
}

// expectCommits queues n successful transactions.
func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func day(raw string) time.Time {
	d, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		panic(err)
	}
	return d
}

// refStore answers reference lookups from a map of kind -> id -> active.
type refStore struct {
	rows map[models.EntityKind]map[string]bool
	err  error
}

func newRefStore() *refStore {
	return &refStore{rows: map[models.EntityKind]map[string]bool{}}
}

func (r *refStore) set(kind models.EntityKind, id string, active bool) *refStore {
	if r.rows[kind] == nil {
		r.rows[kind] = map[string]bool{}
	}
	r.rows[kind][id] = active
	return r
}

func (r *refStore) Statuses(ctx context.Context, kind models.EntityKind, ids []string) (map[string]bool, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := map[string]bool{}
	for _, id := range ids {
		if active, ok := r.rows[kind][id]; ok {
			out[id] = active
		}
	}
	return out, nil
}

type periodStore struct {
	periods map[string]*models.AcademicPeriod
}

func newPeriodStore(periods ...models.AcademicPeriod) *periodStore {
	s := &periodStore{periods: map[string]*models.AcademicPeriod{}}
	for i := range periods {
		p := periods[i]
		s.periods[p.ID] = &p
	}
	return s
}

func (s *periodStore) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	if p, ok := s.periods[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (s *periodStore) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	var best *models.AcademicPeriod
	for _, p := range s.periods {
		if p.IsActive && (best == nil || p.StartDate.After(best.StartDate)) {
			best = p
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

type lockRecorder struct {
	locked []string
}

func (l *lockRecorder) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	l.locked = append(l.locked, id)
	return nil
}

// enrollmentStore is an in-memory enrollments table keyed by (student, class).
type enrollmentStore struct {
	rows []models.Enrollment
}

func (s *enrollmentStore) add(studentID string, classIDs ...string) {
	for _, classID := range classIDs {
		s.rows = append(s.rows, models.Enrollment{ID: studentID + "-" + classID, StudentID: studentID, ClassID: classID})
	}
}

func (s *enrollmentStore) filter(keep func(models.Enrollment) bool) []models.Enrollment {
	out := []models.Enrollment{}
	for _, e := range s.rows {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *enrollmentStore) ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Enrollment, error) {
	out := s.filter(func(e models.Enrollment) bool { return e.StudentID == studentID })
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out, nil
}

func (s *enrollmentStore) ListByClass(ctx context.Context, exec sqlx.ExtContext, classID string) ([]models.Enrollment, error) {
	out := s.filter(func(e models.Enrollment) bool { return e.ClassID == classID })
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (s *enrollmentStore) MemberIDs(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error) {
	members := map[string]bool{}
	for _, e := range s.rows {
		if e.ClassID == classID {
			members[e.StudentID] = true
		}
	}
	return members, nil
}

func (s *enrollmentStore) DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error) {
	before := len(s.rows)
	s.rows = s.filter(func(e models.Enrollment) bool { return e.StudentID != studentID })
	return int64(before - len(s.rows)), nil
}

func (s *enrollmentStore) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error) {
	before := len(s.rows)
	s.rows = s.filter(func(e models.Enrollment) bool { return e.ClassID != classID })
	return int64(before - len(s.rows)), nil
}

func (s *enrollmentStore) BulkInsert(ctx context.Context, exec sqlx.ExtContext, enrollments []models.Enrollment) error {
	for _, e := range enrollments {
		for _, existing := range s.rows {
			if existing.StudentID == e.StudentID && existing.ClassID == e.ClassID {
				return &repository.DuplicateRowError{Table: "enrollments", Key: e.StudentID + "/" + e.ClassID}
			}
		}
		e.ID = e.StudentID + "-" + e.ClassID
		s.rows = append(s.rows, e)
	}
	return nil
}

func (s *enrollmentStore) CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	return len(s.filter(func(e models.Enrollment) bool { return e.StudentID == studentID })), nil
}

func (s *enrollmentStore) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	return len(s.filter(func(e models.Enrollment) bool { return e.ClassID == classID })), nil
}

// attendanceStore is an in-memory attendance table keyed by (student, class, date).
type attendanceStore struct {
	rows      []models.AttendanceRecord
	insertErr error
}

func (s *attendanceStore) ListByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	out := []models.AttendanceRecord{}
	for _, r := range s.rows {
		if r.ClassID == classID && r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (s *attendanceStore) DeleteByClassDate(ctx context.Context, exec sqlx.ExtContext, classID string, date time.Time) (int64, error) {
	kept := s.rows[:0:0]
	for _, r := range s.rows {
		if !(r.ClassID == classID && r.Date.Equal(date)) {
			kept = append(kept, r)
		}
	}
	removed := len(s.rows) - len(kept)
	s.rows = kept
	return int64(removed), nil
}

func (s *attendanceStore) BulkInsert(ctx context.Context, exec sqlx.ExtContext, records []models.AttendanceRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, rec := range records {
		rec.ID = uuid.NewString()
		s.rows = append(s.rows, rec)
	}
	return nil
}

func (s *attendanceStore) StudentCounts(ctx context.Context, studentID, classID string) (models.AttendanceCounts, error) {
	var counts models.AttendanceCounts
	for _, r := range s.rows {
		if r.StudentID == studentID && r.ClassID == classID {
			counts.Add(r.Status, 1)
		}
	}
	return counts, nil
}

func (s *attendanceStore) count(match func(models.AttendanceRecord) bool) int {
	n := 0
	for _, r := range s.rows {
		if match(r) {
			n++
		}
	}
	return n
}

func (s *attendanceStore) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	return s.count(func(r models.AttendanceRecord) bool { return r.ClassID == classID }), nil
}

func (s *attendanceStore) CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	return s.count(func(r models.AttendanceRecord) bool { return r.StudentID == studentID }), nil
}

func (s *attendanceStore) CountByRecorder(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error) {
	return s.count(func(r models.AttendanceRecord) bool { return r.RecordedBy != nil && *r.RecordedBy == teacherID }), nil
}

// gradeStore is an in-memory grades table with upsert by composite key.
type gradeStore struct {
	rows map[models.GradeKey]models.Grade
}

func newGradeStore() *gradeStore {
	return &gradeStore{rows: map[models.GradeKey]models.Grade{}}
}

func (s *gradeStore) Upsert(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) (*models.Grade, error) {
	row := *grade
	if existing, ok := s.rows[grade.Key()]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	}
	s.rows[grade.Key()] = row
	return &row, nil
}

func (s *gradeStore) ListByClassPeriod(ctx context.Context, classID, periodID string) ([]models.Grade, error) {
	out := []models.Grade{}
	for _, g := range s.rows {
		if g.ClassID == classID && g.AcademicPeriodID == periodID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *gradeStore) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	n := 0
	for _, g := range s.rows {
		if g.ClassID == classID {
			n++
		}
	}
	return n, nil
}

func (s *gradeStore) CountByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int, error) {
	n := 0
	for _, g := range s.rows {
		if g.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

// scheduleStore is an in-memory schedule_blocks table.
type scheduleStore struct {
	rows []models.ScheduleBlock
}

func (s *scheduleStore) ListByClassPeriod(ctx context.Context, exec sqlx.ExtContext, classID, periodID string) ([]models.ScheduleBlock, error) {
	out := []models.ScheduleBlock{}
	for _, b := range s.rows {
		if b.ClassID == classID && b.AcademicPeriodID == periodID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek.Index() != out[j].DayOfWeek.Index() {
			return out[i].DayOfWeek.Index() < out[j].DayOfWeek.Index()
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *scheduleStore) DeleteByClassPeriod(ctx context.Context, exec sqlx.ExtContext, classID, periodID string) (int64, error) {
	return s.remove(func(b models.ScheduleBlock) bool { return b.ClassID == classID && b.AcademicPeriodID == periodID }), nil
}

func (s *scheduleStore) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error) {
	return s.remove(func(b models.ScheduleBlock) bool { return b.ClassID == classID }), nil
}

func (s *scheduleStore) remove(match func(models.ScheduleBlock) bool) int64 {
	kept := s.rows[:0:0]
	for _, b := range s.rows {
		if !match(b) {
			kept = append(kept, b)
		}
	}
	removed := len(s.rows) - len(kept)
	s.rows = kept
	return int64(removed)
}

func (s *scheduleStore) BulkInsert(ctx context.Context, exec sqlx.ExtContext, blocks []models.ScheduleBlock) error {
	s.rows = append(s.rows, blocks...)
	return nil
}

// classStore holds class sections and mirrors active flags into refs.
type classStore struct {
	lockRecorder
	classes map[string]*models.ClassSection
	refs    *refStore
}

func newClassStore(refs *refStore, classes ...models.ClassSection) *classStore {
	s := &classStore{classes: map[string]*models.ClassSection{}, refs: refs}
	for i := range classes {
		c := classes[i]
		s.classes[c.ID] = &c
		refs.set(models.EntityClass, c.ID, c.IsActive)
	}
	return s
}

func (s *classStore) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	if c, ok := s.classes[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *classStore) ListActiveByPlacement(ctx context.Context, exec sqlx.ExtContext, gradeID, sectionID string) ([]models.ClassSection, error) {
	out := []models.ClassSection{}
	for _, c := range s.classes {
		if c.IsActive && c.GradeID == gradeID && c.SectionID == sectionID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *classStore) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	s.classes[id].IsActive = active
	s.refs.set(models.EntityClass, id, active)
	return nil
}

func (s *classStore) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	if _, ok := s.classes[id]; !ok {
		return 0, nil
	}
	delete(s.classes, id)
	delete(s.refs.rows[models.EntityClass], id)
	return 1, nil
}

func (s *classStore) CountByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error) {
	n := 0
	for _, c := range s.classes {
		if c.TeacherID != nil && *c.TeacherID == teacherID {
			n++
		}
	}
	return n, nil
}

// personStore holds students or teachers with their active flag and placement.
type personStore struct {
	lockRecorder
	kind       models.EntityKind
	refs       *refStore
	placements map[string]models.Placement
}

func newPersonStore(kind models.EntityKind, refs *refStore) *personStore {
	return &personStore{kind: kind, refs: refs, placements: map[string]models.Placement{}}
}

func (s *personStore) put(id string, active bool, placement models.Placement) {
	s.refs.set(s.kind, id, active)
	s.placements[id] = placement
}

func (s *personStore) UpdatePlacement(ctx context.Context, exec sqlx.ExtContext, id string, placement models.Placement) error {
	s.placements[id] = placement
	return nil
}

func (s *personStore) ListActiveIDsByPlacement(ctx context.Context, exec sqlx.ExtContext, placement models.Placement) ([]string, error) {
	ids := []string{}
	for id, p := range s.placements {
		if p == placement && s.refs.rows[s.kind][id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *personStore) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	s.refs.set(s.kind, id, active)
	return nil
}

func (s *personStore) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	if _, ok := s.refs.rows[s.kind][id]; !ok {
		return 0, nil
	}
	delete(s.refs.rows[s.kind], id)
	delete(s.placements, id)
	return 1, nil
}
