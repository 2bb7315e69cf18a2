package pei

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peiplan_backend/internal/model"
	"peiplan_backend/internal/testutil"
	"peiplan_backend/pkg/ai"
	"peiplan_backend/pkg/apperr"
)

type fakeGenerator struct {
	created     int
	renewed     int
	lastContext ai.PEIContext
}

func (f *fakeGenerator) CreatePEIContent(ctx context.Context, cfg ai.PEIContext) (string, error) {
	f.created++
	f.lastContext = cfg
	return "generated plan", nil
}

func (f *fakeGenerator) RenewPEIContent(ctx context.Context, cfg ai.PEIContext) (string, error) {
	f.renewed++
	f.lastContext = cfg
	return "renewed plan", nil
}

func TestCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	generator := &fakeGenerator{}
	service := NewService(db, generator)

	director := testutil.TestDirector(t, db)
	teacher := testutil.TestTeacher(t, db, director)
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)
	student := testutil.TestStudent(t, db, classroom, teacher)

	input := CreateInput{StudentID: student.ID}

	record, err := service.Create(context.Background(), input, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "generated plan", record.Content)
	assert.Equal(t, 1, record.Version)
	assert.False(t, record.IsRenewal)
	assert.Equal(t, model.PEIStatusActive, record.Status)
	assert.WithinDuration(t, record.StartDate.AddDate(0, 3, 0), record.EndDate, time.Second)

	t.Run("a second initial plan conflicts", func(t *testing.T) {
		_, err := service.Create(context.Background(), input, teacher.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
		assert.Equal(t, 1, generator.created)
	})

	t.Run("student without assignment is not found", func(t *testing.T) {
		orphan := &model.Student{
			FullName:    "Unassigned",
			SchoolID:    school.ID,
			CreatedByID: teacher.ID,
		}
		require.NoError(t, db.Create(orphan).Error)

		_, err := service.Create(context.Background(), CreateInput{StudentID: orphan.ID}, teacher.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})
}

func TestRenew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	generator := &fakeGenerator{}
	service := NewService(db, generator)

	director := testutil.TestDirector(t, db)
	teacher := testutil.TestTeacher(t, db, director)
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)
	student := testutil.TestStudent(t, db, classroom, teacher)

	input := CreateInput{StudentID: student.ID}

	t.Run("no previous plan is not found", func(t *testing.T) {
		_, err := service.Renew(context.Background(), input, teacher.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	previous := testutil.TestPEI(t, db, student, teacher)

	t.Run("active plan cannot be renewed", func(t *testing.T) {
		_, err := service.Renew(context.Background(), input, teacher.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	})

	t.Run("expired plan renews", func(t *testing.T) {
		require.NoError(t, db.Model(previous).Update("status", model.PEIStatusExpired).Error)

		oldNote := testutil.TestNote(t, db, student, teacher)
		require.NoError(t, db.Model(&model.Note{}).
			Where("id = ?", oldNote.ID).
			Update("created_at", time.Now().AddDate(0, -4, 0)).Error)
		recentNote := testutil.TestNote(t, db, student, teacher)

		record, err := service.Renew(context.Background(), input, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, "renewed plan", record.Content)
		assert.Equal(t, previous.Version+1, record.Version)
		assert.True(t, record.IsRenewal)
		assert.Equal(t, model.PEIStatusActive, record.Status)

		// The generator saw the previous plan and the recent notes.
		require.NotNil(t, generator.lastContext.PreviousPEI)
		assert.Equal(t, previous.ID, generator.lastContext.PreviousPEI.ID)
		require.Len(t, generator.lastContext.LatestNotes, 1)
		assert.Equal(t, recentNote.ID, generator.lastContext.LatestNotes[0].ID)

		var gotPrevious model.PEI
		require.NoError(t, db.First(&gotPrevious, previous.ID).Error)
		assert.Equal(t, model.PEIStatusInactive, gotPrevious.Status)

		// Notes older than the window are purged, recent ones survive.
		var count int64
		db.Model(&model.Note{}).Where("id = ?", oldNote.ID).Count(&count)
		assert.Equal(t, int64(0), count)
		db.Model(&model.Note{}).Where("id = ?", recentNote.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("renewed plan cannot be renewed again until expired", func(t *testing.T) {
		_, err := service.Renew(context.Background(), input, teacher.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	})
}

func TestExpireOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	service := NewService(db, &fakeGenerator{})

	director := testutil.TestDirector(t, db)
	teacher := testutil.TestTeacher(t, db, director)
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)
	student := testutil.TestStudent(t, db, classroom, teacher)

	// The fixture's window ends now, so a sweep one day later catches it.
	overdue := testutil.TestPEI(t, db, student, teacher)

	require.NoError(t, service.ExpireOverdue(time.Now().AddDate(0, 0, 1)))

	var got model.PEI
	require.NoError(t, db.First(&got, overdue.ID).Error)
	assert.Equal(t, model.PEIStatusExpired, got.Status)

	// Re-running is a no-op.
	require.NoError(t, service.ExpireOverdue(time.Now().AddDate(0, 0, 1)))
	require.NoError(t, db.First(&got, overdue.ID).Error)
	assert.Equal(t, model.PEIStatusExpired, got.Status)
}

func TestFindLatestByStudent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	service := NewService(db, &fakeGenerator{})

	director := testutil.TestDirector(t, db)
	teacher := testutil.TestTeacher(t, db, director)
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)
	student := testutil.TestStudent(t, db, classroom, teacher)

	_, err := service.FindLatestByStudent(student.ID, teacher.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	first := testutil.TestPEI(t, db, student, teacher, testutil.WithPEIStatus(model.PEIStatusInactive))
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)
	latest := testutil.TestPEI(t, db, student, teacher, testutil.WithPEIVersion(2))

	got, err := service.FindLatestByStudent(student.ID, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
}
