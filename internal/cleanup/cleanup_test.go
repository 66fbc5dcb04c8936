package cleanup

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/repository"
	"github.com/qs3c/audiosep_server/internal/service"
	"github.com/qs3c/audiosep_server/internal/testutil"
)

func setupCleanupService(t *testing.T) (*Service, *gorm.DB, *storage.LocalStore) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{Guest: config.GuestConfig{TTLHours: 24, DailyLimit: 1}}
	jobRepo := repository.NewJobRepository(db)
	guests := service.NewGuestService(repository.NewGuestRepository(db), jobRepo, cfg)

	return NewService(jobRepo, guests, store, 24), db, store
}

func saveFile(t *testing.T, store *storage.LocalStore, name string, age time.Duration) string {
	t.Helper()

	saved, err := store.Save(context.Background(), name, strings.NewReader("data"))
	require.NoError(t, err)

	modTime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(store.Path(saved), modTime, modTime))
	return saved
}

func TestOrphans(t *testing.T) {
	svc, db, store := setupCleanupService(t)
	user := testutil.TestUser(t, db)

	referenced := saveFile(t, store, "kept_song.mp3", 48*time.Hour)
	orphan := saveFile(t, store, "orphan_song.mp3", 48*time.Hour)
	fresh := saveFile(t, store, "fresh_song.mp3", time.Minute)

	uid := user.ID
	require.NoError(t, db.Create(&model.AudioJob{
		UserID:       &uid,
		OriginalName: "song.mp3",
		InputPath:    referenced,
		Status:       model.JobStatusDone,
	}).Error)

	// Dry run only reports
	report := &Report{DryRun: true}
	require.NoError(t, svc.Orphans(context.Background(), report))
	assert.Equal(t, 3, report.ScannedFiles)
	assert.Equal(t, 1, report.OrphanFiles)
	assert.Equal(t, 0, report.DeletedFiles)
	assert.FileExists(t, store.Path(orphan))

	report = &Report{}
	require.NoError(t, svc.Orphans(context.Background(), report))
	assert.Equal(t, 1, report.DeletedFiles)
	assert.Equal(t, int64(4), report.OrphanBytes)
	assert.NoFileExists(t, store.Path(orphan))
	assert.FileExists(t, store.Path(referenced))
	assert.FileExists(t, store.Path(fresh))
}

func TestGuests(t *testing.T) {
	svc, db, _ := setupCleanupService(t)

	expired := testutil.TestGuest(t, db, testutil.WithGuestExpiresAt(time.Now().UTC().Add(-72*time.Hour)))
	recent := testutil.TestGuest(t, db, testutil.WithGuestExpiresAt(time.Now().UTC().Add(-time.Hour)))
	active := testutil.TestGuest(t, db)

	report := &Report{DryRun: true}
	require.NoError(t, svc.Guests(24*time.Hour, report))
	assert.Equal(t, 1, report.ExpiredGuests)

	var count int64
	require.NoError(t, db.Model(&model.GuestIdentity{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	report = &Report{}
	require.NoError(t, svc.Guests(24*time.Hour, report))
	assert.Equal(t, 1, report.ExpiredGuests)

	var remaining []int64
	require.NoError(t, db.Model(&model.GuestIdentity{}).Order("id").Pluck("id", &remaining).Error)
	assert.Equal(t, []int64{recent.ID, active.ID}, remaining)
	assert.NotContains(t, remaining, expired.ID)
}
