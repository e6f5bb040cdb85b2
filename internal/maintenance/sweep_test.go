package maintenance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anoixa/image-predict/database/dbtest"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/database/repo/predictions"
	"github.com/anoixa/image-predict/storage"
)

type fixture struct {
	db      *gorm.DB
	store   *storage.LocalStorage
	resets  *accounts.ResetTokenRepository
	sweeper *Sweeper
	kept    *models.Prediction
	missing *models.Prediction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	resets := accounts.NewResetTokenRepository(db)
	ctx := context.Background()

	alice := dbtest.CreateUser(t, db, "alice", time.Now())
	kept := dbtest.CreatePrediction(t, db, alice.ID, "cat", time.Now())
	missing := dbtest.CreatePrediction(t, db, alice.ID, "dog", time.Now())

	require.NoError(t, store.SaveWithContext(ctx, kept.ImageFile, strings.NewReader("kept")))
	require.NoError(t, store.SaveWithContext(ctx, "images/orphan_1_ff.jpg", strings.NewReader("orphan")))
	require.NoError(t, store.SaveWithContext(ctx, "other/unrelated.txt", strings.NewReader("x")))

	require.NoError(t, resets.Create(alice.ID, "expired-token", time.Now().Add(-time.Hour)))
	bob := dbtest.CreateUser(t, db, "bob", time.Now())
	require.NoError(t, resets.Create(bob.ID, "fresh-token", time.Now().Add(time.Hour)))

	return &fixture{
		db:      db,
		store:   store,
		resets:  resets,
		sweeper: NewSweeper(store, predictions.NewRepository(db), resets),
		kept:    kept,
		missing: missing,
	}
}

func (f *fixture) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := f.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func (f *fixture) predictionCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Prediction{}).Count(&n).Error)
	return n
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	f := newFixture(t)

	report, err := f.sweeper.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, []string{f.missing.ImageFile}, report.MissingFiles)
	assert.Equal(t, []string{"images/orphan_1_ff.jpg"}, report.OrphanFiles)
	assert.Zero(t, report.DeletedRecords)
	assert.Zero(t, report.DeletedFiles)
	assert.Zero(t, report.ExpiredTokens)

	assert.True(t, f.exists(t, "images/orphan_1_ff.jpg"))
	assert.Equal(t, int64(2), f.predictionCount(t))
}

func TestRun_Sweeps(t *testing.T) {
	f := newFixture(t)

	report, err := f.sweeper.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	assert.Equal(t, int64(1), report.DeletedRecords)
	assert.Equal(t, 1, report.DeletedFiles)
	assert.Equal(t, int64(1), report.ExpiredTokens)

	assert.False(t, f.exists(t, "images/orphan_1_ff.jpg"))
	assert.True(t, f.exists(t, f.kept.ImageFile))
	assert.True(t, f.exists(t, "other/unrelated.txt"))
	assert.Equal(t, int64(1), f.predictionCount(t))

	var tokens int64
	require.NoError(t, f.db.Model(&models.PasswordResetToken{}).Count(&tokens).Error)
	assert.Equal(t, int64(1), tokens)
}

func TestRun_SkipFlags(t *testing.T) {
	f := newFixture(t)

	report, err := f.sweeper.Run(context.Background(), Options{SkipRecords: true, SkipTokens: true})
	require.NoError(t, err)

	assert.Empty(t, report.MissingFiles)
	assert.Equal(t, 1, report.DeletedFiles)
	assert.Zero(t, report.ExpiredTokens)
	assert.Equal(t, int64(2), f.predictionCount(t))
}
