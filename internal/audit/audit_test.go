package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/autohaul/autohaul-api/pkg/hashing"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Entry{}))
	return db
}

func TestRecordAppendsHashedEntry(t *testing.T) {
	db := newTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	payload := map[string]interface{}{"name": "Jane Doe", "origin_zip": "94103"}
	recorder.Record(ctx, 7, ActionCreateLead, payload)

	var entries []Entry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)

	assert.Equal(t, uint(7), entries[0].UserID)
	assert.Equal(t, ActionCreateLead, entries[0].Action)

	wantHash, err := hashing.PayloadHash(payload)
	require.NoError(t, err)
	assert.Equal(t, wantHash, entries[0].PayloadHash)
}

func TestRecordNeverStoresRawPayload(t *testing.T) {
	db := newTestDB(t)
	recorder := NewRecorder(db)

	recorder.Record(context.Background(), 1, ActionUpdateOrder, map[string]string{
		"notes": "customer phone 555-0100",
	})

	var entry Entry
	require.NoError(t, db.First(&entry).Error)
	assert.NotContains(t, entry.PayloadHash, "555-0100")
	assert.Len(t, entry.PayloadHash, 64)
}

func TestRecordNilPayload(t *testing.T) {
	db := newTestDB(t)
	recorder := NewRecorder(db)

	recorder.Record(context.Background(), 1, ActionDeleteLead, nil)

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordStoreFailureNeverPropagates(t *testing.T) {
	// No migration: the insert hits a missing table and must be swallowed
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "bare.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	recorder := NewRecorder(db)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), 1, ActionCreateOrder, map[string]int{"lead_id": 1})
	})
}

func TestRecordSerializationFailureNeverPropagates(t *testing.T) {
	db := newTestDB(t)
	recorder := NewRecorder(db)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), 1, ActionCreateOrder, map[string]interface{}{
			"fn": func() {},
		})
	})

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "unserializable payload writes nothing")
}

func TestEntriesOrderedByCreationPerActor(t *testing.T) {
	db := newTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	recorder.Record(ctx, 3, ActionCreateLead, map[string]int{"seq": 1})
	recorder.Record(ctx, 3, ActionUpdateLead, map[string]int{"seq": 2})
	recorder.Record(ctx, 3, ActionDeleteLead, map[string]int{"seq": 3})

	var entries []Entry
	require.NoError(t, db.Where("user_id = ?", 3).Order("id").Find(&entries).Error)
	require.Len(t, entries, 3)

	assert.Equal(t, ActionCreateLead, entries[0].Action)
	assert.Equal(t, ActionUpdateLead, entries[1].Action)
	assert.Equal(t, ActionDeleteLead, entries[2].Action)
}
