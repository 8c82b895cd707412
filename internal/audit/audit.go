package audit

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/autohaul/autohaul-api/pkg/hashing"
	"github.com/autohaul/autohaul-api/pkg/metrics"
)

// Recorder appends audit entries for state-changing calls. Every call site
// builds its payload explicitly; the recorder never inspects handler
// arguments to guess one.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates an audit recorder over the given database connection
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record hashes payload and appends an entry. Recording is best-effort:
// serialization and storage failures are logged and swallowed so the
// triggering mutation's outcome is never affected.
func (r *Recorder) Record(ctx context.Context, userID uint, action string, payload interface{}) {
	logger := log.With().
		Str("component", "audit").
		Str("action", action).
		Uint("user_id", userID).
		Logger()

	if payload == nil {
		payload = map[string]interface{}{}
	}

	hash, err := hashing.PayloadHash(payload)
	if err != nil {
		logger.Error().Err(err).Msg("audit payload hashing failed")
		return
	}

	entry := Entry{
		UserID:      userID,
		Action:      action,
		PayloadHash: hash,
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.Error().Err(err).Msg("audit append failed")
		return
	}

	metrics.AuditEntries.WithLabelValues(action).Inc()
}
