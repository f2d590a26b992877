package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/outbox"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GrantOutcome int

const (
	GrantInserted GrantOutcome = iota + 1
	GrantAlreadyHeld
)

type GrantOptions struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// GrantGuard awards achievements at most once per user. The unique index on
// (user_id, achievement_id) decides races; nothing is checked beforehand.
type GrantGuard struct {
	db          *gorm.DB
	catalog     *Catalog
	events      *outbox.Recorder
	log         *zap.Logger
	maxAttempts int
	backoffBase time.Duration
	now         func() time.Time
}

func NewGrantGuard(db *gorm.DB, catalog *Catalog, events *outbox.Recorder, log *zap.Logger, opts GrantOptions) *GrantGuard {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 5 * time.Second
	}
	return &GrantGuard{
		db:          db,
		catalog:     catalog,
		events:      events,
		log:         log.Named("grants"),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		now:         time.Now,
	}
}

// Grant inserts the (user, achievement) row inside tx. An unknown name is a
// KindConfiguration error.
func (g *GrantGuard) Grant(ctx context.Context, tx *gorm.DB, name string, userID uint) (GrantOutcome, error) {
	achievement, err := g.catalog.FindByName(ctx, tx, name)
	if err != nil {
		return 0, err
	}

	row := models.UserAchievement{
		UserID:        userID,
		AchievementID: achievement.ID,
		UnlockedAt:    g.now().UTC(),
	}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return GrantAlreadyHeld, nil
		}
		return 0, classify("grant achievement", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return GrantAlreadyHeld, nil
	}

	err = g.events.Record(tx, outbox.EventAchievementGranted, userKey(userID), map[string]interface{}{
		"userId":        userID,
		"achievementId": achievement.ID,
		"achievement":   achievement.Name,
		"unlockedAt":    row.UnlockedAt,
	})
	if err != nil {
		return 0, storageError("record achievement event", err)
	}
	return GrantInserted, nil
}

// GrantOnce grants name to userID in its own transaction. A name missing from
// the catalog is logged as a configuration error and otherwise ignored.
func (g *GrantGuard) GrantOnce(ctx context.Context, name string, userID uint) error {
	var outcome GrantOutcome
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = g.Grant(ctx, tx, name, userID)
		return err
	})
	if err != nil {
		if KindOf(err) == KindConfiguration {
			g.logConfigurationError(name, userID, err)
			return nil
		}
		grantFailuresTotal.WithLabelValues("storage").Inc()
		return err
	}
	g.observe(name, userID, outcome)
	return nil
}

// Enqueue queues grants inside the caller's transaction, so they commit or
// roll back together with the action that earned them.
func (g *GrantGuard) Enqueue(ctx context.Context, tx *gorm.DB, userID uint, names ...string) ([]models.PendingGrant, error) {
	if len(names) == 0 {
		return nil, nil
	}
	now := g.now().UTC()
	rows := make([]models.PendingGrant, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.PendingGrant{
			UserID:          userID,
			AchievementName: name,
			NextAttemptAt:   now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, classify("queue achievement grant", err, nil)
	}
	return rows, nil
}

// Drain applies grants queued by a committed transaction. Failures stay in
// the queue for the retry worker.
func (g *GrantGuard) Drain(ctx context.Context, pending []models.PendingGrant) {
	for _, p := range pending {
		if err := g.processPending(ctx, p.ID); err != nil {
			g.log.Warn("achievement grant deferred",
				zap.Uint("pending_id", p.ID),
				zap.Uint("user_id", p.UserID),
				zap.String("achievement", p.AchievementName),
				zap.Error(err))
		}
	}
}

// processPending claims one queued grant, applies it and removes it from the
// queue. Rows already claimed or removed elsewhere are skipped.
func (g *GrantGuard) processPending(ctx context.Context, id uint) error {
	var (
		pending models.PendingGrant
		claimed bool
		outcome GrantOutcome
		grantErr error
	)

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("dead_at IS NULL").
			First(&pending, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true

		outcome, grantErr = g.Grant(ctx, tx, pending.AchievementName, pending.UserID)
		if grantErr != nil && KindOf(grantErr) != KindConfiguration {
			return grantErr
		}
		return tx.Delete(&pending).Error
	})
	if !claimed && err == nil {
		return nil
	}

	if err != nil {
		grantFailuresTotal.WithLabelValues("storage").Inc()
		if claimed {
			if recErr := g.recordFailure(ctx, pending, err); recErr != nil {
				g.log.Error("could not record grant failure", zap.Uint("pending_id", id), zap.Error(recErr))
			}
		}
		return fmt.Errorf("apply queued grant %d: %w", id, err)
	}

	if grantErr != nil {
		g.logConfigurationError(pending.AchievementName, pending.UserID, grantErr)
		return nil
	}
	g.observe(pending.AchievementName, pending.UserID, outcome)
	return nil
}

func (g *GrantGuard) recordFailure(ctx context.Context, pending models.PendingGrant, cause error) error {
	attempts := pending.Attempts + 1
	now := g.now().UTC()
	updates := map[string]interface{}{
		"attempts":        attempts,
		"last_error":      cause.Error(),
		"next_attempt_at": now.Add(g.backoff(attempts)),
	}
	if attempts >= g.maxAttempts {
		updates["dead_at"] = now
		pendingGrantsDead.Inc()
		g.log.Error("achievement grant abandoned",
			zap.Uint("pending_id", pending.ID),
			zap.Uint("user_id", pending.UserID),
			zap.String("achievement", pending.AchievementName),
			zap.Int("attempts", attempts))
	}
	return g.db.WithContext(ctx).
		Model(&models.PendingGrant{}).
		Where("id = ?", pending.ID).
		Updates(updates).Error
}

// backoff is base * 2^(attempts-1), capped at one hour.
func (g *GrantGuard) backoff(attempts int) time.Duration {
	d := time.Duration(float64(g.backoffBase) * math.Pow(2, float64(attempts-1)))
	if d > time.Hour || d <= 0 {
		return time.Hour
	}
	return d
}

// duePending returns ids of queued grants whose next attempt is due.
func (g *GrantGuard) duePending(ctx context.Context, limit int) ([]uint, error) {
	var ids []uint
	err := g.db.WithContext(ctx).
		Model(&models.PendingGrant{}).
		Where("dead_at IS NULL AND next_attempt_at <= ?", g.now().UTC()).
		Order("next_attempt_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, classify("list pending grants", err, nil)
	}
	return ids, nil
}

func (g *GrantGuard) observe(name string, userID uint, outcome GrantOutcome) {
	if outcome != GrantInserted {
		return
	}
	achievementsGrantedTotal.WithLabelValues(name).Inc()
	g.log.Info("achievement granted", zap.Uint("user_id", userID), zap.String("achievement", name))
}

func (g *GrantGuard) logConfigurationError(name string, userID uint, err error) {
	grantFailuresTotal.WithLabelValues("configuration").Inc()
	g.log.Error("achievement missing from catalog",
		zap.String("kind", string(KindConfiguration)),
		zap.String("achievement", name),
		zap.Uint("user_id", userID),
		zap.Error(err))
}

func userKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func activityKey(id uint) string {
	return fmt.Sprintf("activity:%d", id)
}
