package services

import (
	"context"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/outbox"
	"github.com/activity-point/api-go/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Accrual is the state of a user right after XP was applied.
type Accrual struct {
	UserID    uint           `json:"userId"`
	Delta     int            `json:"delta"`
	XP        int64          `json:"xp"`
	Level     int            `json:"level"`
	LeveledUp bool           `json:"leveledUp"`
	Action    types.XPAction `json:"action"`
}

// Ledger owns every write to users.xp and users.level.
type Ledger struct {
	db     *gorm.DB
	policy types.XPConfig
	grants *GrantGuard
	events *outbox.Recorder
	log    *zap.Logger
}

func NewLedger(db *gorm.DB, policy types.XPConfig, grants *GrantGuard, events *outbox.Recorder, log *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		policy: policy,
		grants: grants,
		events: events,
		log:    log.Named("ledger"),
	}
}

func (l *Ledger) Policy() types.XPConfig {
	return l.policy
}

// ApplyXP adds delta to the user's XP in its own transaction. A level change
// grants "Level Up" once the transaction has committed.
func (l *Ledger) ApplyXP(ctx context.Context, userID uint, delta int) (Accrual, error) {
	var (
		accrual Accrual
		pending []models.PendingGrant
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		accrual, pending, err = l.apply(ctx, tx, userID, "manual", delta, nil)
		return err
	})
	if err != nil {
		return Accrual{}, err
	}

	l.committed(accrual)
	l.grants.Drain(ctx, pending)
	return accrual, nil
}

// award applies the configured reward for action.
func (l *Ledger) award(ctx context.Context, tx *gorm.DB, userID uint, action types.XPAction, activityID *uint) (Accrual, []models.PendingGrant, error) {
	return l.apply(ctx, tx, userID, action, l.policy.Reward(action), activityID)
}

// apply increments xp and recomputes level in a single UPDATE, so concurrent
// accruals on the same user serialize on the row lock and none is lost.
func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, userID uint, action types.XPAction, delta int, activityID *uint) (Accrual, []models.PendingGrant, error) {
	if delta <= 0 {
		return Accrual{}, nil, validationError("xp delta must be positive, got %d", delta)
	}

	res := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"xp":    gorm.Expr("xp + ?", delta),
			"level": gorm.Expr("(xp + ?) / ? + 1", delta, l.policy.PerLevel),
		})
	if res.Error != nil {
		return Accrual{}, nil, classify("apply xp", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return Accrual{}, nil, ErrUserNotFound
	}

	var user models.User
	if err := tx.WithContext(ctx).Select("id", "xp", "level").First(&user, userID).Error; err != nil {
		return Accrual{}, nil, classify("read xp", err, ErrUserNotFound)
	}

	previousLevel := l.policy.LevelFor(user.XP - int64(delta))
	accrual := Accrual{
		UserID:    userID,
		Delta:     delta,
		XP:        user.XP,
		Level:     user.Level,
		LeveledUp: user.Level > previousLevel,
		Action:    action,
	}

	entry := models.XPLog{
		UserID:     userID,
		ActivityID: activityID,
		Action:     string(action),
		Points:     delta,
		XPAfter:    user.XP,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return Accrual{}, nil, classify("write xp log", err, nil)
	}

	if !accrual.LeveledUp {
		return accrual, nil, nil
	}

	pending, err := l.grants.Enqueue(ctx, tx, userID, AchievementLevelUp)
	if err != nil {
		return Accrual{}, nil, err
	}
	err = l.events.Record(tx, outbox.EventUserLeveledUp, userKey(userID), map[string]interface{}{
		"userId":        userID,
		"previousLevel": previousLevel,
		"level":         accrual.Level,
		"xp":            accrual.XP,
	})
	if err != nil {
		return Accrual{}, nil, storageError("record level up event", err)
	}
	return accrual, pending, nil
}

// committed records metrics for accruals whose transaction has committed.
func (l *Ledger) committed(accruals ...Accrual) {
	for _, a := range accruals {
		if a.Delta == 0 {
			continue
		}
		xpAwardedTotal.WithLabelValues(string(a.Action)).Add(float64(a.Delta))
		if a.LeveledUp {
			levelUpsTotal.Inc()
		}
		l.log.Debug("xp applied",
			zap.Uint("user_id", a.UserID),
			zap.Int("delta", a.Delta),
			zap.Int64("xp", a.XP),
			zap.Int("level", a.Level),
			zap.Bool("leveled_up", a.LeveledUp))
	}
}
