package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/activity-point/api-go/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	AchievementActivityCreator      = "Activity Creator"
	AchievementFirstCheckIn         = "First Check-in"
	AchievementActivityCompletion   = "Activity Completion"
	AchievementLevelUp              = "Level Up"
	AchievementProfileCustomization = "Profile Customization"
)

// DefaultAchievements is the catalog seeded at startup. Entries are only ever
// appended; renaming one would orphan the grants that reference it.
var DefaultAchievements = []models.Achievement{
	{Name: AchievementActivityCreator, Description: "Created your first activity.", Criterion: "create_activity"},
	{Name: AchievementFirstCheckIn, Description: "Confirmed presence at an activity.", Criterion: "confirm_presence"},
	{Name: AchievementActivityCompletion, Description: "Completed an activity you organized.", Criterion: "complete_activity"},
	{Name: AchievementLevelUp, Description: "Reached a new level.", Criterion: "level_up"},
	{Name: AchievementProfileCustomization, Description: "Changed your avatar.", Criterion: "change_avatar"},
}

type Catalog struct {
	db      *gorm.DB
	entries []models.Achievement
	log     *zap.Logger
}

func NewCatalog(db *gorm.DB, log *zap.Logger) *Catalog {
	return &Catalog{db: db, entries: DefaultAchievements, log: log}
}

// Seed inserts missing entries and leaves existing rows untouched.
func (c *Catalog) Seed(ctx context.Context) error {
	rows := make([]models.Achievement, len(c.entries))
	copy(rows, c.entries)

	res := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return fmt.Errorf("seed achievements: %w", res.Error)
	}
	c.log.Info("achievement catalog seeded", zap.Int64("inserted", res.RowsAffected), zap.Int("entries", len(rows)))
	return nil
}

// FindByName looks the achievement up through tx so it joins the caller's
// transaction. A miss is a configuration error.
func (c *Catalog) FindByName(ctx context.Context, tx *gorm.DB, name string) (models.Achievement, error) {
	var achievement models.Achievement
	err := tx.WithContext(ctx).Where("name = ?", name).First(&achievement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return achievement, &Error{
			Kind:    KindConfiguration,
			Code:    ErrUnknownAchievement.Code,
			Message: fmt.Sprintf("achievement %q is not in the catalog", name),
		}
	}
	if err != nil {
		return achievement, classify("find achievement", err, nil)
	}
	return achievement, nil
}

func (c *Catalog) List(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := c.db.WithContext(ctx).Order("id").Find(&achievements).Error; err != nil {
		return nil, classify("list achievements", err, nil)
	}
	return achievements, nil
}
