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

var DefaultActivityTypes = []models.ActivityType{
	{Name: "Sports", Description: "Games, runs and training sessions."},
	{Name: "Study", Description: "Study groups and workshops."},
	{Name: "Social", Description: "Meetups and get-togethers."},
	{Name: "Outdoors", Description: "Hikes, trails and parks."},
	{Name: "Culture", Description: "Museums, shows and exhibitions."},
	{Name: "Games", Description: "Board games and tabletop nights."},
}

type ActivityTypeCatalog struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewActivityTypeCatalog(db *gorm.DB, log *zap.Logger) *ActivityTypeCatalog {
	return &ActivityTypeCatalog{db: db, log: log}
}

func (c *ActivityTypeCatalog) Seed(ctx context.Context) error {
	rows := make([]models.ActivityType, len(DefaultActivityTypes))
	copy(rows, DefaultActivityTypes)

	res := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return fmt.Errorf("seed activity types: %w", res.Error)
	}
	c.log.Info("activity types seeded", zap.Int64("inserted", res.RowsAffected))
	return nil
}

func (c *ActivityTypeCatalog) List(ctx context.Context) ([]models.ActivityType, error) {
	var types []models.ActivityType
	if err := c.db.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, classify("list activity types", err, nil)
	}
	return types, nil
}

// ensureActivityType fails with ErrUnknownActivityType when id is not in the
// catalog.
func ensureActivityType(tx *gorm.DB, id uint) error {
	var t models.ActivityType
	err := tx.Select("id").First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnknownActivityType
	}
	return classify("find activity type", err, nil)
}
