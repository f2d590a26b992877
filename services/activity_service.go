package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/outbox"
	"github.com/activity-point/api-go/types"
	"github.com/activity-point/api-go/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityInput struct {
	Title         string
	Description   string
	TypeID        uint
	ScheduledDate time.Time
	Private       bool
	Latitude      float64
	Longitude     float64
	Image         string
	Tags          []string
}

func (in ActivityInput) validate() error {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return validationError("title is required")
	case len(title) > 120:
		return validationError("title must be at most 120 characters")
	case strings.TrimSpace(in.Description) == "":
		return validationError("description is required")
	case in.TypeID == 0:
		return validationError("typeId is required")
	case in.ScheduledDate.IsZero():
		return validationError("scheduledDate is required")
	case in.Latitude < -90 || in.Latitude > 90:
		return validationError("latitude must be between -90 and 90")
	case in.Longitude < -180 || in.Longitude > 180:
		return validationError("longitude must be between -180 and 180")
	}
	return nil
}

type ActivityResult struct {
	Activity models.Activity `json:"activity"`
	XP       Accrual         `json:"xp"`
}

type PresenceResult struct {
	Participant models.ActivityParticipant `json:"participant"`
	XP          Accrual                    `json:"xp"`
	CreatorXP   *Accrual                   `json:"creatorXp,omitempty"`
}

type ListQuery struct {
	Page     int
	PageSize int
	TypeID   uint
	OrderBy  string
	Order    string
}

type ActivityPage struct {
	Activities []models.Activity
	Total      int64
	Page       int
	PageSize   int
}

var activityOrderColumns = map[string]string{
	"":              "created_at",
	"createdAt":     "created_at",
	"scheduledDate": "scheduled_date",
	"title":         "title",
}

// ActivityService runs the activity lifecycle. Every state change that earns
// XP commits together with the accrual and its queued grants.
type ActivityService struct {
	db     *gorm.DB
	ledger *Ledger
	grants *GrantGuard
	events *outbox.Recorder
	log    *zap.Logger
	now    func() time.Time
}

func NewActivityService(db *gorm.DB, ledger *Ledger, grants *GrantGuard, events *outbox.Recorder, log *zap.Logger) *ActivityService {
	return &ActivityService{
		db:     db,
		ledger: ledger,
		grants: grants,
		events: events,
		log:    log.Named("activities"),
		now:    time.Now,
	}
}

// CreateActivity persists the activity, awards the creator and queues
// "Activity Creator". CompletedAt always starts empty.
func (s *ActivityService) CreateActivity(ctx context.Context, creatorID uint, in ActivityInput) (ActivityResult, error) {
	if err := in.validate(); err != nil {
		return ActivityResult{}, err
	}

	var (
		result  ActivityResult
		pending []models.PendingGrant
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureActivityType(tx, in.TypeID); err != nil {
			return err
		}

		activity := models.Activity{
			Title:            strings.TrimSpace(in.Title),
			Description:      strings.TrimSpace(in.Description),
			TypeID:           in.TypeID,
			CreatorID:        creatorID,
			ConfirmationCode: utils.GenerateConfirmationCode(),
			Image:            in.Image,
			Private:          in.Private,
			ScheduledDate:    in.ScheduledDate.UTC(),
			Latitude:         in.Latitude,
			Longitude:        in.Longitude,
			Tags:             in.Tags,
		}
		if err := tx.Create(&activity).Error; err != nil {
			return classify("create activity", err, nil)
		}

		accrual, levelUps, err := s.ledger.award(ctx, tx, creatorID, types.ActionCreateActivity, &activity.ID)
		if err != nil {
			return err
		}
		queued, err := s.grants.Enqueue(ctx, tx, creatorID, AchievementActivityCreator)
		if err != nil {
			return err
		}

		err = s.events.Record(tx, outbox.EventActivityCreated, activityKey(activity.ID), map[string]interface{}{
			"activityId":    activity.ID,
			"creatorId":     creatorID,
			"typeId":        activity.TypeID,
			"scheduledDate": activity.ScheduledDate,
			"private":       activity.Private,
		})
		if err != nil {
			return storageError("record activity event", err)
		}

		result = ActivityResult{Activity: activity, XP: accrual}
		pending = append(levelUps, queued...)
		return nil
	})
	if err != nil {
		return ActivityResult{}, err
	}

	s.ledger.committed(result.XP)
	s.grants.Drain(ctx, pending)
	s.log.Info("activity created", zap.Uint("activity_id", result.Activity.ID), zap.Uint("creator_id", creatorID))
	return result, nil
}

// ConfirmPresence marks a subscribed user as present. The participant earns
// the confirm reward and "First Check-in"; the creator earns a bonus.
func (s *ActivityService) ConfirmPresence(ctx context.Context, activityID, userID uint) (PresenceResult, error) {
	var (
		result  PresenceResult
		pending []models.PendingGrant
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.findActivity(tx, activityID, false)
		if err != nil {
			return err
		}

		var participant models.ActivityParticipant
		err = tx.Where("activity_id = ? AND user_id = ?", activityID, userID).First(&participant).Error
		if err != nil {
			return classify("find participant", err, ErrNotSubscribed)
		}

		result, pending, err = s.confirmPresence(ctx, tx, activity, participant)
		return err
	})
	if err != nil {
		return PresenceResult{}, err
	}

	s.afterPresence(ctx, activityID, result, pending)
	return result, nil
}

// CheckIn confirms presence with the activity's confirmation code, joining
// the user first when they never subscribed.
func (s *ActivityService) CheckIn(ctx context.Context, activityID, userID uint, code string) (PresenceResult, error) {
	var (
		result  PresenceResult
		pending []models.PendingGrant
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.findActivity(tx, activityID, false)
		if err != nil {
			return err
		}

		given := utils.NormalizeConfirmationCode(code)
		if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(activity.ConfirmationCode)) != 1 {
			return ErrInvalidConfirmationCode
		}

		participant := models.ActivityParticipant{ActivityID: activityID, UserID: userID, Approved: true}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&participant).Error
		if err != nil {
			return classify("join activity", err, nil)
		}
		participant = models.ActivityParticipant{}
		if err := tx.Where("activity_id = ? AND user_id = ?", activityID, userID).First(&participant).Error; err != nil {
			return classify("find participant", err, ErrNotSubscribed)
		}
		if !participant.Approved {
			if err := tx.Model(&participant).Update("approved", true).Error; err != nil {
				return classify("approve participant", err, nil)
			}
			participant.Approved = true
		}

		result, pending, err = s.confirmPresence(ctx, tx, activity, participant)
		return err
	})
	if err != nil {
		return PresenceResult{}, err
	}

	s.afterPresence(ctx, activityID, result, pending)
	return result, nil
}

func (s *ActivityService) confirmPresence(ctx context.Context, tx *gorm.DB, activity models.Activity, participant models.ActivityParticipant) (PresenceResult, []models.PendingGrant, error) {
	now := s.now().UTC()
	res := tx.Model(&models.ActivityParticipant{}).
		Where("id = ? AND confirmed_at IS NULL", participant.ID).
		Update("confirmed_at", now)
	if res.Error != nil {
		return PresenceResult{}, nil, classify("confirm presence", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return PresenceResult{}, nil, ErrAlreadyConfirmed
	}
	participant.ConfirmedAt = &now

	userID := participant.UserID
	accrual, pending, err := s.ledger.award(ctx, tx, userID, types.ActionConfirmPresence, &activity.ID)
	if err != nil {
		return PresenceResult{}, nil, err
	}
	result := PresenceResult{Participant: participant, XP: accrual}

	creatorAccrual, levelUps, err := s.ledger.award(ctx, tx, activity.CreatorID, types.ActionParticipantConfirmed, &activity.ID)
	if err != nil {
		return PresenceResult{}, nil, err
	}
	result.CreatorXP = &creatorAccrual
	pending = append(pending, levelUps...)

	queued, err := s.grants.Enqueue(ctx, tx, userID, AchievementFirstCheckIn)
	if err != nil {
		return PresenceResult{}, nil, err
	}
	pending = append(pending, queued...)

	err = s.events.Record(tx, outbox.EventPresenceConfirmed, activityKey(activity.ID), map[string]interface{}{
		"activityId":  activity.ID,
		"userId":      userID,
		"creatorId":   activity.CreatorID,
		"confirmedAt": now,
	})
	if err != nil {
		return PresenceResult{}, nil, storageError("record presence event", err)
	}
	return result, pending, nil
}

func (s *ActivityService) afterPresence(ctx context.Context, activityID uint, result PresenceResult, pending []models.PendingGrant) {
	s.ledger.committed(result.XP)
	if result.CreatorXP != nil {
		s.ledger.committed(*result.CreatorXP)
	}
	s.grants.Drain(ctx, pending)
	s.log.Info("presence confirmed", zap.Uint("activity_id", activityID), zap.Uint("user_id", result.Participant.UserID))
}

// CompleteActivity closes an activity. Only its creator may do so, and only
// once.
func (s *ActivityService) CompleteActivity(ctx context.Context, activityID, userID uint) (ActivityResult, error) {
	var (
		result  ActivityResult
		pending []models.PendingGrant
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.findActivity(tx, activityID, true)
		if err != nil {
			return err
		}
		if activity.CreatorID != userID {
			return ErrNotCreator
		}
		if activity.CompletedAt != nil {
			return ErrAlreadyCompleted
		}

		now := s.now().UTC()
		res := tx.Model(&models.Activity{}).
			Where("id = ? AND completed_at IS NULL", activityID).
			Update("completed_at", now)
		if res.Error != nil {
			return classify("complete activity", res.Error, nil)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCompleted
		}
		activity.CompletedAt = &now

		accrual, levelUps, err := s.ledger.award(ctx, tx, userID, types.ActionCompleteActivity, &activity.ID)
		if err != nil {
			return err
		}
		queued, err := s.grants.Enqueue(ctx, tx, userID, AchievementActivityCompletion)
		if err != nil {
			return err
		}

		err = s.events.Record(tx, outbox.EventActivityCompleted, activityKey(activity.ID), map[string]interface{}{
			"activityId":  activity.ID,
			"creatorId":   userID,
			"completedAt": now,
		})
		if err != nil {
			return storageError("record completion event", err)
		}

		result = ActivityResult{Activity: activity, XP: accrual}
		pending = append(levelUps, queued...)
		return nil
	})
	if err != nil {
		return ActivityResult{}, err
	}

	s.ledger.committed(result.XP)
	s.grants.Drain(ctx, pending)
	s.log.Info("activity completed", zap.Uint("activity_id", activityID))
	return result, nil
}

func (s *ActivityService) UpdateActivity(ctx context.Context, activityID, userID uint, in ActivityInput) (models.Activity, error) {
	if err := in.validate(); err != nil {
		return models.Activity{}, err
	}

	var activity models.Activity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		activity, err = s.findActivity(tx, activityID, true)
		if err != nil {
			return err
		}
		if activity.CreatorID != userID {
			return ErrNotCreator
		}
		if err := ensureActivityType(tx, in.TypeID); err != nil {
			return err
		}

		activity.Title = strings.TrimSpace(in.Title)
		activity.Description = strings.TrimSpace(in.Description)
		activity.TypeID = in.TypeID
		activity.ScheduledDate = in.ScheduledDate.UTC()
		activity.Private = in.Private
		activity.Latitude = in.Latitude
		activity.Longitude = in.Longitude
		activity.Image = in.Image
		activity.Tags = in.Tags

		err = tx.Model(&activity).
			Select("title", "description", "type_id", "scheduled_date", "private", "latitude", "longitude", "image", "tags").
			Updates(&activity).Error
		return classify("update activity", err, nil)
	})
	return activity, err
}

// DeleteActivity soft deletes the activity; participants and XP stay.
func (s *ActivityService) DeleteActivity(ctx context.Context, activityID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.findActivity(tx, activityID, true)
		if err != nil {
			return err
		}
		if activity.CreatorID != userID {
			return ErrNotCreator
		}
		return classify("delete activity", tx.Delete(&activity).Error, nil)
	})
}

// Subscribe adds the user as a participant awaiting approval.
func (s *ActivityService) Subscribe(ctx context.Context, activityID, userID uint) (models.ActivityParticipant, error) {
	var participant models.ActivityParticipant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.findActivity(tx, activityID, false)
		if err != nil {
			return err
		}
		if activity.CompletedAt != nil {
			return ErrAlreadyCompleted
		}

		participant = models.ActivityParticipant{ActivityID: activityID, UserID: userID}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&participant)
		if res.Error != nil {
			return classify("subscribe", res.Error, nil)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySubscribed
		}
		return nil
	})
	return participant, err
}

// Unsubscribe removes a participant that has not confirmed presence yet.
func (s *ActivityService) Unsubscribe(ctx context.Context, activityID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findActivity(tx, activityID, false); err != nil {
			return err
		}

		var participant models.ActivityParticipant
		err := tx.Where("activity_id = ? AND user_id = ?", activityID, userID).First(&participant).Error
		if err != nil {
			return classify("find participant", err, ErrNotSubscribed)
		}
		if participant.ConfirmedAt != nil {
			return ErrAlreadyConfirmed
		}
		return classify("unsubscribe", tx.Delete(&participant).Error, nil)
	})
}

// ApproveParticipant lets the creator accept or deny a subscription.
func (s *ActivityService) ApproveParticipant(ctx context.Context, activityID, creatorID, participantUserID uint, approved bool) (models.ActivityParticipant, error) {
	var participant models.ActivityParticipant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := s.findActivity(tx, activityID, false)
		if err != nil {
			return err
		}
		if activity.CreatorID != creatorID {
			return ErrNotCreator
		}

		err = tx.Where("activity_id = ? AND user_id = ?", activityID, participantUserID).First(&participant).Error
		if err != nil {
			return classify("find participant", err, ErrParticipantNotFound)
		}
		participant.Approved = approved
		return classify("approve participant", tx.Model(&participant).Update("approved", approved).Error, nil)
	})
	return participant, err
}

// GetActivity hides the confirmation code from everyone but the creator.
func (s *ActivityService) GetActivity(ctx context.Context, activityID, viewerID uint) (models.Activity, error) {
	var activity models.Activity
	err := s.db.WithContext(ctx).
		Preload("Type").
		Preload("Creator", publicUserColumns).
		First(&activity, activityID).Error
	if err != nil {
		return models.Activity{}, classify("get activity", err, ErrActivityNotFound)
	}
	redactCode(&activity, viewerID)
	return activity, nil
}

func (s *ActivityService) ListActivities(ctx context.Context, viewerID uint, q ListQuery) (ActivityPage, error) {
	column, ok := activityOrderColumns[q.OrderBy]
	if !ok {
		return ActivityPage{}, validationError("orderBy must be one of createdAt, scheduledDate, title")
	}
	direction := strings.ToLower(q.Order)
	switch direction {
	case "":
		direction = "desc"
	case "asc", "desc":
	default:
		return ActivityPage{}, validationError("order must be asc or desc")
	}

	query := s.db.WithContext(ctx).Model(&models.Activity{})
	if q.TypeID != 0 {
		query = query.Where("type_id = ?", q.TypeID)
	}
	return s.page(query, viewerID, q.Page, q.PageSize, clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   direction == "desc",
	})
}

func (s *ActivityService) ListAllActivities(ctx context.Context, viewerID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.WithContext(ctx).Preload("Type").Order("created_at desc").Find(&activities).Error
	if err != nil {
		return nil, classify("list activities", err, nil)
	}
	for i := range activities {
		redactCode(&activities[i], viewerID)
	}
	return activities, nil
}

func (s *ActivityService) ListByCreator(ctx context.Context, creatorID uint, page, pageSize int) (ActivityPage, error) {
	query := s.db.WithContext(ctx).Model(&models.Activity{}).Where("creator_id = ?", creatorID)
	return s.page(query, creatorID, page, pageSize, clause.OrderByColumn{
		Column: clause.Column{Name: "created_at"},
		Desc:   true,
	})
}

func (s *ActivityService) ListByParticipant(ctx context.Context, userID uint, page, pageSize int) (ActivityPage, error) {
	query := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("id IN (?)", s.db.Model(&models.ActivityParticipant{}).Select("activity_id").Where("user_id = ?", userID))
	return s.page(query, userID, page, pageSize, clause.OrderByColumn{
		Column: clause.Column{Name: "scheduled_date"},
		Desc:   true,
	})
}

func (s *ActivityService) ListParticipants(ctx context.Context, activityID uint) ([]models.ActivityParticipant, error) {
	if _, err := s.findActivity(s.db.WithContext(ctx), activityID, false); err != nil {
		return nil, err
	}

	var participants []models.ActivityParticipant
	err := s.db.WithContext(ctx).
		Preload("User", publicUserColumns).
		Where("activity_id = ?", activityID).
		Order("created_at").
		Find(&participants).Error
	if err != nil {
		return nil, classify("list participants", err, nil)
	}
	return participants, nil
}

// publicUserColumns limits preloaded users to what other members may see.
func publicUserColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "avatar")
}

func (s *ActivityService) page(query *gorm.DB, viewerID uint, page, pageSize int, order clause.OrderByColumn) (ActivityPage, error) {
	page, pageSize = utils.NormalizePage(page, pageSize)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return ActivityPage{}, classify("count activities", err, nil)
	}

	var activities []models.Activity
	err := query.Session(&gorm.Session{}).
		Preload("Type").
		Order(order).
		Scopes(utils.Paginate(page, pageSize)).
		Find(&activities).Error
	if err != nil {
		return ActivityPage{}, classify("list activities", err, nil)
	}
	for i := range activities {
		redactCode(&activities[i], viewerID)
	}
	return ActivityPage{Activities: activities, Total: total, Page: page, PageSize: pageSize}, nil
}

// findActivity loads a live activity through tx, locking the row when lock
// is set.
func (s *ActivityService) findActivity(tx *gorm.DB, activityID uint, lock bool) (models.Activity, error) {
	var activity models.Activity
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.First(&activity, activityID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return activity, ErrActivityNotFound
		}
		return activity, classify("find activity", err, nil)
	}
	return activity, nil
}

func redactCode(activity *models.Activity, viewerID uint) {
	if activity.CreatorID != viewerID {
		activity.ConfirmationCode = ""
	}
}
