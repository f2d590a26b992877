package services

import (
	"context"
	"io"
	"net/mail"
	"strings"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/storage"
	"github.com/activity-point/api-go/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AvatarUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

type UpdateUserInput struct {
	Name  *string
	Email *string
}

type LeaderboardEntry struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	XP     int64  `json:"xp"`
	Level  int    `json:"level"`
	Rank   int    `json:"rank"`
}

type LeaderboardPage struct {
	Entries  []LeaderboardEntry
	Total    int64
	Page     int
	PageSize int
	UserRank int
}

type UserService struct {
	db     *gorm.DB
	store  storage.ObjectStore
	grants *GrantGuard
	log    *zap.Logger
}

func NewUserService(db *gorm.DB, store storage.ObjectStore, grants *GrantGuard, log *zap.Logger) *UserService {
	return &UserService{db: db, store: store, grants: grants, log: log.Named("users")}
}

// GetProfile returns the user with their unlocked achievements and
// preferences.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Achievements", func(db *gorm.DB) *gorm.DB { return db.Order("unlocked_at") }).
		Preload("Achievements.Achievement").
		Preload("Preferences.Type").
		First(&user, userID).Error
	if err != nil {
		return models.User{}, classify("get user", err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, actorID, userID uint, in UpdateUserInput) (models.User, error) {
	if actorID != userID {
		return models.User{}, ErrForbidden
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return models.User{}, validationError("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return models.User{}, validationError("email is invalid")
		}
		updates["email"] = email
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return models.User{}, ErrEmailTaken
			}
			return models.User{}, classify("update user", res.Error, nil)
		}
		if res.RowsAffected == 0 {
			return models.User{}, ErrUserNotFound
		}
	}
	return s.GetProfile(ctx, userID)
}

// DeleteUser soft deletes the account; XP and achievements are kept.
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID uint) error {
	if actorID != userID {
		return ErrForbidden
	}
	res := s.db.WithContext(ctx).Delete(&models.User{}, userID)
	if res.Error != nil {
		return classify("delete user", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ChangeAvatar uploads the image, stores its URL and grants "Profile
// Customization". The upload happens before the transaction; a failed
// transaction removes the uploaded object again.
func (s *UserService) ChangeAvatar(ctx context.Context, userID uint, upload AvatarUpload) (models.User, error) {
	if err := storage.ValidateAvatar(upload.ContentType, upload.Size); err != nil {
		return models.User{}, validationError("%s", err.Error())
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return models.User{}, classify("get user", err, ErrUserNotFound)
	}
	previous := user.Avatar

	key := storage.AvatarKey(userID, upload.FileName, upload.ContentType)
	url, err := s.store.Put(ctx, key, upload.Body, upload.ContentType)
	if err != nil {
		return models.User{}, storageError("upload avatar", err)
	}

	var pending []models.PendingGrant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("avatar", url)
		if res.Error != nil {
			return classify("update avatar", res.Error, nil)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		var err error
		pending, err = s.grants.Enqueue(ctx, tx, userID, AchievementProfileCustomization)
		return err
	})
	if err != nil {
		s.removeObject(ctx, key)
		return models.User{}, err
	}

	s.grants.Drain(ctx, pending)
	if oldKey, ok := s.store.KeyFromURL(previous); ok && oldKey != key && storage.OwnedAvatarKey(userID, oldKey) {
		s.removeObject(ctx, oldKey)
	}

	user.Avatar = url
	s.log.Info("avatar changed", zap.Uint("user_id", userID), zap.String("key", key))
	return user, nil
}

func (s *UserService) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("could not remove avatar object", zap.String("key", key), zap.Error(err))
	}
}

func (s *UserService) Preferences(ctx context.Context, userID uint) ([]models.Preference, error) {
	var prefs []models.Preference
	err := s.db.WithContext(ctx).
		Preload("Type").
		Where("user_id = ?", userID).
		Order("type_id").
		Find(&prefs).Error
	if err != nil {
		return nil, classify("list preferences", err, nil)
	}
	return prefs, nil
}

// DefinePreferences adds the given activity types to the user's preferences.
// Types already preferred are left as they are.
func (s *UserService) DefinePreferences(ctx context.Context, userID uint, typeIDs []uint) ([]models.Preference, error) {
	if len(typeIDs) == 0 {
		return nil, validationError("typeIds must not be empty")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, typeID := range typeIDs {
			if err := ensureActivityType(tx, typeID); err != nil {
				return err
			}
			pref := models.Preference{UserID: userID, TypeID: typeID}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "type_id"}},
				DoNothing: true,
			}).Create(&pref).Error
			if err != nil {
				return classify("define preference", err, nil)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Preferences(ctx, userID)
}

// Leaderboard ranks live users by XP. Ties share a rank.
func (s *UserService) Leaderboard(ctx context.Context, viewerID uint, page, pageSize int) (LeaderboardPage, error) {
	page, pageSize = utils.NormalizePage(page, pageSize)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return LeaderboardPage{}, classify("count users", err, nil)
	}

	var entries []LeaderboardEntry
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id, name, avatar, xp, level, RANK() OVER (ORDER BY xp DESC) AS rank").
		Order("xp DESC, id").
		Scopes(utils.Paginate(page, pageSize)).
		Scan(&entries).Error
	if err != nil {
		return LeaderboardPage{}, classify("leaderboard", err, nil)
	}

	result := LeaderboardPage{Entries: entries, Total: total, Page: page, PageSize: pageSize}

	var viewer models.User
	if err := s.db.WithContext(ctx).Select("id", "xp").First(&viewer, viewerID).Error; err == nil {
		var ahead int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("xp > ?", viewer.XP).Count(&ahead).Error; err != nil {
			return LeaderboardPage{}, classify("rank user", err, nil)
		}
		result.UserRank = int(ahead) + 1
	}
	return result, nil
}
