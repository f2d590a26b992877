package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/outbox"
	"github.com/activity-point/api-go/testutil"
	"github.com/activity-point/api-go/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	catalog    *Catalog
	actTypes   *ActivityTypeCatalog
	grants     *GrantGuard
	ledger     *Ledger
	activities *ActivityService
	users      *UserService
	store      *memoryStore
	logs       *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := testutil.OpenTestDB(t)
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	catalog := NewCatalog(db, log)
	require.NoError(t, catalog.Seed(ctx))
	activityTypes := NewActivityTypeCatalog(db, log)
	require.NoError(t, activityTypes.Seed(ctx))

	events := outbox.NewRecorder(true)
	grants := NewGrantGuard(db, catalog, events, log, GrantOptions{MaxAttempts: 3, BackoffBase: time.Second})
	ledger := NewLedger(db, types.GetXPConfig(), grants, events, log)
	store := newMemoryStore()

	return &fixture{
		db:         db,
		catalog:    catalog,
		actTypes:   activityTypes,
		grants:     grants,
		ledger:     ledger,
		activities: NewActivityService(db, ledger, grants, events, log),
		users:      NewUserService(db, store, grants, log),
		store:      store,
		logs:       logs,
	}
}

func (f *fixture) user(t *testing.T, name string) models.User {
	return testutil.CreateUser(t, f.db, name)
}

func (f *fixture) reload(t *testing.T, id uint) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.First(&user, id).Error)
	return user
}

func (f *fixture) typeID(t *testing.T, name string) uint {
	t.Helper()
	var at models.ActivityType
	require.NoError(t, f.db.Where("name = ?", name).First(&at).Error)
	return at.ID
}

func (f *fixture) activityInput(t *testing.T) ActivityInput {
	return ActivityInput{
		Title:         "Sunday football",
		Description:   "Five a side at the park",
		TypeID:        f.typeID(t, "Sports"),
		ScheduledDate: time.Now().Add(48 * time.Hour),
		Latitude:      41.01,
		Longitude:     28.97,
		Tags:          []string{"football", "outdoor"},
	}
}

func (f *fixture) achievementCount(t *testing.T, userID uint, name string) int64 {
	t.Helper()
	var count int64
	err := f.db.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ? AND achievements.name = ?", userID, name).
		Count(&count).Error
	require.NoError(t, err)
	return count
}

func (f *fixture) pendingCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.PendingGrant{}).Count(&count).Error)
	return count
}

// memoryStore keeps uploaded objects in memory.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.ReadSeeker, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return "", errors.New("bucket unreachable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) KeyFromURL(url string) (string, bool) {
	key := strings.TrimPrefix(url, "https://cdn.test/")
	return key, key != url && key != ""
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func avatarUpload(name string) AvatarUpload {
	data := []byte(fmt.Sprintf("fake image %s", name))
	return AvatarUpload{
		FileName:    name,
		ContentType: "image/png",
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}
}
