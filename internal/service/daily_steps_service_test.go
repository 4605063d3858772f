package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pffigueiredo/daily-step-tracker/internal/cache"
	"github.com/pffigueiredo/daily-step-tracker/internal/config"
	"github.com/pffigueiredo/daily-step-tracker/internal/model"
	"github.com/pffigueiredo/daily-step-tracker/internal/repository"
	"github.com/pffigueiredo/daily-step-tracker/internal/util"
	"github.com/pffigueiredo/daily-step-tracker/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// memoryCache 与 redis 实现语义一致的内存缓存，记录失效调用便于断言
type memoryCache struct {
	mu          sync.Mutex
	items       map[string]model.DailyStepRecord
	gens        map[string]int64
	invalidated []string
	gets        int

	// beforeSet 在回填前执行，用于模拟并发修改
	beforeSet func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]model.DailyStepRecord{}, gens: map[string]int64{}}
}

func (m *memoryCache) Get(_ context.Context, userID, date string) (*model.DailyStepRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	key := userID + "|" + date
	r, ok := m.items[key]
	if !ok {
		return nil, m.gens[key], nil
	}
	return &r, m.gens[key], nil
}

func (m *memoryCache) Set(_ context.Context, record *model.DailyStepRecord, gen int64) error {
	if hook := m.beforeSet; hook != nil {
		m.beforeSet = nil
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := record.UserID + "|" + record.Date
	if m.gens[key] != gen {
		return cache.ErrStale
	}
	m.items[key] = *record
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, userID, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + date
	delete(m.items, key)
	m.gens[key]++
	m.invalidated = append(m.invalidated, key)
	return nil
}

func newTestService(t *testing.T, cache StepsCache) (*DailyStepsService, *repository.DailyStepsRepository) {
	t.Helper()

	db, err := database.InitDB(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "steps.db"),
	}, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	clock := &tickingClock{now: time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)}
	repo := repository.NewDailyStepsRepository(db.Session(&gorm.Session{NowFunc: clock.Now}))
	return NewDailyStepsService(repo, cache), repo
}

func steps(n int) *int { return &n }

func TestCreateOrUpdateCreatesRecord(t *testing.T) {
	svc, _ := newTestService(t, nil)

	record, err := svc.CreateOrUpdate(context.Background(), CreateDailyStepsRequest{
		UserID: "user123",
		Date:   "2024-01-15",
		Steps:  steps(8500),
	})
	require.NoError(t, err)

	assert.NotZero(t, record.ID)
	assert.Equal(t, "user123", record.UserID)
	assert.Equal(t, "2024-01-15", record.Date)
	assert.Equal(t, 8500, record.Steps)
	assert.True(t, record.CreatedAt.Equal(record.UpdatedAt))
}

func TestCreateOrUpdateOverwritesSameKey(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "user123", Date: "2024-01-15", Steps: steps(8500)})
	require.NoError(t, err)
	second, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "user123", Date: "2024-01-15", Steps: steps(12000)})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 12000, second.Steps)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(second.CreatedAt))

	all, err := repo.List(ctx, repository.StepsFilter{UserID: "user123"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 12000, all[0].Steps)
}

func TestCreateOrUpdateDistinctKeys(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	a, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "user123", Date: "2024-01-15", Steps: steps(8000)})
	require.NoError(t, err)
	b, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "user123", Date: "2024-01-16", Steps: steps(9000)})
	require.NoError(t, err)
	c, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "user456", Date: "2024-01-15", Steps: steps(7000)})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.NotEqual(t, b.ID, c.ID)
}

func TestCreateOrUpdateEdgeStepCounts(t *testing.T) {
	svc, _ := newTestService(t, nil)

	for _, n := range []int{0, 50000} {
		record, err := svc.CreateOrUpdate(context.Background(), CreateDailyStepsRequest{UserID: "u1", Date: "2024-03-01", Steps: steps(n)})
		require.NoError(t, err)
		assert.Equal(t, n, record.Steps)
	}
}

func TestCreateOrUpdateValidation(t *testing.T) {
	svc, repo := newTestService(t, nil)

	tests := []struct {
		name string
		req  CreateDailyStepsRequest
		want error
	}{
		{name: "empty user", req: CreateDailyStepsRequest{UserID: " ", Date: "2024-01-15", Steps: steps(1)}, want: util.ErrEmptyUserID},
		{name: "bad date format", req: CreateDailyStepsRequest{UserID: "u1", Date: "01/15/2024", Steps: steps(1)}, want: util.ErrInvalidDate},
		{name: "impossible date", req: CreateDailyStepsRequest{UserID: "u1", Date: "2024-02-30", Steps: steps(1)}, want: util.ErrInvalidDate},
		{name: "negative steps", req: CreateDailyStepsRequest{UserID: "u1", Date: "2024-01-15", Steps: steps(-1)}, want: util.ErrInvalidSteps},
		{name: "missing steps", req: CreateDailyStepsRequest{UserID: "u1", Date: "2024-01-15"}, want: util.ErrInvalidSteps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrUpdate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	require.NoError(t, repo.DB.Model(&model.DailyStepRecord{}).Count(&count).Error)
	assert.Zero(t, count, "invalid input must not reach the store")
}

func TestUserIDLengthLimit(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	tooLong := strings.Repeat("x", util.MaxUserIDLength+1)

	_, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: tooLong, Date: "2024-01-15", Steps: steps(1)})
	assert.ErrorIs(t, err, util.ErrUserIDTooLong)
	assert.True(t, util.IsValidationError(err))

	_, err = svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: tooLong})
	assert.ErrorIs(t, err, util.ErrUserIDTooLong)

	_, err = svc.GetStepsByDate(ctx, tooLong, "2024-01-15")
	assert.ErrorIs(t, err, util.ErrUserIDTooLong)

	// 按字符计：191 个多字节字符仍然合法
	atLimit := strings.Repeat("步", util.MaxUserIDLength)
	record, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: atLimit, Date: "2024-01-15", Steps: steps(1)})
	require.NoError(t, err)
	assert.Equal(t, atLimit, record.UserID)
}

func seed(t *testing.T, svc *DailyStepsService, userID string, dates ...string) {
	t.Helper()
	for i, d := range dates {
		_, err := svc.CreateOrUpdate(context.Background(), CreateDailyStepsRequest{UserID: userID, Date: d, Steps: steps(1000 * (i + 1))})
		require.NoError(t, err)
	}
}

func dates(records []model.DailyStepRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Date)
	}
	return out
}

func TestListUserSteps(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	seed(t, svc, "u1", "2024-01-12", "2024-01-15", "2024-01-10", "2024-01-20")
	seed(t, svc, "u2", "2024-01-15")

	all, err := svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-20", "2024-01-15", "2024-01-12", "2024-01-10"}, dates(all))

	ranged, err := svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: "u1", StartDate: "2024-01-12", EndDate: "2024-01-15"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15", "2024-01-12"}, dates(ranged))

	none, err := svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListUserStepsValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ListUserSteps(ctx, ListUserStepsRequest{})
	assert.ErrorIs(t, err, util.ErrEmptyUserID)

	_, err = svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: "u1", StartDate: "2024-13-01"})
	assert.ErrorIs(t, err, util.ErrInvalidDate)

	_, err = svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: "u1", StartDate: "2024-01-20", EndDate: "2024-01-10"})
	assert.ErrorIs(t, err, util.ErrInvalidDateRange)
}

func TestGetStepsByDate(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	seed(t, svc, "u1", "2024-01-14")
	seed(t, svc, "u2", "2024-01-15")

	record, err := svc.GetStepsByDate(ctx, "u1", "2024-01-14")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, "2024-01-14", record.Date)

	// 只有 2024-01-14 的数据
	missing, err := svc.GetStepsByDate(ctx, "u1", "2024-01-15")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = svc.GetStepsByDate(ctx, "u3", "2024-01-15")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.GetStepsByDate(ctx, "u1", "yesterday")
	assert.ErrorIs(t, err, util.ErrInvalidDate)
}

func TestUpdateSteps(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "u1", Date: "2023-12-01", Steps: steps(5000)})
	require.NoError(t, err)

	updated, err := svc.UpdateSteps(ctx, created.ID, 7500)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 7500, updated.Steps)
	assert.Equal(t, created.UserID, updated.UserID)
	assert.Equal(t, created.Date, updated.Date)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	zero, err := svc.UpdateSteps(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, zero.Steps)
}

func TestUpdateStepsUnknownID(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.UpdateSteps(context.Background(), 9999, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrStepsNotFound))
	assert.Contains(t, err.Error(), "9999")

	_, err = svc.UpdateSteps(context.Background(), 1, -5)
	assert.ErrorIs(t, err, util.ErrInvalidSteps)
}

func TestDeleteSteps(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	keep, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "u1", Date: "2024-01-14", Steps: steps(1)})
	require.NoError(t, err)
	gone, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "u1", Date: "2024-01-15", Steps: steps(0)})
	require.NoError(t, err)

	deleted, err := svc.DeleteSteps(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.FindByID(ctx, gone.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	deleted, err = svc.DeleteSteps(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, deleted)

	remaining, err := svc.ListUserSteps(ctx, ListUserStepsRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)
}

func TestCacheReadThroughAndInvalidation(t *testing.T) {
	mc := newMemoryCache()
	svc, _ := newTestService(t, mc)
	ctx := context.Background()

	created, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "u1", Date: "2024-01-15", Steps: steps(100)})
	require.NoError(t, err)

	first, err := svc.GetStepsByDate(ctx, "u1", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 100, first.Steps)
	assert.Contains(t, mc.items, "u1|2024-01-15")

	_, err = svc.UpdateSteps(ctx, created.ID, 200)
	require.NoError(t, err)
	assert.NotContains(t, mc.items, "u1|2024-01-15")

	fresh, err := svc.GetStepsByDate(ctx, "u1", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 200, fresh.Steps)

	deleted, err := svc.DeleteSteps(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	after, err := svc.GetStepsByDate(ctx, "u1", "2024-01-15")
	require.NoError(t, err)
	assert.Nil(t, after)

	assert.Equal(t, []string{"u1|2024-01-15", "u1|2024-01-15", "u1|2024-01-15"}, mc.invalidated)
}

func TestCacheSkipsStaleRefill(t *testing.T) {
	mc := newMemoryCache()
	svc, _ := newTestService(t, mc)
	ctx := context.Background()

	created, err := svc.CreateOrUpdate(ctx, CreateDailyStepsRequest{UserID: "u1", Date: "2024-01-15", Steps: steps(100)})
	require.NoError(t, err)

	// 查询已读到旧记录，回填前另一请求修改了步数
	mc.beforeSet = func() {
		_, err := svc.UpdateSteps(ctx, created.ID, 300)
		require.NoError(t, err)
	}

	old, err := svc.GetStepsByDate(ctx, "u1", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 100, old.Steps)
	assert.NotContains(t, mc.items, "u1|2024-01-15")

	fresh, err := svc.GetStepsByDate(ctx, "u1", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 300, fresh.Steps)
	assert.Equal(t, 300, mc.items["u1|2024-01-15"].Steps)
}
