package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pffigueiredo/daily-step-tracker/internal/cache"
	"github.com/pffigueiredo/daily-step-tracker/internal/model"
	"github.com/pffigueiredo/daily-step-tracker/internal/repository"
	"github.com/pffigueiredo/daily-step-tracker/internal/util"
	"github.com/pffigueiredo/daily-step-tracker/pkg/logger"
	"github.com/pffigueiredo/daily-step-tracker/pkg/monitoring"
	"github.com/pffigueiredo/daily-step-tracker/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateDailyStepsRequest 记录某天步数，同一用户同一天重复提交会覆盖
type CreateDailyStepsRequest struct {
	UserID string `json:"userId" binding:"required,max=191"`
	Date   string `json:"date" binding:"required,calendar_date" example:"2024-01-15"`
	Steps  *int   `json:"steps" binding:"required,min=0" example:"8500"`
}

// ListUserStepsRequest 日期边界可选，闭区间
type ListUserStepsRequest struct {
	UserID    string `form:"userId" binding:"required,max=191"`
	StartDate string `form:"startDate" binding:"omitempty,calendar_date"`
	EndDate   string `form:"endDate" binding:"omitempty,calendar_date"`
}

type GetStepsByDateRequest struct {
	UserID string `form:"userId" binding:"required,max=191"`
	Date   string `form:"date" binding:"required,calendar_date"`
}

type UpdateDailyStepsRequest struct {
	Steps *int `json:"steps" binding:"required,min=0" example:"12000"`
}

// StepsCache 单日记录缓存。Get 未命中返回 nil 和当前失效代数；
// Set 在代数已变化时返回 cache.ErrStale 且不写入
type StepsCache interface {
	Get(ctx context.Context, userID, date string) (*model.DailyStepRecord, int64, error)
	Set(ctx context.Context, record *model.DailyStepRecord, gen int64) error
	Invalidate(ctx context.Context, userID, date string) error
}

type DailyStepsService struct {
	repo  *repository.DailyStepsRepository
	cache StepsCache
}

// NewDailyStepsService stepsCache 可以为 nil
func NewDailyStepsService(repo *repository.DailyStepsRepository, stepsCache StepsCache) *DailyStepsService {
	return &DailyStepsService{repo: repo, cache: stepsCache}
}

// CreateOrUpdate 以 (userId, date) 为键原子写入，返回写入后的记录
func (s *DailyStepsService) CreateOrUpdate(ctx context.Context, req CreateDailyStepsRequest) (record *model.DailyStepRecord, err error) {
	ctx, span := tracing.Start(ctx, "DailyStepsService.CreateOrUpdate")
	defer func() { finish(span, "create_or_update", resultOf(err), err) }()

	userID, date, err := validateKey(req.UserID, req.Date)
	if err != nil {
		return nil, err
	}
	if req.Steps == nil || *req.Steps < 0 {
		return nil, util.ErrInvalidSteps
	}
	span.SetAttributes(attribute.String("steps.user_id", userID), attribute.String("steps.date", date))

	if err := s.repo.Upsert(ctx, &model.DailyStepRecord{
		UserID: userID,
		Date:   date,
		Steps:  *req.Steps,
	}); err != nil {
		return nil, fmt.Errorf("upsert daily steps: %w", err)
	}

	record, err = s.repo.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("reload daily steps: %w", err)
	}

	s.invalidate(ctx, record.UserID, record.Date)
	return record, nil
}

// ListUserSteps 按日期倒序返回，无数据时返回空切片
func (s *DailyStepsService) ListUserSteps(ctx context.Context, req ListUserStepsRequest) (records []model.DailyStepRecord, err error) {
	ctx, span := tracing.Start(ctx, "DailyStepsService.ListUserSteps")
	defer func() { finish(span, "list", resultOf(err), err) }()

	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}

	filter := repository.StepsFilter{UserID: req.UserID}
	if req.StartDate != "" {
		if filter.StartDate, err = util.NormalizeDate(req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.EndDate != "" {
		if filter.EndDate, err = util.NormalizeDate(req.EndDate); err != nil {
			return nil, err
		}
	}
	if filter.StartDate != "" && filter.EndDate != "" && filter.StartDate > filter.EndDate {
		return nil, fmt.Errorf("%w: %s > %s", util.ErrInvalidDateRange, filter.StartDate, filter.EndDate)
	}

	records, err = s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list daily steps: %w", err)
	}
	span.SetAttributes(attribute.Int("steps.count", len(records)))
	return records, nil
}

// GetStepsByDate 不存在时返回 nil, nil
func (s *DailyStepsService) GetStepsByDate(ctx context.Context, userID, date string) (record *model.DailyStepRecord, err error) {
	ctx, span := tracing.Start(ctx, "DailyStepsService.GetStepsByDate")
	result := monitoring.ResultOK
	defer func() {
		if err != nil {
			result = resultOf(err)
		}
		finish(span, "get_by_date", result, err)
	}()

	userID, date, err = validateKey(userID, date)
	if err != nil {
		return nil, err
	}

	// 读缓存失败时不回填，代数未知
	refill := false
	var gen int64
	if s.cache != nil {
		cached, g, cacheErr := s.cache.Get(ctx, userID, date)
		if cacheErr != nil {
			logger.Log.Warn("steps cache get failed", zap.Error(cacheErr))
		}
		monitoring.ObserveCache(cached != nil)
		if cached != nil {
			return cached, nil
		}
		refill, gen = cacheErr == nil, g
	}

	record, err = s.repo.FindByUserAndDate(ctx, userID, date)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		result = monitoring.ResultNotFound
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily steps: %w", err)
	}

	if refill {
		if err := s.cache.Set(ctx, record, gen); err != nil && !errors.Is(err, cache.ErrStale) {
			logger.Log.Warn("steps cache set failed", zap.Error(err))
		}
	}
	return record, nil
}

// UpdateSteps 只修改步数；id 不存在时返回 ErrStepsNotFound
func (s *DailyStepsService) UpdateSteps(ctx context.Context, id uint, steps int) (record *model.DailyStepRecord, err error) {
	ctx, span := tracing.Start(ctx, "DailyStepsService.UpdateSteps")
	defer func() { finish(span, "update_steps", resultOf(err), err) }()
	span.SetAttributes(attribute.Int64("steps.id", int64(id)))

	if steps < 0 {
		return nil, util.ErrInvalidSteps
	}

	record, err = s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", util.ErrStepsNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find daily steps %d: %w", id, err)
	}

	if err := s.repo.UpdateSteps(ctx, record, steps); err != nil {
		return nil, fmt.Errorf("update daily steps %d: %w", id, err)
	}

	record, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload daily steps %d: %w", id, err)
	}

	s.invalidate(ctx, record.UserID, record.Date)
	return record, nil
}

// DeleteSteps 返回是否真的删除了记录，不存在不算错误
func (s *DailyStepsService) DeleteSteps(ctx context.Context, id uint) (deleted bool, err error) {
	ctx, span := tracing.Start(ctx, "DailyStepsService.DeleteSteps")
	defer func() {
		result := resultOf(err)
		if err == nil && !deleted {
			result = monitoring.ResultNotFound
		}
		finish(span, "delete", result, err)
	}()
	span.SetAttributes(attribute.Int64("steps.id", int64(id)))

	// 启用缓存时需要先拿到 (user, date) 才能失效
	var existing *model.DailyStepRecord
	if s.cache != nil {
		existing, err = s.repo.FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("find daily steps %d: %w", id, err)
		}
	}

	rows, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete daily steps %d: %w", id, err)
	}

	if rows > 0 && existing != nil {
		s.invalidate(ctx, existing.UserID, existing.Date)
	}
	return rows > 0, nil
}

func (s *DailyStepsService) invalidate(ctx context.Context, userID, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID, date); err != nil {
		logger.Log.Warn("steps cache invalidate failed",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("date", date),
		)
	}
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return util.ErrEmptyUserID
	}
	if utf8.RuneCountInString(userID) > util.MaxUserIDLength {
		return util.ErrUserIDTooLong
	}
	return nil
}

func validateKey(userID, date string) (string, string, error) {
	if err := validateUserID(userID); err != nil {
		return "", "", err
	}
	normalized, err := util.NormalizeDate(date)
	if err != nil {
		return "", "", err
	}
	return userID, normalized, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return monitoring.ResultOK
	case util.IsValidationError(err):
		return monitoring.ResultInvalid
	case errors.Is(err, util.ErrStepsNotFound):
		return monitoring.ResultNotFound
	default:
		return monitoring.ResultError
	}
}

func finish(span trace.Span, operation, result string, err error) {
	monitoring.ObserveOperation(operation, result)
	span.SetAttributes(attribute.String("steps.result", result))
	tracing.End(span, err)
}
