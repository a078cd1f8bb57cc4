package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/journal"
	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRouteInUse is returned when a route edit or deletion would change the
// chain under journals that are mid-flow. Activated routes are immutable for
// in-flight journals; publish a new version instead.
var ErrRouteInUse = errors.New("workflow: route has pending journals")

const routeGraphCacheKey = "workflow:route_graph:"

// Service 审批路由主数据服务
type Service struct {
	db        *gorm.DB
	cache     redis.UniversalClient
	validator *Validator
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// ServiceOption 自定义配置
type ServiceOption func(*Service)

// WithRouteCache enables the route-graph cache. Graphs of active routes are
// immutable, so cache invalidation only happens on activation.
func WithRouteCache(client redis.UniversalClient, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = client
		s.cacheTTL = ttl
	}
}

// WithServiceLogger 注入自定义日志器
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService 创建路由服务
func NewService(db *gorm.DB, validator *Validator, opts ...ServiceOption) *Service {
	svc := &Service{
		db:        db,
		validator: validator,
		logger:    logger.Get(),
		cacheTTL:  time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SaveRouteParams describes a route draft.
type SaveRouteParams struct {
	Code        string
	Name        string
	Description string
	Steps       []Step
	Layout      *RouteLayout
	CreatedBy   string
}

// SaveRoute creates or replaces a route draft. Editing is refused while
// journals are pending under the route: in-flight approval chains never
// change retroactively.
func (s *Service) SaveRoute(ctx context.Context, params SaveRouteParams) (*WorkflowRoute, error) {
	var route *WorkflowRoute
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := s.pendingJournalCount(tx, params.Code)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %s has %d pending journals", ErrRouteInUse, params.Code, pending)
		}

		var existing WorkflowRoute
		err = tx.Where("code = ?", params.Code).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			route = &WorkflowRoute{
				ID:        uuid.New().String(),
				Code:      params.Code,
				Version:   1,
				CreatedBy: params.CreatedBy,
			}
		case err != nil:
			return &PersistenceError{Op: "load route", Err: err}
		default:
			route = &existing
			// 替换步骤：路由草稿编辑总是整体覆盖
			if err := tx.Where("route_code = ?", params.Code).Delete(&RouteStep{}).Error; err != nil {
				return &PersistenceError{Op: "replace route steps", Err: err}
			}
		}

		route.Name = params.Name
		route.Description = params.Description
		route.Layout = params.Layout
		route.Active = false
		route.Steps = make([]RouteStep, 0, len(params.Steps))
		for _, st := range params.Steps {
			route.Steps = append(route.Steps, RouteStep{
				ID:               uuid.New().String(),
				RouteCode:        params.Code,
				StepNumber:       st.Number,
				OrganizationCode: st.OrganizationCode,
				StepName:         st.Name,
				Required:         st.Required,
			})
		}

		if err := tx.Save(route).Error; err != nil {
			return &PersistenceError{Op: "save route", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateGraph(ctx, params.Code)
	return route, nil
}

// GetRoute returns a route with its ordered steps.
func (s *Service) GetRoute(ctx context.Context, code string) (*WorkflowRoute, error) {
	var route WorkflowRoute
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		Where("code = ?", code).
		First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, code)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load route", Err: err}
	}
	return &route, nil
}

// ListRoutes returns all routes without steps.
func (s *Service) ListRoutes(ctx context.Context, activeOnly bool) ([]*WorkflowRoute, error) {
	query := s.db.WithContext(ctx).Model(&WorkflowRoute{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var routes []*WorkflowRoute
	if err := query.Order("code ASC").Find(&routes).Error; err != nil {
		return nil, &PersistenceError{Op: "list routes", Err: err}
	}
	return routes, nil
}

// ValidateRoute runs the activation gate and returns every problem found.
func (s *Service) ValidateRoute(ctx context.Context, code string) (ValidationResult, error) {
	route, err := s.GetRoute(ctx, code)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.validator.Validate(ctx, route), nil
}

// ActivateRoute validates the route and, when sound, marks it active and bumps
// its version. The graph cache entry is dropped so the next load sees the new
// configuration.
func (s *Service) ActivateRoute(ctx context.Context, code string) (ValidationResult, error) {
	route, err := s.GetRoute(ctx, code)
	if err != nil {
		return ValidationResult{}, err
	}

	result := s.validator.Validate(ctx, route)
	if !result.OK {
		return result, nil
	}

	updates := map[string]any{
		"active":  true,
		"version": route.Version + 1,
	}
	if err := s.db.WithContext(ctx).Model(route).Updates(updates).Error; err != nil {
		return result, &PersistenceError{Op: "activate route", Err: err}
	}

	s.invalidateGraph(ctx, code)
	s.logger.Info("route activated",
		zap.String("route_code", code),
		zap.Int("steps", len(route.Steps)),
	)
	return result, nil
}

// DeactivateRoute takes a route out of service for new submissions. Journals
// already pending keep flowing over the graph they were submitted with.
func (s *Service) DeactivateRoute(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).
		Model(&WorkflowRoute{}).
		Where("code = ?", code).
		Update("active", false)
	if result.Error != nil {
		return &PersistenceError{Op: "deactivate route", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, code)
	}
	return nil
}

// DeleteRoute removes a route that no journal references.
func (s *Service) DeleteRoute(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&journal.JournalEntry{}).
			Where("route_code = ? AND deleted_at IS NULL", code).
			Count(&count).Error; err != nil {
			return &PersistenceError{Op: "count journals on route", Err: err}
		}
		if count > 0 {
			return fmt.Errorf("%w: %s is referenced by %d journals", ErrRouteInUse, code, count)
		}
		if err := tx.Where("route_code = ?", code).Delete(&RouteStep{}).Error; err != nil {
			return &PersistenceError{Op: "delete route steps", Err: err}
		}
		result := tx.Where("code = ?", code).Delete(&WorkflowRoute{})
		if result.Error != nil {
			return &PersistenceError{Op: "delete route", Err: result.Error}
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRouteNotFound, code)
		}
		s.invalidateGraph(ctx, code)
		return nil
	})
}

// Graph loads the execution graph of an active route, from cache when
// possible. Satisfies RouteLoader.
func (s *Service) Graph(ctx context.Context, code string) (*RouteGraph, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, routeGraphCacheKey+code).Bytes(); err == nil {
			var steps []Step
			if err := json.Unmarshal(raw, &steps); err == nil {
				if g, err := NewRouteGraph(code, steps); err == nil {
					metrics.RouteCacheHitsTotal.WithLabelValues("hit").Inc()
					return g, nil
				}
			}
		}
		metrics.RouteCacheHitsTotal.WithLabelValues("miss").Inc()
	}

	route, err := s.GetRoute(ctx, code)
	if err != nil {
		return nil, err
	}
	if !route.Active {
		return nil, fmt.Errorf("%w: %s is not active", ErrRouteNotFound, code)
	}

	steps := make([]Step, 0, len(route.Steps))
	for _, st := range route.Steps {
		steps = append(steps, st.ToStep())
	}
	graph, err := NewRouteGraph(code, steps)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(steps); err == nil {
			if err := s.cache.Set(ctx, routeGraphCacheKey+code, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("route graph cache write failed",
					zap.String("route_code", code),
					zap.Error(err),
				)
			}
		}
	}
	return graph, nil
}

func (s *Service) invalidateGraph(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, routeGraphCacheKey+code).Err(); err != nil {
		s.logger.Warn("route graph cache invalidation failed",
			zap.String("route_code", code),
			zap.Error(err),
		)
	}
}

func (s *Service) pendingJournalCount(tx *gorm.DB, routeCode string) (int64, error) {
	var count int64
	if err := tx.Model(&journal.JournalEntry{}).
		Where("route_code = ? AND status = ? AND deleted_at IS NULL", routeCode, StatusPending).
		Count(&count).Error; err != nil {
		return 0, &PersistenceError{Op: "count pending journals", Err: err}
	}
	return count, nil
}
