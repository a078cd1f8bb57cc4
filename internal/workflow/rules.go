package workflow

import (
	"context"
	"fmt"

	"backend/internal/journal"
	"backend/internal/logger"

	"github.com/Knetic/govaluate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RouteSelector picks an approval route for a journal at submit time by
// evaluating the active route rules in priority order. The first rule whose
// condition evaluates to true wins.
//
// Conditions are boolean expressions over the journal's attributes, e.g.
//
//	amount >= 1000000
//	department == 'sales' && amount > 50000
type RouteSelector struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRouteSelector 创建路由选择器
func NewRouteSelector(db *gorm.DB) *RouteSelector {
	return &RouteSelector{db: db, logger: logger.Get()}
}

// SelectRoute returns the route code of the first matching rule, or
// ErrNoRouteMatched when no rule applies.
func (s *RouteSelector) SelectRoute(ctx context.Context, entry *journal.JournalEntry) (string, error) {
	var rules []RouteRule
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error; err != nil {
		return "", &PersistenceError{Op: "load route rules", Err: err}
	}

	params := ruleParameters(entry)
	for _, rule := range rules {
		matched, err := evaluateCondition(rule.Condition, params)
		if err != nil {
			// 条件本身有问题的规则跳过，不让一条坏规则挡住提交
			s.logger.Warn("route rule condition failed to evaluate",
				zap.String("rule", rule.Name),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			continue
		}
		if matched {
			return rule.RouteCode, nil
		}
	}
	return "", ErrNoRouteMatched
}

// ruleParameters flattens the journal into the variables a condition may
// reference. Free-form attributes are merged in without overriding the
// built-ins.
func ruleParameters(entry *journal.JournalEntry) map[string]any {
	params := map[string]any{
		"amount":     float64(entry.DebitTotal()),
		"line_count": len(entry.Lines),
		"created_by": entry.CreatedBy,
	}
	for key, value := range entry.Attributes {
		if _, reserved := params[key]; !reserved {
			params[key] = value
		}
	}
	return params
}

func evaluateCondition(condition string, params map[string]any) (bool, error) {
	expr, err := govaluate.NewEvaluableExpression(condition)
	if err != nil {
		return false, fmt.Errorf("parse condition: %w", err)
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition result is %T, want bool", result)
	}
	return matched, nil
}
