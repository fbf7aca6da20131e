package billing

import (
	"context"
	"errors"

	"github.com/fitcheckhq/fitcheck-backend/pkg/db/models"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
)

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo Repository
}

// Service exposes catalog reads for the API layer.
type Service struct {
	repo Repository
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// ListPlans returns all catalog plans ordered by limit.
func (s *Service) ListPlans(ctx context.Context) ([]models.BillingPlan, error) {
	return s.repo.ListBillingPlans(ctx)
}

// FindPlanByTier returns the plan row for the given tier, or nil.
func (s *Service) FindPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	return s.repo.FindBillingPlanByTier(ctx, tier)
}
