package service

import (
	"context"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"
)

// AdminService exposes operational views over the outbox.
type AdminService struct {
	outboxRepo *repository.OutboxRepository
}

func NewAdminService(outboxRepo *repository.OutboxRepository) *AdminService {
	return &AdminService{outboxRepo: outboxRepo}
}

// OutboxStats counts outbox rows by status.
func (s *AdminService) OutboxStats(ctx context.Context, actor model.Actor) (map[string]int, error) {
	if !actor.CanManage() {
		return nil, apperr.Unauthorized("admin or government role required")
	}
	return s.outboxRepo.GetStats(ctx)
}

// PurgePublished deletes published rows older than the given age.
func (s *AdminService) PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperr.Validation("older_than", "must be positive")
	}
	return s.outboxRepo.DeletePublished(ctx, olderThan)
}
