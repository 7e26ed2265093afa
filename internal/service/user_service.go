package service

import (
	"context"
	"time"

	"prakriti-service/internal/apperr"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"
	"prakriti-service/internal/scoring"

	"github.com/google/uuid"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
	recentRewardsLimit     = 10
	rebuildLeaderboardSize = 10000

	SourceCache    = "cache"
	SourceDatabase = "database"
)

// LeaderboardCache is the ranked score store read ahead of Postgres.
type LeaderboardCache interface {
	Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
	Rebuild(ctx context.Context, entries []model.LeaderboardEntry) error
}

type UserService struct {
	userRepo *repository.UserRepository
	cache    LeaderboardCache
	log      *logger.Logger
}

// NewUserService builds the service. cache may be nil, in which case the
// leaderboard is always read from Postgres.
func NewUserService(userRepo *repository.UserRepository, cache LeaderboardCache, log *logger.Logger) *UserService {
	return &UserService{userRepo: userRepo, cache: cache, log: log}
}

// Me returns the actor's stats. An actor who has never written anything
// gets a fresh level-1 profile.
func (s *UserService) Me(ctx context.Context, actor model.Actor) (*model.UserProfile, error) {
	u, err := s.userRepo.FindByID(ctx, actor.UserID)
	if apperr.IsNotFound(err) {
		u = &model.User{ID: actor.UserID, Username: actor.Username, Role: actor.Role, Level: 1, CreatedAt: time.Now().UTC()}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	rewards, err := s.userRepo.RewardHistory(ctx, actor.UserID, recentRewardsLimit)
	if err != nil {
		return nil, err
	}

	profile := &model.UserProfile{User: *u, RecentRewards: rewards}
	if next := scoring.NextLevelAt(u.Level); next >= 0 {
		profile.NextLevelAt = &next
	}
	return profile, nil
}

// Leaderboard ranks users by points. Redis is tried first; any cache error
// falls back to Postgres.
func (s *UserService) Leaderboard(ctx context.Context, limit int) (*model.LeaderboardResponse, error) {
	if limit < 1 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	if s.cache != nil {
		entries, err := s.fromCache(ctx, limit)
		if err == nil {
			return &model.LeaderboardResponse{Entries: entries, Source: SourceCache}, nil
		}
		s.log.WithError(err).Warn("leaderboard cache unavailable, reading from database")
	}

	entries, err := s.userRepo.TopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &model.LeaderboardResponse{Entries: entries, Source: SourceDatabase}, nil
}

func (s *UserService) fromCache(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	entries, err := s.cache.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	briefs, err := s.userRepo.Usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if b, ok := briefs[entries[i].UserID]; ok {
			entries[i].Username = b.Username
			entries[i].Level = b.Level
		}
	}
	return entries, nil
}

// RebuildLeaderboard replaces the cached ranking with Postgres totals.
func (s *UserService) RebuildLeaderboard(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, apperr.InvalidState("no cache configured", "rebuild leaderboard")
	}
	entries, err := s.userRepo.TopByPoints(ctx, rebuildLeaderboardSize)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Rebuild(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
