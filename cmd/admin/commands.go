package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"prakriti-service/config"
	"prakriti-service/internal/cache"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"
	"prakriti-service/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var cliActor = model.Actor{Username: "admin-cli", Role: model.RoleAdmin}

// app holds the connections shared by every subcommand.
type app struct {
	db    *sql.DB
	cache service.LeaderboardCache
	log   *logger.Logger

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newRootCmd wires the command tree. A nil app is built from the config
// file on first use.
func newRootCmd(a *app) *cobra.Command {
	var configPath string
	injected := a != nil
	if a == nil {
		a = &app{}
	}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintenance jobs for prakriti-service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if injected {
				return nil
			}
			return a.open(configPath)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "Path to the JSON config file")

	root.AddCommand(
		newMigrateCmd(a),
		newRecomputeCmd(a),
		newOutboxCmd(a),
		newRebuildLeaderboardCmd(a),
	)
	return root
}

func (a *app) open(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.log = logger.New("prakriti-admin", cfg.Log.Level)

	db, err := repository.Open(repository.DBConfig{DSN: cfg.Database.DSN(), ConnectRetries: 1})
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		a.cache = cache.NewLeaderboard(client, cfg.Redis.Key)
	}
	return nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repository.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			cmd.Println("schema applied")
			return nil
		},
	}
}

func newRecomputeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-statistics [task-id]",
		Short: "Recompute submission statistics for one task or all tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id *uuid.UUID
			if len(args) == 1 {
				parsed, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid task id %q: %w", args[0], err)
				}
				id = &parsed
			}

			tasks := service.NewTaskService(repository.NewTaskRepository(a.db), nil, nil, nil, nil, a.log)
			n, err := tasks.RecomputeStatistics(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Printf("recomputed statistics for %d task(s)\n", n)
			return nil
		},
	}
}

func newOutboxCmd(a *app) *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and prune the event outbox",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count outbox rows by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := service.NewAdminService(repository.NewOutboxRepository(a.db)).OutboxStats(cmd.Context(), cliActor)
			if err != nil {
				return err
			}
			statuses := make([]string, 0, len(counts))
			for status := range counts {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				cmd.Printf("%-10s %d\n", status, counts[status])
			}
			return nil
		},
	}

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete published rows older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := service.NewAdminService(repository.NewOutboxRepository(a.db)).PurgePublished(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			cmd.Printf("deleted %d published message(s)\n", n)
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Minimum age of published rows to delete")

	outbox.AddCommand(stats, purge)
	return outbox
}

func newRebuildLeaderboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-leaderboard",
		Short: "Rebuild the Redis leaderboard from Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users := service.NewUserService(repository.NewUserRepository(a.db), a.cache, a.log)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			n, err := users.RebuildLeaderboard(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("leaderboard rebuilt with %d user(s)\n", n)
			return nil
		},
	}
}
