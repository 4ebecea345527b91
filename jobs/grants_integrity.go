package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/vantage-ops/vantage/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// GrantsIntegrityJob scans role_permissions for rows whose role or permission
// group no longer exists. The rows are harmless to the evaluator (they never
// resolve) but they accumulate after role catalog edits, so the scan surfaces
// them for cleanup.
type GrantsIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGrantsIntegrityJob wires dependencies for the integrity handler.
func NewGrantsIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *GrantsIntegrityJob {
	return &GrantsIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes grant integrity scan tasks.
func (j *GrantsIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("grants integrity: handler not configured")
	}
	if j.Pool == nil {
		return errors.New("grants integrity: pool not configured")
	}

	tracker := j.metrics().Track(TaskGrantsIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	started := j.now()
	logger.Info("starting grants integrity scan")

	missingRoles, err := j.countOrphans(ctx, `
		SELECT COUNT(*)
		FROM role_permissions rp
		LEFT JOIN roles r ON r.id = rp.role_id
		WHERE r.id IS NULL`)
	if err != nil {
		resultErr = err
		logger.Error("scan grants without roles", slog.Any("error", err))
		return resultErr
	}

	missingGroups, err := j.countOrphans(ctx, `
		SELECT COUNT(*)
		FROM role_permissions rp
		LEFT JOIN permission_groups pg ON pg.id = rp.permission_group_id
		WHERE pg.id IS NULL`)
	if err != nil {
		resultErr = err
		logger.Error("scan grants without permission groups", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddOrphanedGrants("missing_role", missingRoles)
	j.metrics().AddOrphanedGrants("missing_permission_group", missingGroups)

	if missingRoles > 0 || missingGroups > 0 {
		logger.Warn("orphaned grants detected",
			slog.Int("missing_role", missingRoles),
			slog.Int("missing_permission_group", missingGroups))
	}
	logger.Info("completed grants integrity scan",
		slog.Int("missing_role", missingRoles),
		slog.Int("missing_permission_group", missingGroups),
		slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *GrantsIntegrityJob) countOrphans(ctx context.Context, query string) (int, error) {
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var count int
	if err := j.Pool.QueryRow(scanCtx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (j *GrantsIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGrantsIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGrantsIntegrity))
}

func (j *GrantsIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GrantsIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
