package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// MonitorRepository provides data access for the live exam monitoring
// feature. It combines PostgreSQL (session state, proctor events) and
// Redis (live answer counts from the in-flight answer hashes).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// GetInProgressCandidateIDs returns all candidate IDs with an active session
// for the given exam.
func (r *MonitorRepository) GetInProgressCandidateIDs(ctx context.Context, examID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id FROM exam_sessions WHERE exam_id = $1 AND status = 'IN_PROGRESS'`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAnsweredCounts returns the number of answered questions per in-progress
// candidate. In-flight answers live in Redis hashes, so the counts come from
// a pipelined HLEN over every active candidate rather than a table scan.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	ids, err := r.GetInProgressCandidateIDs(ctx, examID)
	if err != nil {
		return nil, err
	}

	result := make(map[int]int64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make(map[int]*redis.IntCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HLen(ctx, config.CacheKey.CandidateAnswersKey(examID.String(), id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for id, cmd := range cmds {
		result[id] = cmd.Val()
	}
	return result, nil
}

// GetProctorCounts returns the number of proctor events recorded for each
// candidate in the given exam.
func (r *MonitorRepository) GetProctorCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id, COUNT(*)
		 FROM proctor_events
		 WHERE exam_id = $1
		 GROUP BY candidate_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var cid int
		var count int64
		if err := rows.Scan(&cid, &count); err != nil {
			return nil, err
		}
		counts[cid] = count
	}

	return counts, rows.Err()
}
