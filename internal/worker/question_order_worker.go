package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	QuestionOrderBatchSize    = 50
	QuestionOrderBatchTimeout = 2 * time.Second
	QuestionOrderPollTimeout  = 1 * time.Second
)

// QuestionOrderWorker consumes the question order queue and persists each
// candidate's shuffled order onto the session row. An order is produced
// once per session at start and is immutable afterwards, so the flush
// keeps only the last payload per session and pushes the updates through
// one pipelined batch rather than a round trip per row.
type QuestionOrderWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewQuestionOrderWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *QuestionOrderWorker {
	return &QuestionOrderWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "question_order_worker").Logger(),
	}
}

type questionOrderPayload struct {
	ExamID      string   `json:"exam_id"`
	CandidateID int      `json:"candidate_id"`
	Order       []string `json:"order"`
}

func (w *QuestionOrderWorker) Start(ctx context.Context) {
	w.log.Info().Msg("QuestionOrderWorker started")

	batch := make([]*questionOrderPayload, 0, QuestionOrderBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= QuestionOrderBatchSize || time.Since(lastFlush) >= QuestionOrderBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, QuestionOrderPollTimeout, config.WorkerKey.PersistQuestionOrderQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p questionOrderPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// flush deduplicates the batch to the newest order per session and sends
// every update in a single pipelined batch. Rows that fail are requeued
// individually so one bad session does not stall the rest.
func (w *QuestionOrderWorker) flush(ctx context.Context, batch []*questionOrderPayload) {
	if len(batch) == 0 {
		return
	}

	latest := make(map[string]*questionOrderPayload, len(batch))
	keys := make([]string, 0, len(batch))
	for _, p := range batch {
		key := p.ExamID + ":" + strconv.Itoa(p.CandidateID)
		if _, seen := latest[key]; !seen {
			keys = append(keys, key)
		}
		latest[key] = p
	}

	b := &pgx.Batch{}
	queued := make([]*questionOrderPayload, 0, len(keys))
	for _, key := range keys {
		p := latest[key]
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			w.log.Error().Str("exam_id", p.ExamID).Msg("Dropping order with invalid exam UUID")
			continue
		}

		orderJSON, _ := json.Marshal(p.Order)
		b.Queue(
			`UPDATE exam_sessions
			 SET question_order = $1
			 WHERE exam_id = $2 AND candidate_id = $3`,
			orderJSON, examID, p.CandidateID,
		)
		queued = append(queued, p)
	}
	if b.Len() == 0 {
		return
	}

	results := w.pool.SendBatch(ctx, b)
	defer results.Close()

	for _, p := range queued {
		if _, err := results.Exec(); err != nil {
			w.log.Error().Err(err).
				Str("exam_id", p.ExamID).
				Int("candidate_id", p.CandidateID).
				Msg("Order update failed, requeueing")
			raw, _ := json.Marshal(p)
			w.rdb.RPush(ctx, config.WorkerKey.PersistQuestionOrderQueue, raw)
		}
	}
}
