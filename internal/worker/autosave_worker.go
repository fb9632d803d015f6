package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	AutosaveBatchSize    = 100
	AutosaveBatchTimeout = 2 * time.Second
	AutosavePollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AutosaveWorker consumes the answers queue and UPSERTs TRAINING-mode
// answer selections into PostgreSQL. Selections are buffered for up to
// two seconds so a candidate clicking through options produces one write
// per question, not one per click.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

type answerPayload struct {
	CandidateID int    `json:"candidate_id"`
	ExamID      string `json:"exam_id"`
	QID         string `json:"q_id"`
	Answer      string `json:"answer"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*answerPayload, 0, AutosaveBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AutosaveBatchSize || time.Since(lastFlush) >= AutosaveBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AutosavePollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p answerPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *AutosaveWorker) flushSafe(ctx context.Context, batch []*answerPayload) {
	if len(batch) == 0 {
		return
	}

	// Debounce within the batch: keep only the newest selection per
	// question so repeated clicks collapse into a single UPSERT.
	latest := make(map[string]*answerPayload, len(batch))
	order := make([]string, 0, len(batch))
	for _, p := range batch {
		key := p.ExamID + ":" + p.QID + ":" + strconv.Itoa(p.CandidateID)
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = p
	}

	for _, key := range order {
		p := latest[key]
		if err := w.persistAnswer(ctx, p); err != nil {
			w.log.Error().Err(err).
				Int("candidate_id", p.CandidateID).
				Str("exam_id", p.ExamID).
				Msg("Persist error, requeueing")
			raw, _ := json.Marshal(p)
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
		}
	}
}

func (w *AutosaveWorker) persistAnswer(ctx context.Context, p *answerPayload) error {
	examID, err := uuid.Parse(p.ExamID)
	if err != nil {
		return err
	}

	questionID, err := uuid.Parse(p.QID)
	if err != nil {
		return err
	}

	// UPSERT the answer — creates or updates without locking.
	_, err = w.pool.Exec(ctx,
		`INSERT INTO session_answers (exam_id, candidate_id, question_id, answer)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, candidate_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		examID, p.CandidateID, questionID, p.Answer,
	)
	return err
}
