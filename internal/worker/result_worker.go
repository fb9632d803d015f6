package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 20
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes the results queue and bulk-persists the graded
// per-question rows of submitted sessions. The session row itself
// (status, score, finished_at) is updated synchronously at submission
// time; this worker only writes the detail rows, so losing a tick delays
// result breakdowns without ever reopening a session.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

type resultAnswer struct {
	QuestionID string  `json:"question_id"`
	Selected   *string `json:"selected"`
	IsCorrect  bool    `json:"is_correct"`
	IsFlagged  bool    `json:"is_flagged"`
}

type resultPayload struct {
	CandidateID int            `json:"candidate_id"`
	ExamID      string         `json:"exam_id"`
	Score       float64        `json:"score"`
	Status      string         `json:"status"`
	Answers     []resultAnswer `json:"answers"`
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*resultPayload, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p resultPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*resultPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk result insert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).
					Int("candidate_id", p.CandidateID).
					Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
	}
}

func (w *ResultWorker) bulkInsert(ctx context.Context, batch []*resultPayload) error {
	rows := make([][]interface{}, 0, len(batch)*10)
	for _, p := range batch {
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			return err
		}
		for _, a := range p.Answers {
			questionID, err := uuid.Parse(a.QuestionID)
			if err != nil {
				return err
			}
			rows = append(rows, []interface{}{
				examID, p.CandidateID, questionID, a.Selected, a.IsCorrect, a.IsFlagged,
			})
		}
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"submission_answers"},
		[]string{"exam_id", "candidate_id", "question_id", "selected_answer", "is_correct", "is_flagged"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ResultWorker) persistSingle(ctx context.Context, p *resultPayload) error {
	examID, err := uuid.Parse(p.ExamID)
	if err != nil {
		return err
	}

	for _, a := range p.Answers {
		questionID, err := uuid.Parse(a.QuestionID)
		if err != nil {
			w.log.Error().Str("question_id", a.QuestionID).Msg("Dropping answer with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO submission_answers (exam_id, candidate_id, question_id, selected_answer, is_correct, is_flagged)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (exam_id, candidate_id, question_id) DO UPDATE
			 SET selected_answer = EXCLUDED.selected_answer,
			     is_correct = EXCLUDED.is_correct,
			     is_flagged = EXCLUDED.is_flagged`,
			examID, p.CandidateID, questionID, a.Selected, a.IsCorrect, a.IsFlagged,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
