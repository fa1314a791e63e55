package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Job is the message published for every requested code.
type Job struct {
	TaskID string `json:"task_id"`
	Code   string `json:"code"`
	To     string `json:"to"`
}

// Worker delivers queued jobs and records their outcome.
type Worker struct {
	store      TaskStore
	mailer     Mailer
	base       time.Duration
	maxRetries uint64
	log        *zap.Logger
	now        func() time.Time
}

// NewWorker creates a Worker. Failed deliveries are retried at most twice with
// exponential backoff starting at base.
func NewWorker(store TaskStore, mailer Mailer, base time.Duration, log *zap.Logger) *Worker {
	if base <= 0 {
		base = time.Second
	}
	return &Worker{
		store:      store,
		mailer:     mailer,
		base:       base,
		maxRetries: 2,
		log:        log,
		now:        time.Now,
	}
}

// Handle is the broker Handler. It returns an error only for messages that
// cannot be decoded; delivery failures are recorded on the task instead.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	if job.TaskID == "" || job.To == "" {
		return fmt.Errorf("decode job: missing task id or recipient")
	}
	log := w.log.With(zap.String("task_id", job.TaskID), zap.String("to", job.To))

	info := &TaskInfo{TaskID: job.TaskID, Status: StatusStarted}
	w.save(ctx, info, log)

	backoff := retry.WithMaxRetries(w.maxRetries, retry.NewExponential(w.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		info.Attempts++
		err := w.mailer.SendCode(ctx, job.To, job.Code)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRecipientNotFound) {
			return err
		}
		if uint64(info.Attempts) <= w.maxRetries {
			log.Warn("email delivery failed, retrying", zap.Int("attempt", info.Attempts), zap.Error(err))
			info.Status = StatusRetry
			w.save(ctx, info, log)
		}
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		info.Status = StatusSuccess
		info.Result = &TaskResult{Status: 200, Msg: "Successfully sent email"}
		log.Info("verification email sent", zap.Int("attempts", info.Attempts))
	case errors.Is(err, ErrRecipientNotFound):
		info.Status = StatusFailure
		info.Result = &TaskResult{Status: 550, Msg: "email address may not exist, please check it"}
		log.Warn("recipient rejected", zap.Error(err))
	default:
		info.Status = StatusFailure
		info.Result = &TaskResult{Status: 500, Msg: err.Error()}
		log.Error("email delivery failed", zap.Int("attempts", info.Attempts), zap.Error(err))
	}
	w.save(ctx, info, log)
	return nil
}

func (w *Worker) save(ctx context.Context, info *TaskInfo, log *zap.Logger) {
	info.UpdatedAt = w.now()
	if err := w.store.Save(ctx, info); err != nil {
		log.Error("failed to record task status", zap.String("status", string(info.Status)), zap.Error(err))
	}
}
