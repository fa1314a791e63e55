package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher hands verification codes to the delivery workers. Enqueue waits
// for the broker to accept the job, never for the email to be sent.
type Dispatcher struct {
	broker Broker
	store  TaskStore
	log    *zap.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(broker Broker, store TaskStore, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		broker: broker,
		store:  store,
		log:    log,
	}
}

// Enqueue schedules delivery of code to the address to and returns the task id.
func (d *Dispatcher) Enqueue(ctx context.Context, code, to string) (string, error) {
	job := Job{TaskID: uuid.New().String(), Code: code, To: to}

	info := &TaskInfo{TaskID: job.TaskID, Status: StatusPending, UpdatedAt: time.Now()}
	if err := d.store.Save(ctx, info); err != nil {
		return "", fmt.Errorf("failed to record task: %w", err)
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := d.broker.Publish(ctx, body); err != nil {
		info.Status = StatusFailure
		info.Result = &TaskResult{Status: 500, Msg: "could not queue email"}
		info.UpdatedAt = time.Now()
		if saveErr := d.store.Save(ctx, info); saveErr != nil {
			d.log.Error("failed to record task status", zap.String("task_id", job.TaskID), zap.Error(saveErr))
		}
		return "", fmt.Errorf("failed to publish email job: %w", err)
	}

	d.log.Debug("email job queued", zap.String("task_id", job.TaskID), zap.String("to", to))
	return job.TaskID, nil
}

// Fetch returns the current status of a task.
func (d *Dispatcher) Fetch(ctx context.Context, taskID string) (*TaskInfo, error) {
	return d.store.Load(ctx, taskID)
}
