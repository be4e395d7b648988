package jobs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RichardKnop/machinery/v1"
	machineryconfig "github.com/RichardKnop/machinery/v1/config"
	"github.com/RichardKnop/machinery/v1/tasks"
	"github.com/go-redis/redis"
	"github.com/google/uuid"
)

// TaskSendReminder is the registered name of the notification task
const TaskSendReminder = "send_reminder"

// defaultQueue is the machinery ready queue; delayed signatures sit in the
// broker's delayed_tasks sorted set until their ETA
const (
	defaultQueue    = "reminder_tasks"
	delayedTasksKey = "delayed_tasks"
)

// Runner is the delayed-job capability the services depend on. Submit,
// State and Revoke are each independently fallible; Revoke is best-effort
// and a job may still fire after a successful Revoke.
type Runner interface {
	Submit(payload Payload, eta time.Time) (string, error)
	State(jobID string) (string, error)
	Revoke(jobID string) error
}

// IsTerminal reports whether a job state can no longer be cancelled
func IsTerminal(state string) bool {
	switch state {
	case tasks.StateSuccess, tasks.StateFailure:
		return true
	}
	return false
}

// MachineryRunner implements Runner on a machinery server with a Redis
// broker and result backend
type MachineryRunner struct {
	server *machinery.Server
	redis  *redis.Client
	queue  string
}

// NewMachineryRunner builds the machinery server and its companion Redis
// client from REDIS_ADDR
func NewMachineryRunner() (*MachineryRunner, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	cfg := &machineryconfig.Config{
		Broker:          "redis://" + addr + "/1",
		DefaultQueue:    defaultQueue,
		ResultBackend:   "redis://" + addr + "/1",
		ResultsExpireIn: 3600,
	}
	server, err := machinery.NewServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start machinery server: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   1,
	})

	return &MachineryRunner{
		server: server,
		redis:  client,
		queue:  defaultQueue,
	}, nil
}

// Server exposes the underlying machinery server so the worker process can
// register tasks and launch
func (r *MachineryRunner) Server() *machinery.Server {
	return r.server
}

// Submit enqueues a reminder task to fire at eta and returns its job id
func (r *MachineryRunner) Submit(payload Payload, eta time.Time) (string, error) {
	raw, err := payload.Marshal()
	if err != nil {
		return "", err
	}

	signature := &tasks.Signature{
		UUID: fmt.Sprintf("task_%s", uuid.New().String()),
		Name: TaskSendReminder,
		ETA:  &eta,
		Args: []tasks.Arg{
			{
				Type:  "string",
				Value: raw,
			},
		},
	}
	signature.RetryCount = 3

	if _, err := r.server.SendTask(signature); err != nil {
		return "", fmt.Errorf("failed to submit task: %w", err)
	}
	return signature.UUID, nil
}

// State queries the result backend for the job's current state
func (r *MachineryRunner) State(jobID string) (string, error) {
	state, err := r.server.GetBackend().GetState(jobID)
	if err != nil {
		return "", fmt.Errorf("failed to query task state: %w", err)
	}
	return state.State, nil
}

// Revoke removes the job's signature from the broker if it has not been
// picked up yet. Machinery has no first-class revoke, so this scans the
// delayed set and the ready queue for the serialized signature. A job that
// is not found (already fired or in flight) is not an error.
func (r *MachineryRunner) Revoke(jobID string) error {
	marker := fmt.Sprintf("%q:%q", "UUID", jobID)

	members, err := r.redis.ZRange(delayedTasksKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to scan delayed tasks: %w", err)
	}
	for _, member := range members {
		if strings.Contains(member, marker) {
			if err := r.redis.ZRem(delayedTasksKey, member).Err(); err != nil {
				return fmt.Errorf("failed to remove delayed task: %w", err)
			}
			return nil
		}
	}

	// The ETA may already have passed, moving the signature to the ready queue
	queued, err := r.redis.LRange(r.queue, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to scan task queue: %w", err)
	}
	for _, member := range queued {
		if strings.Contains(member, marker) {
			if err := r.redis.LRem(r.queue, 0, member).Err(); err != nil {
				return fmt.Errorf("failed to remove queued task: %w", err)
			}
			return nil
		}
	}

	return nil
}
