package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"ijtihad-backend/model"
)

// Dequeuer is the queue side the pool consumes from. Satisfied by
// *queue.Queue; tests substitute an in-memory implementation.
type Dequeuer interface {
	Dequeue(ctx context.Context, blockFor time.Duration) (*model.WorkItem, error)
}

// TaskExecutor runs one work item to its terminal record. Satisfied by
// *pipeline.Executor.
type TaskExecutor interface {
	Execute(ctx context.Context, item model.WorkItem)
}

// Pool consumes work items and executes them. Each worker handles one
// task at a time; tasks never share state beyond the task store.
type Pool struct {
	Queue    Dequeuer
	Executor TaskExecutor

	// TaskTimeout caps the wall clock per task. Zero means no cap.
	TaskTimeout time.Duration
}

// Start launches workerCount goroutines that drain the queue until ctx
// is cancelled.
func (p *Pool) Start(ctx context.Context, workerCount int, wg *sync.WaitGroup) {
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					log.Printf("[worker %d] shutting down", id)
					return
				default:
					item, err := p.Queue.Dequeue(ctx, 2*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							log.Printf("[worker %d] shutting down", id)
							return
						}
						log.Printf("[worker %d] dequeue error: %v", id, err)
						continue
					}
					if item == nil {
						continue
					}

					p.run(ctx, id, *item)
				}
			}
		}(i + 1)
	}
}

func (p *Pool) run(ctx context.Context, id int, item model.WorkItem) {
	taskCtx := ctx
	if p.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.TaskTimeout)
		defer cancel()
	}

	log.Printf("[worker %d] processing task %s (%s)", id, item.TaskID, item.Type)
	p.Executor.Execute(taskCtx, item)
	log.Printf("[worker %d] finished task %s", id, item.TaskID)
}
