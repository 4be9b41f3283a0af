package application

import (
	"context"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

// SubmitFunc submits one draft and returns the created zone.
type SubmitFunc func(ctx context.Context, d *zone.Draft) (*zone.Zone, error)

// SubmissionQueue processes drafts strictly one at a time, in order, reporting
// each result through its callbacks. A failure never stops the queue.
type SubmissionQueue struct {
	items     []*zone.Draft
	onSuccess func(d *zone.Draft, created *zone.Zone)
	onFailure func(d *zone.Draft, err error)
}

// NewSubmissionQueue queues drafts in the given order.
func NewSubmissionQueue(drafts []*zone.Draft) *SubmissionQueue {
	return &SubmissionQueue{items: append([]*zone.Draft(nil), drafts...)}
}

// OnSuccess sets the callback run after each successful submission.
func (q *SubmissionQueue) OnSuccess(fn func(d *zone.Draft, created *zone.Zone)) *SubmissionQueue {
	q.onSuccess = fn
	return q
}

// OnFailure sets the callback run after each failed submission.
func (q *SubmissionQueue) OnFailure(fn func(d *zone.Draft, err error)) *SubmissionQueue {
	q.onFailure = fn
	return q
}

// Len returns the number of queued drafts.
func (q *SubmissionQueue) Len() int { return len(q.items) }

// Run drains the queue. It ignores ctx cancellation between items; callers
// that must finish the batch pass a context that is not cancelled.
func (q *SubmissionQueue) Run(ctx context.Context, submit SubmitFunc) {
	for len(q.items) > 0 {
		d := q.items[0]
		q.items = q.items[1:]

		created, err := submit(ctx, d)
		if err != nil {
			if q.onFailure != nil {
				q.onFailure(d, err)
			}
			continue
		}
		if q.onSuccess != nil {
			q.onSuccess(d, created)
		}
	}
}
