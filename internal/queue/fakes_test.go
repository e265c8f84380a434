package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"courier/internal/types"
)

type mockSQSSender struct {
	mu        sync.Mutex
	calls     []*sqs.SendMessageInput
	returnErr error
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &sqs.SendMessageOutput{}, nil
}

type publishedJob struct {
	job   types.SendJob
	delay time.Duration
}

type fakePublisher struct {
	jobs []publishedJob
	// failFor lists message ids whose publish fails.
	failFor map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, job types.SendJob, delay time.Duration) error {
	if p.failFor[job.MessageID] {
		return types.NewAppError(types.ErrCodeUpstreamQueue, "sqs down", errors.New("503"))
	}
	p.jobs = append(p.jobs, publishedJob{job: job, delay: delay})
	return nil
}

type fakeOutbox struct {
	rows     []*types.OutboxEntry
	claimErr error
}

func (o *fakeOutbox) Enqueue(_ context.Context, e *types.OutboxEntry) error {
	cp := *e
	o.rows = append(o.rows, &cp)
	return nil
}

func (o *fakeOutbox) ClaimDue(_ context.Context, now time.Time, limit int) ([]*types.OutboxEntry, error) {
	if o.claimErr != nil {
		return nil, o.claimErr
	}
	var out []*types.OutboxEntry
	for _, r := range o.rows {
		if r.PublishedAt == nil && !r.AvailableAt.After(now) && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (o *fakeOutbox) find(id string) *types.OutboxEntry {
	for _, r := range o.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (o *fakeOutbox) MarkPublished(_ context.Context, id string, at time.Time) error {
	r := o.find(id)
	r.PublishedAt = &at
	r.Attempts++
	return nil
}

func (o *fakeOutbox) MarkFailed(_ context.Context, id string) error {
	o.find(id).Attempts++
	return nil
}

type fakeMessages struct {
	types.MessageRepository
	stale    []string
	staleErr error

	gotOlderThan   time.Time
	gotMaxEnqueues int
	gotLimit       int
}

func (m *fakeMessages) ListStale(_ context.Context, olderThan time.Time, maxEnqueues, limit int) ([]string, error) {
	m.gotOlderThan, m.gotMaxEnqueues, m.gotLimit = olderThan, maxEnqueues, limit
	return m.stale, m.staleErr
}

type fakeRepos struct {
	types.RepositoryRegistry
	outbox   *fakeOutbox
	messages *fakeMessages
}

func (r *fakeRepos) Outbox() types.OutboxRepository    { return r.outbox }
func (r *fakeRepos) Messages() types.MessageRepository { return r.messages }

// fakeTx runs fn against the same repositories and counts transactions.
type fakeTx struct {
	repos *fakeRepos
	runs  atomic.Int32
}

func (t *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.RepositoryRegistry) error) error {
	t.runs.Add(1)
	return fn(ctx, t.repos)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingMetrics struct {
	published []int
	lags      []time.Duration
}

func (m *recordingMetrics) RecordOutboxPublished(_ context.Context, n int) {
	m.published = append(m.published, n)
}

func (m *recordingMetrics) RecordOutboxLag(_ context.Context, lag time.Duration) {
	m.lags = append(m.lags, lag)
}

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newFakeStore() (*fakeRepos, *fakeTx) {
	repos := &fakeRepos{outbox: &fakeOutbox{}, messages: &fakeMessages{}}
	return repos, &fakeTx{repos: repos}
}
