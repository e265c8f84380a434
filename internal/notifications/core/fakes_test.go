package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"courier/internal/types"
)

// --- Logger ---

type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockLogger) add(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, s)
}

func (m *mockLogger) Info(msg string, args ...any)  { m.add("info:" + msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.add("error:" + msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.add("warn:" + msg) }
func (m *mockLogger) With(args ...any) types.Logger  { return m }

func (m *mockLogger) has(s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg == s {
			return true
		}
	}
	return false
}

// --- Clock ---

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// --- In-memory store with transactional rollback ---

type memStore struct {
	mu            sync.Mutex
	notifications map[string]*types.Notification
	messages      map[string]*types.Message
	attachments   []types.MessageAttachment
	outbox        []*types.OutboxEntry
	persons       map[string]*types.Person
	files         map[string]*types.StoredFile
	optOuts       map[string]bool
	txCount       int
}

func newMemStore() *memStore {
	return &memStore{
		notifications: map[string]*types.Notification{},
		messages:      map[string]*types.Message{},
		persons:       map[string]*types.Person{},
		files:         map[string]*types.StoredFile{},
		optOuts:       map[string]bool{},
	}
}

type memSnapshot struct {
	notifications map[string]*types.Notification
	messages      map[string]*types.Message
	attachments   []types.MessageAttachment
	outbox        []*types.OutboxEntry
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		notifications: make(map[string]*types.Notification, len(s.notifications)),
		messages:      make(map[string]*types.Message, len(s.messages)),
		attachments:   append([]types.MessageAttachment(nil), s.attachments...),
		outbox:        append([]*types.OutboxEntry(nil), s.outbox...),
	}
	for k, v := range s.notifications {
		snap.notifications[k] = v
	}
	for k, v := range s.messages {
		c := *v
		snap.messages[k] = &c
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.notifications = snap.notifications
	s.messages = snap.messages
	s.attachments = snap.attachments
	s.outbox = snap.outbox
}

// RunInTx serializes transactions, which also models the row lock taken by
// GetForUpdate.
func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.RepositoryRegistry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	snap := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Notifications() types.NotificationRepository { return memNotifications{s} }
func (s *memStore) Messages() types.MessageRepository           { return memMessages{s} }
func (s *memStore) Attachments() types.AttachmentRepository     { return memAttachments{s} }
func (s *memStore) Outbox() types.OutboxRepository              { return memOutbox{s} }
func (s *memStore) Persons() types.PersonRepository             { return memPersons{s} }
func (s *memStore) StoredFiles() types.StoredFileRepository     { return memFiles{s} }
func (s *memStore) Preferences() types.PreferenceRepository     { return memPrefs{s} }

func (s *memStore) message(id string) *types.Message {
	m := s.messages[id]
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(_ context.Context, n *types.Notification) error {
	r.s.notifications[n.ID] = n
	return nil
}

func (r memNotifications) GetByID(_ context.Context, id string) (*types.Notification, error) {
	if n, ok := r.s.notifications[id]; ok {
		return n, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
}

type memMessages struct{ s *memStore }

func (r memMessages) Create(_ context.Context, m *types.Message) error {
	c := *m
	r.s.messages[m.ID] = &c
	return nil
}

func (r memMessages) GetByID(_ context.Context, id string) (*types.Message, error) {
	if m := r.s.message(id); m != nil {
		return m, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
}

func (r memMessages) GetForUpdate(ctx context.Context, id string) (*types.Message, error) {
	return r.GetByID(ctx, id)
}

func (r memMessages) ListByNotification(_ context.Context, notificationID string) ([]*types.Message, error) {
	var out []*types.Message
	for id, m := range r.s.messages {
		if m.NotificationID == notificationID {
			out = append(out, r.s.message(id))
		}
	}
	return out, nil
}

func (r memMessages) UpdateDelivery(_ context.Context, m *types.Message) error {
	if _, ok := r.s.messages[m.ID]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
	}
	c := *m
	r.s.messages[m.ID] = &c
	return nil
}

func (r memMessages) ListStale(context.Context, time.Time, int, int) ([]string, error) {
	return nil, nil
}

type memAttachments struct{ s *memStore }

func (r memAttachments) Create(_ context.Context, a *types.MessageAttachment) error {
	r.s.attachments = append(r.s.attachments, *a)
	return nil
}

func (r memAttachments) ListByMessage(_ context.Context, messageID string) ([]types.MessageAttachment, error) {
	var out []types.MessageAttachment
	for _, a := range r.s.attachments {
		if a.MessageID == messageID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memOutbox struct{ s *memStore }

func (r memOutbox) Enqueue(_ context.Context, e *types.OutboxEntry) error {
	r.s.outbox = append(r.s.outbox, e)
	return nil
}

func (r memOutbox) ClaimDue(context.Context, time.Time, int) ([]*types.OutboxEntry, error) {
	return nil, nil
}
func (r memOutbox) MarkPublished(context.Context, string, time.Time) error { return nil }
func (r memOutbox) MarkFailed(context.Context, string) error               { return nil }

type memPersons struct{ s *memStore }

func (r memPersons) GetByID(_ context.Context, id string) (*types.Person, error) {
	if p, ok := r.s.persons[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundPerson, "person not found", nil)
}

type memFiles struct{ s *memStore }

func (r memFiles) GetByID(_ context.Context, id string) (*types.StoredFile, error) {
	if f, ok := r.s.files[id]; ok {
		return f, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundStoredFile, "stored file not found", nil)
}

type memPrefs struct{ s *memStore }

func (r memPrefs) IsOptedOut(_ context.Context, personID, typeID string) (bool, error) {
	return r.s.optOuts[personID+"|"+typeID], nil
}

// --- Catalog ---

type fakeCatalog struct {
	types     map[string]*types.NotificationType
	channels  map[string]*types.ChannelConfig
	templates map[string]*types.Template
	routes    map[string][]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		types:     map[string]*types.NotificationType{},
		channels:  map[string]*types.ChannelConfig{},
		templates: map[string]*types.Template{},
		routes:    map[string][]string{},
	}
}

func (c *fakeCatalog) NotificationType(_ context.Context, id string) (*types.NotificationType, error) {
	if t, ok := c.types[id]; ok {
		return t, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundNotificationType, "type not found", nil)
}

func (c *fakeCatalog) Channel(_ context.Context, id string) (*types.ChannelConfig, error) {
	if ch, ok := c.channels[id]; ok {
		return ch, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundChannel, "channel not found", nil)
}

func (c *fakeCatalog) Template(_ context.Context, typeID string, format types.ContentFormat) (*types.Template, error) {
	if t, ok := c.templates[typeID+"|"+string(format)]; ok {
		return t, nil
	}
	return nil, types.NewAppError(types.ErrCodeTemplateNotFound, "template not found", nil)
}

func (c *fakeCatalog) RoutesFor(_ context.Context, typeID string, _ types.Priority) ([]string, error) {
	return c.routes[typeID], nil
}

func (c *fakeCatalog) addTemplate(typeID string, format types.ContentFormat, title, body string) {
	c.templates[typeID+"|"+string(format)] = &types.Template{
		ID: "tmpl-" + typeID + "-" + string(format), TypeID: typeID, Format: format,
		TitleTemplate: title, BodyTemplate: body,
	}
}

// --- Adapter ---

type fakeAdapter struct {
	id        types.AdapterID
	address   func(p *types.Person) string
	mu        sync.Mutex
	responses []func() (SendStatus, error)
	requests  []SendRequest
	bodies    [][]string
}

func newEmailAdapter() *fakeAdapter {
	return &fakeAdapter{id: "email.fake", address: func(p *types.Person) string { return p.Email }}
}

func newSMSAdapter() *fakeAdapter {
	return &fakeAdapter{id: "sms.fake", address: func(p *types.Person) string { return p.MobileNumber }}
}

func (a *fakeAdapter) ID() types.AdapterID               { return a.id }
func (a *fakeAdapter) AddressOf(p *types.Person) string { return a.address(p) }

func (a *fakeAdapter) Send(_ context.Context, req SendRequest) (SendStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	var contents []string
	for _, att := range req.Attachments {
		b, _ := io.ReadAll(att.Content)
		contents = append(contents, att.FileName+"="+string(b))
	}
	a.bodies = append(a.bodies, contents)

	if len(a.responses) == 0 {
		return SendStatus{Success: true, ProviderID: "prov-1"}, nil
	}
	next := a.responses[0]
	a.responses = a.responses[1:]
	return next()
}

func (a *fakeAdapter) failWith(msg string) func() (SendStatus, error) {
	return func() (SendStatus, error) { return SendStatus{Success: false, Message: msg}, nil }
}

func (a *fakeAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

// --- File store ---

type fakeFiles struct {
	content map[string]string
	err     error
}

func (f *fakeFiles) Exists(_ context.Context, sf *types.StoredFile) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.content[sf.ID]
	return ok, nil
}

func (f *fakeFiles) Open(_ context.Context, sf *types.StoredFile) (io.ReadCloser, error) {
	c, ok := f.content[sf.ID]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewBufferString(c)), nil
}

// --- Metrics ---

type recordedAttempt struct {
	channel string
	adapter types.AdapterID
	result  MetricResult
}

type fakeMetrics struct {
	mu       sync.Mutex
	attempts []recordedAttempt
}

func (m *fakeMetrics) RecordAttempt(_ context.Context, channel string, adapter types.AdapterID, result MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, recordedAttempt{channel, adapter, result})
}

func (m *fakeMetrics) RecordLatency(context.Context, string, time.Duration) {}
