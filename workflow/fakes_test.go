package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const testOwner = "owner-1"

// memStore is an in-memory models.Store with failure switches.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	clients  []*models.Client
	docs     []*models.Document
	jobs     map[int]*models.TransformJob
	sessions map[string]*models.ReviewSession
	clock    time.Time

	reads            int
	createDocCalls   int
	saves            int
	duplicateNumbers int
	failCreateDoc    error
	failCreateJob    error
	failComplete     error
}

var _ models.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		jobs:     map[int]*models.TransformJob{},
		sessions: map[string]*models.ReviewSession{},
		clock:    time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) addClient(name string) *models.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Client{ID: m.id(), OwnerId: testOwner, Name: name, CreatedAt: m.tick()}
	m.clients = append(m.clients, c)
	return c
}

func item(description string, qty, rate int64) models.LineItem {
	q, r := decimal.NewFromInt(qty), decimal.NewFromInt(rate)
	return models.LineItem{ItemKey: description, Description: description, Quantity: q, Unit: "unit", Rate: r, Total: q.Mul(r)}
}

func (m *memStore) addDocument(client *models.Client, docType models.DocumentType, number string, items ...models.LineItem) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := &models.Document{
		ID:           m.id(),
		OwnerId:      client.OwnerId,
		DocumentType: docType,
		Number:       number,
		ClientId:     client.ID,
		Status:       models.DocumentStatusSent,
		CreatedAt:    m.tick(),
	}
	for i, it := range items {
		it.ID = m.id()
		it.DocumentId = doc.ID
		it.Position = i
		doc.Items = append(doc.Items, it)
	}
	doc.Subtotal = models.SumLineItems(doc.Items)
	doc.Total = doc.Subtotal
	m.docs = append(m.docs, doc)
	return doc
}

func (m *memStore) copyDocument(doc *models.Document) *models.Document {
	cp := *doc
	cp.Items = append([]models.LineItem(nil), doc.Items...)
	for _, c := range m.clients {
		if c.ID == doc.ClientId {
			client := *c
			cp.Client = &client
		}
	}
	return &cp
}

func (m *memStore) ListClients(_ context.Context, ownerId string) ([]*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []*models.Client
	for _, c := range m.clients {
		if c.OwnerId == ownerId {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) FindClientsByName(_ context.Context, ownerId string, name string) ([]*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []*models.Client
	for _, c := range m.clients {
		if c.OwnerId == ownerId && strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) GetClient(_ context.Context, ownerId string, id int) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, c := range m.clients {
		if c.OwnerId == ownerId && c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (m *memStore) CreateClient(_ context.Context, client *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client.ID = m.id()
	client.CreatedAt = m.tick()
	cp := *client
	m.clients = append(m.clients, &cp)
	return nil
}

func (m *memStore) UpdateClientContact(_ context.Context, ownerId string, id int, contact models.ClientContact) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.OwnerId != ownerId || c.ID != id {
			continue
		}
		if contact.Email != nil {
			c.Email = *contact.Email
		}
		if contact.Phone != nil {
			c.Phone = *contact.Phone
		}
		if contact.Address != nil {
			c.Address = *contact.Address
		}
		cp := *c
		return &cp, nil
	}
	return nil, utils.ErrorRecordNotFound
}

func (m *memStore) GetDocument(_ context.Context, ownerId string, id int) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, d := range m.docs {
		if d.OwnerId == ownerId && d.ID == id {
			return m.copyDocument(d), nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (m *memStore) ListClientDocuments(_ context.Context, ownerId string, clientId int, docType *models.DocumentType, limit int) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []*models.Document
	for _, d := range m.docs {
		if d.OwnerId != ownerId || d.ClientId != clientId {
			continue
		}
		if docType != nil && d.DocumentType != *docType {
			continue
		}
		out = append(out, m.copyDocument(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) RecentDocumentNumbers(_ context.Context, ownerId string, docType models.DocumentType, prefix string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var numbers []string
	for i := len(m.docs) - 1; i >= 0 && (limit <= 0 || len(numbers) < limit); i-- {
		d := m.docs[i]
		if d.OwnerId == ownerId && d.DocumentType == docType && strings.HasPrefix(d.Number, prefix) {
			numbers = append(numbers, d.Number)
		}
	}
	return numbers, nil
}

func (m *memStore) CreateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createDocCalls++
	if m.failCreateDoc != nil {
		return m.failCreateDoc
	}
	if m.duplicateNumbers > 0 {
		m.duplicateNumbers--
		return models.ErrDuplicateDocumentNumber
	}
	for _, d := range m.docs {
		if d.OwnerId == doc.OwnerId && d.DocumentType == doc.DocumentType && d.Number == doc.Number {
			return models.ErrDuplicateDocumentNumber
		}
	}
	doc.ID = m.id()
	doc.CreatedAt = m.tick()
	for i := range doc.Items {
		doc.Items[i].ID = m.id()
		doc.Items[i].DocumentId = doc.ID
	}
	stored := *doc
	stored.Client = nil
	stored.Items = append([]models.LineItem(nil), doc.Items...)
	m.docs = append(m.docs, &stored)
	return nil
}

func (m *memStore) CreateTransformJob(_ context.Context, job *models.TransformJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateJob != nil {
		return m.failCreateJob
	}
	job.ID = m.id()
	job.CreatedAt = m.tick()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetTransformJob(_ context.Context, ownerId string, id int) (*models.TransformJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.OwnerId != ownerId {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) AdvanceTransformJob(_ context.Context, ownerId string, id int, from models.TransformJobStatus, update models.TransformJobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if update.Status == models.TransformJobStatusCompleted && m.failComplete != nil {
		return m.failComplete
	}
	job, ok := m.jobs[id]
	if !ok || job.OwnerId != ownerId || job.Status != from || !job.Apply(update) {
		return utils.ErrJobStatusTransition
	}
	return nil
}

func (m *memStore) CreateReviewSession(_ context.Context, session *models.ReviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memStore) GetReviewSession(_ context.Context, ownerId string, id string) (*models.ReviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OwnerId != ownerId {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SaveReviewSessionDraft(_ context.Context, ownerId string, id string, draft []byte, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OwnerId != ownerId {
		return utils.ErrSessionClosed
	}
	if version <= s.Version {
		return nil
	}
	m.saves++
	s.Draft = draft
	s.Version = version
	return nil
}

func (m *memStore) DeleteReviewSession(_ context.Context, ownerId string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.OwnerId == ownerId {
		delete(m.sessions, id)
	}
	return nil
}

func (m *memStore) jobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *memStore) storedJob(id int) *models.TransformJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

var errStorage = errors.New("connection reset by peer")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestOrchestrator(store *memStore) *Orchestrator {
	o := NewOrchestrator(store)
	o.Logger = quietLogger()
	o.Search.Logger = o.Logger
	o.Now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	o.Numbers.Now = o.Now
	o.NumberRetries = 3
	o.MergeConcurrency = 4
	o.PhoneRegion = "US"
	return o
}

func ownerCtx() context.Context {
	return utils.SetOwnerIdInContext(context.Background(), testOwner)
}
