package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/sirupsen/logrus"
)

type pendingSave struct {
	timer   *time.Timer
	ownerId string
	draft   []byte
	version int
}

// ReviewSessions keeps drafts the user is still editing. Edits are autosaved after a quiet
// period; finalising or discarding cancels the pending autosave and then deletes the session
// under the session lock, so a save can never land on a deleted session.
type ReviewSessions struct {
	Store  models.ReviewSessionAccessor
	Locker SessionLocker
	Delay  time.Duration
	Logger *logrus.Logger

	mu       sync.Mutex
	pending  map[string]*pendingSave
	versions map[string]int
}

func NewReviewSessions(store models.ReviewSessionAccessor) *ReviewSessions {
	return &ReviewSessions{
		Store:  store,
		Locker: DefaultSessionLocker(),
		Delay:  config.AutosaveDelay(),
		Logger: config.GetLogger(),
	}
}

func sessionLockKey(id string) string {
	return "review_session:" + id
}

func (s *ReviewSessions) Open(ctx context.Context, intent IntentTag, draft any) (*models.ReviewSession, error) {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}
	session := &models.ReviewSession{
		ID:      uuid.NewString(),
		OwnerId: ownerId,
		Intent:  string(intent),
		Draft:   payload,
	}
	if err := s.Store.CreateReviewSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Update schedules an autosave of draft, replacing any save still waiting.
func (s *ReviewSessions) Update(ctx context.Context, id string, draft any) error {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	saveCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = map[string]*pendingSave{}
		s.versions = map[string]int{}
	}
	version := max(s.versions[id]+1, int(time.Now().UnixMilli()))
	s.versions[id] = version

	if p := s.pending[id]; p != nil {
		p.timer.Stop()
	}
	p := &pendingSave{ownerId: ownerId, draft: payload, version: version}
	p.timer = time.AfterFunc(s.Delay, func() {
		if err := s.save(saveCtx, id, p); err != nil && !errors.Is(err, utils.ErrSessionClosed) {
			config.LogError(s.Logger, "ReviewSessions", "Update", "autosave", id, err)
		}
	})
	s.pending[id] = p
	return nil
}

// Flush writes the pending autosave now, if any.
func (s *ReviewSessions) Flush(ctx context.Context, id string) error {
	if _, err := utils.RequireOwnerId(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	p := s.pending[id]
	if p != nil {
		p.timer.Stop()
	}
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return s.save(ctx, id, p)
}

// save writes p unless a newer update replaced it or the session was closed meanwhile.
func (s *ReviewSessions) save(ctx context.Context, id string, p *pendingSave) error {
	s.mu.Lock()
	if s.pending[id] != p {
		s.mu.Unlock()
		return nil
	}
	delete(s.pending, id)
	s.mu.Unlock()

	unlock, err := s.Locker.Lock(ctx, sessionLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.Store.SaveReviewSessionDraft(ctx, p.ownerId, id, p.draft, p.version)
	if errors.Is(err, utils.ErrSessionClosed) {
		s.Logger.WithFields(logrus.Fields{
			"field":      "ReviewSessions",
			"owner_id":   p.ownerId,
			"session_id": id,
		}).Debug("dropped autosave for closed review session")
	}
	return err
}

// Finalize cancels any pending autosave, deletes the session and returns it carrying the
// latest draft, including edits the autosave had not written yet.
func (s *ReviewSessions) Finalize(ctx context.Context, id string) (*models.ReviewSession, error) {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return nil, err
	}
	latest := s.cancelPending(id)

	unlock, err := s.Locker.Lock(ctx, sessionLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.Store.GetReviewSession(ctx, ownerId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrSessionClosed
		}
		return nil, err
	}
	if latest != nil {
		session.Draft = latest.draft
		session.Version = latest.version
	}
	if err := s.Store.DeleteReviewSession(ctx, ownerId, id); err != nil {
		return nil, err
	}
	return session, nil
}

// Discard drops the session and anything still waiting to be saved.
func (s *ReviewSessions) Discard(ctx context.Context, id string) error {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return err
	}
	s.cancelPending(id)

	unlock, err := s.Locker.Lock(ctx, sessionLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()
	return s.Store.DeleteReviewSession(ctx, ownerId, id)
}

func (s *ReviewSessions) cancelPending(id string) *pendingSave {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending[id]
	if p != nil {
		p.timer.Stop()
		delete(s.pending, id)
	}
	delete(s.versions, id)
	return p
}
