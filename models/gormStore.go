package models

import (
	"context"
	"errors"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GormStore is the MySQL-backed Store. Every query filters on owner_id explicitly;
// the tenant guard plugin scopes any query that omits it.
type GormStore struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		db = config.GetDB()
	}
	return &GormStore{DB: db, Logger: config.GetLogger()}
}

var _ Store = (*GormStore)(nil)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

/* clients */

// ListClients serves the owner's client directory from redis when cached.
func (s *GormStore) ListClients(ctx context.Context, ownerId string) ([]*Client, error) {
	cached, err := utils.RetrieveRedisList[Client](ctx, ownerId)
	if err != nil {
		config.LogError(s.Logger, "GormStore", "ListClients", "RetrieveRedisList", ownerId, err)
	} else if cached != nil {
		return cached, nil
	}

	var clients []*Client
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerId).
		Order("name ASC, id ASC").
		Find(&clients).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[Client](ctx, clients, ownerId); err != nil {
		config.LogError(s.Logger, "GormStore", "ListClients", "StoreRedisList", ownerId, err)
	}
	return clients, nil
}

func (s *GormStore) FindClientsByName(ctx context.Context, ownerId string, name string) ([]*Client, error) {
	var clients []*Client
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(name))) + "%"
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND LOWER(name) LIKE ?", ownerId, pattern).
		Order("id ASC").
		Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *GormStore) GetClient(ctx context.Context, ownerId string, id int) (*Client, error) {
	var client Client
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerId, id).
		First(&client).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &client, nil
}

func (s *GormStore) CreateClient(ctx context.Context, client *Client) error {
	if err := s.DB.WithContext(ctx).Create(client).Error; err != nil {
		return err
	}
	s.invalidateClients(ctx, client.OwnerId)
	return nil
}

func (s *GormStore) UpdateClientContact(ctx context.Context, ownerId string, id int, contact ClientContact) (*Client, error) {
	updates := map[string]interface{}{}
	if contact.Email != nil {
		updates["email"] = *contact.Email
	}
	if contact.Phone != nil {
		updates["phone"] = *contact.Phone
	}
	if contact.Address != nil {
		updates["address"] = *contact.Address
	}
	if len(updates) > 0 {
		res := s.DB.WithContext(ctx).Model(&Client{}).
			Where("owner_id = ? AND id = ?", ownerId, id).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// no-op updates also report zero rows; confirm the client exists
			if _, err := s.GetClient(ctx, ownerId, id); err != nil {
				return nil, err
			}
		}
		s.invalidateClients(ctx, ownerId)
	}
	return s.GetClient(ctx, ownerId, id)
}

func (s *GormStore) invalidateClients(ctx context.Context, ownerId string) {
	if err := utils.RemoveRedisList[Client](ctx, ownerId); err != nil {
		config.LogError(s.Logger, "GormStore", "invalidateClients", "RemoveRedisList", ownerId, err)
	}
}

/* documents */

func (s *GormStore) GetDocument(ctx context.Context, ownerId string, id int) (*Document, error) {
	var doc Document
	if err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Client").
		Where("owner_id = ? AND id = ?", ownerId, id).
		First(&doc).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &doc, nil
}

func (s *GormStore) ListClientDocuments(ctx context.Context, ownerId string, clientId int, docType *DocumentType, limit int) ([]*Document, error) {
	var docs []*Document
	dbCtx := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Client").
		Where("owner_id = ? AND client_id = ?", ownerId, clientId)
	if docType != nil {
		dbCtx = dbCtx.Where("document_type = ?", *docType)
	}
	dbCtx = dbCtx.Order("created_at DESC, id DESC")
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit)
	}
	if err := dbCtx.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *GormStore) RecentDocumentNumbers(ctx context.Context, ownerId string, docType DocumentType, prefix string, limit int) ([]string, error) {
	var numbers []string
	dbCtx := s.DB.WithContext(ctx).Model(&Document{}).
		Where("owner_id = ? AND document_type = ? AND number LIKE ?", ownerId, docType, escapeLike(prefix)+"%").
		Order("created_at DESC, id DESC")
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit)
	}
	if err := dbCtx.Pluck("number", &numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

func (s *GormStore) CreateDocument(ctx context.Context, doc *Document) error {
	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	if err := tx.Omit("Client").Create(doc).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return ErrDuplicateDocumentNumber
		}
		return err
	}
	if err := RecordDocumentEvent(ctx, tx, doc); err != nil {
		return err
	}
	return tx.Commit().Error
}

/* transform jobs */

func (s *GormStore) CreateTransformJob(ctx context.Context, job *TransformJob) error {
	return s.DB.WithContext(ctx).Create(job).Error
}

func (s *GormStore) GetTransformJob(ctx context.Context, ownerId string, id int) (*TransformJob, error) {
	var job TransformJob
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerId, id).
		First(&job).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &job, nil
}

func (s *GormStore) AdvanceTransformJob(ctx context.Context, ownerId string, id int, from TransformJobStatus, update TransformJobUpdate) error {
	if !CanTransition(from, update.Status) {
		return utils.ErrJobStatusTransition
	}
	updates := map[string]interface{}{
		"status": update.Status,
	}
	if update.GeneratedDocumentId != nil {
		updates["generated_document_id"] = *update.GeneratedDocumentId
	}
	if update.CompletedAt != nil {
		updates["completed_at"] = *update.CompletedAt
	}
	if update.ErrorMessage != "" {
		updates["error_message"] = update.ErrorMessage
	}
	res := s.DB.WithContext(ctx).Model(&TransformJob{}).
		Where("owner_id = ? AND id = ? AND status = ?", ownerId, id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrJobStatusTransition
	}
	return nil
}

/* review sessions */

func (s *GormStore) CreateReviewSession(ctx context.Context, session *ReviewSession) error {
	return s.DB.WithContext(ctx).Create(session).Error
}

func (s *GormStore) GetReviewSession(ctx context.Context, ownerId string, id string) (*ReviewSession, error) {
	var session ReviewSession
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerId, id).
		First(&session).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &session, nil
}

// SaveReviewSessionDraft ignores stale versions; a deleted session yields ErrSessionClosed.
func (s *GormStore) SaveReviewSessionDraft(ctx context.Context, ownerId string, id string, draft []byte, version int) error {
	res := s.DB.WithContext(ctx).Model(&ReviewSession{}).
		Where("owner_id = ? AND id = ? AND version < ?", ownerId, id, version).
		Updates(map[string]interface{}{"draft": draft, "version": version})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetReviewSession(ctx, ownerId, id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return utils.ErrSessionClosed
			}
			return err
		}
	}
	return nil
}

func (s *GormStore) DeleteReviewSession(ctx context.Context, ownerId string, id string) error {
	return s.DB.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerId, id).
		Delete(&ReviewSession{}).Error
}
