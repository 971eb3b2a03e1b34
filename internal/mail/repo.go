package mail

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
)

// Repository persists the outbound mail queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, msg *models.MailMessage) (bool, error)
	FindByDedupeKey(ctx context.Context, key string) (*models.MailMessage, error)
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.MailMessage, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Enqueue appends msg unless a message with the same dedupe key exists.
func (r *repository) Enqueue(ctx context.Context, msg *models.MailMessage) (bool, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByDedupeKey(ctx context.Context, key string) (*models.MailMessage, error) {
	var msg models.MailMessage
	if err := r.db.WithContext(ctx).Where("dedupe_key = ?", key).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FetchUnpublished returns queued messages still under the attempt budget, oldest first.
func (r *repository) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.MailMessage, error) {
	var out []models.MailMessage
	q := r.db.WithContext(ctx).
		Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if err := q.Order("created_at ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.MailMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": at,
			"last_error":   nil,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&models.MailMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    errMsg,
		}).Error
}
