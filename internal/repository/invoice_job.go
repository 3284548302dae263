package repository

import (
	"context"
	"errors"
	"time"

	"mutaengine_back_end/internal/models"

	"gorm.io/gorm"
)

var ErrInvoiceJobNotFound = errors.New("invoice job not found")

type InvoiceJobRepository interface {
	// ClaimDue passe au plus limit jobs pending échus en sending, avec un bail
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.InvoiceJob, error)
	// ReleaseExpired remet en pending les jobs sending dont le bail est dépassé
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
	// MarkMailed ignore le statut : le mail est parti même si le bail a expiré
	MarkMailed(ctx context.Context, id uint, at time.Time) error
	MarkSent(ctx context.Context, id uint, objectKey string) error
	MarkRetry(ctx context.Context, id uint, lastErr string, nextAttempt time.Time) error
	MarkFailed(ctx context.Context, id uint, lastErr string) error
	FindByOrderID(ctx context.Context, orderID string) (*models.InvoiceJob, error)
}

type invoiceJobRepoImpl struct {
	db *gorm.DB
}

func NewInvoiceJobRepository(db *gorm.DB) InvoiceJobRepository {
	return &invoiceJobRepoImpl{db: db}
}

func (r *invoiceJobRepoImpl) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.InvoiceJob, error) {
	now = now.UTC()
	var due []models.InvoiceJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.InvoiceJobPending, now).
		Order("next_attempt_at ASC, id ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	lockedUntil := now.Add(lease)
	claimed := make([]models.InvoiceJob, 0, len(due))
	for _, job := range due {
		result := r.db.WithContext(ctx).Model(&models.InvoiceJob{}).
			Where("id = ? AND status = ?", job.ID, models.InvoiceJobPending).
			Updates(map[string]any{
				"status":       models.InvoiceJobSending,
				"locked_until": lockedUntil,
				"updated_at":   now,
			})
		if result.Error != nil {
			return claimed, result.Error
		}
		// un autre worker l'a pris entre le SELECT et le UPDATE
		if result.RowsAffected == 0 {
			continue
		}
		job.Status = models.InvoiceJobSending
		job.LockedUntil = &lockedUntil
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (r *invoiceJobRepoImpl) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).Model(&models.InvoiceJob{}).
		Where("status = ? AND locked_until < ?", models.InvoiceJobSending, now).
		Updates(map[string]any{
			"status":       models.InvoiceJobPending,
			"locked_until": nil,
			"updated_at":   now,
		})
	return result.RowsAffected, result.Error
}

func (r *invoiceJobRepoImpl) MarkMailed(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.InvoiceJob{}).
		Where("id = ?", id).
		Updates(map[string]any{"mailed_at": at.UTC(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceJobNotFound
	}
	return nil
}

func (r *invoiceJobRepoImpl) MarkSent(ctx context.Context, id uint, objectKey string) error {
	return r.update(ctx, id, map[string]any{
		"status":       models.InvoiceJobSent,
		"object_key":   objectKey,
		"locked_until": nil,
		"last_error":   "",
		"attempts":     gorm.Expr("attempts + 1"),
		"updated_at":   time.Now().UTC(),
	})
}

func (r *invoiceJobRepoImpl) MarkRetry(ctx context.Context, id uint, lastErr string, nextAttempt time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":          models.InvoiceJobPending,
		"next_attempt_at": nextAttempt.UTC(),
		"locked_until":    nil,
		"last_error":      truncate(lastErr, 1000),
		"attempts":        gorm.Expr("attempts + 1"),
		"updated_at":      time.Now().UTC(),
	})
}

func (r *invoiceJobRepoImpl) MarkFailed(ctx context.Context, id uint, lastErr string) error {
	return r.update(ctx, id, map[string]any{
		"status":       models.InvoiceJobFailed,
		"locked_until": nil,
		"last_error":   truncate(lastErr, 1000),
		"attempts":     gorm.Expr("attempts + 1"),
		"updated_at":   time.Now().UTC(),
	})
}

// update n'agit que sur un job encore en sending
func (r *invoiceJobRepoImpl) update(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.InvoiceJob{}).
		Where("id = ? AND status = ?", id, models.InvoiceJobSending).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceJobNotFound
	}
	return nil
}

func (r *invoiceJobRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*models.InvoiceJob, error) {
	var job models.InvoiceJob
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
