package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/storage"
)

var (
	ErrDocumentNotFound = errors.New("找不到文件")
	ErrStaleRevision    = errors.New("文件版本不是最新")
)

type DocumentRepository interface {
	Find(ctx context.Context, kind, userID string) (*models.Document, error)
	// Save 樂觀鎖寫入：doc.Revision 必須恰好是已存版本 + 1 (新文件為 1)，否則回傳 ErrStaleRevision
	Save(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, kind, userID string) error
}

type documentRepository struct {
	db *storage.Database
}

func NewDocumentRepository(db *storage.Database) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Find(ctx context.Context, kind, userID string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ?", kind, userID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) Save(ctx context.Context, doc *models.Document) error {
	db := r.db.WithContext(ctx)
	doc.UpdatedAt = time.Now().UTC()

	res := db.Model(&models.Document{}).
		Where("kind = ? AND user_id = ? AND revision = ?", doc.Kind, doc.UserID, doc.Revision-1).
		Updates(map[string]interface{}{
			"data":           doc.Data,
			"schema_version": doc.SchemaVersion,
			"revision":       doc.Revision,
			"updated_at":     doc.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// 沒有符合的版本：文件不存在時只接受第一版
	if doc.Revision != 1 {
		return ErrStaleRevision
	}
	if err := db.Create(doc).Error; err != nil {
		// 同時建立時主鍵衝突，另一個寫入者已經建立了文件
		if _, findErr := r.Find(ctx, doc.Kind, doc.UserID); findErr == nil {
			return ErrStaleRevision
		}
		return err
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, kind, userID string) error {
	return r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ?", kind, userID).
		Delete(&models.Document{}).Error
}
