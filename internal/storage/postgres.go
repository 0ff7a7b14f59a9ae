package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentRow 所有集合共用一张表，(collection, id) 为主键，内容存 jsonb
type documentRow struct {
	Collection string            `gorm:"primaryKey;size:64"`
	ID         string            `gorm:"primaryKey;size:128"`
	Data       datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

type PostgresStore struct {
	DB *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, err
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var row documentRow
	// 未命中是正常分支，不打 record not found 日志
	silent := s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)})
	err := silent.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, id, err)
	}
	return Document(row.Data), nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc Document) error {
	row := documentRow{
		Collection: collection,
		ID:         id,
		Data:       datatypes.JSONMap(sanitize(doc)),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("postgres set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update 用 jsonb || 在一条 UPDATE 内合并字段，行不存在时影响行数为 0
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Document) error {
	patch, err := json.Marshal(sanitize(fields))
	if err != nil {
		return fmt.Errorf("postgres update %s/%s: %w", collection, id, err)
	}
	res := s.DB.WithContext(ctx).Model(&documentRow{}).
		Where("collection = ? AND id = ?", collection, id).
		Updates(map[string]any{
			"data":       gorm.Expr("data || ?::jsonb", string(patch)),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("postgres update %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	err := s.DB.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&documentRow{}).Error
	if err != nil {
		return fmt.Errorf("postgres delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query 使用 jsonb 路径做等值匹配，值按文本比较
func (s *PostgresStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]Entry, error) {
	db := s.DB.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("data").Equals(fmt.Sprint(value), field)).
		Order("id")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var rows []documentRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres query %s.%s: %w", collection, field, err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{ID: r.ID, Doc: Document(r.Data)})
	}
	return out, nil
}

func (s *PostgresStore) BatchDelete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ? AND id IN ?", collection, ids).Delete(&documentRow{}).Error; err != nil {
			return fmt.Errorf("postgres batch delete %s: %w", collection, err)
		}
		return nil
	})
}

// sanitize 把字符串值规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（抓取的页面可能混有非法字节）
func sanitize(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if s, ok := v.(string); ok {
			v = strings.ToValidUTF8(s, "\uFFFD")
		}
		out[k] = v
	}
	return out
}
