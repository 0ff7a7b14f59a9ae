package apikey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/storage"
	"github.com/google/uuid"
)

const collection = "api_keys"

// ErrNotFound 密钥不存在或已吊销
var ErrNotFound = errors.New("apikey: key not found")

// Manager 托管接口的 API key 生命周期管理，数据放在文档存储的 api_keys 集合
type Manager struct {
	docs  storage.DocumentStore
	now   func() time.Time
	newID func() string
}

func NewManager(docs storage.DocumentStore) *Manager {
	return &Manager{
		docs:  docs,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Generate 生成新密钥；未指定权限时默认只读，档位留空
func (m *Manager) Generate(ctx context.Context, ownerID, name string, perms ...string) (domain.APIKey, error) {
	if len(perms) == 0 {
		perms = []string{domain.PermRead}
	}
	k := domain.APIKey{
		Key:         m.newID(),
		OwnerID:     ownerID,
		Name:        name,
		Permissions: perms,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.save(ctx, k); err != nil {
		return domain.APIKey{}, err
	}
	return k, nil
}

// Validate 查找密钥并刷新 last_used。只合并 last_used 字段，读写之间被吊销的密钥不会被写回；
// 其他写失败只记日志
func (m *Manager) Validate(ctx context.Context, key string) (domain.APIKey, error) {
	k, err := m.get(ctx, key)
	if err != nil {
		return domain.APIKey{}, err
	}
	used := m.now().UTC()
	err = m.docs.Update(ctx, collection, key, storage.Document{"last_used": used.Format(time.RFC3339Nano)})
	if errors.Is(err, storage.ErrNotFound) {
		return domain.APIKey{}, ErrNotFound
	}
	if err != nil {
		log.Printf("apikey: update last_used failed: %v", err)
	}
	k.LastUsed = &used
	return k, nil
}

// Revoke 吊销密钥，不存在时也返回 nil
func (m *Manager) Revoke(ctx context.Context, key string) error {
	if err := m.docs.Delete(ctx, collection, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("revoke key: %w", err)
	}
	return nil
}

// SetTier 修改密钥的限流档位
func (m *Manager) SetTier(ctx context.Context, key, tier string) (domain.APIKey, error) {
	if key == "" {
		return domain.APIKey{}, ErrNotFound
	}
	err := m.docs.Update(ctx, collection, key, storage.Document{"tier": tier})
	if errors.Is(err, storage.ErrNotFound) {
		return domain.APIKey{}, ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("set tier: %w", err)
	}
	return m.get(ctx, key)
}

// ListByOwner 列出某个用户名下的全部密钥
func (m *Manager) ListByOwner(ctx context.Context, ownerID string) ([]domain.APIKey, error) {
	entries, err := m.docs.Query(ctx, collection, "owner_id", ownerID, 0)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make([]domain.APIKey, 0, len(entries))
	for _, e := range entries {
		var k domain.APIKey
		if err := storage.FromDocument(e.Doc, &k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (m *Manager) get(ctx context.Context, key string) (domain.APIKey, error) {
	if key == "" {
		return domain.APIKey{}, ErrNotFound
	}
	doc, err := m.docs.Get(ctx, collection, key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.APIKey{}, ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("load key: %w", err)
	}
	var k domain.APIKey
	if err := storage.FromDocument(doc, &k); err != nil {
		return domain.APIKey{}, err
	}
	return k, nil
}

func (m *Manager) save(ctx context.Context, k domain.APIKey) error {
	doc, err := storage.ToDocument(k)
	if err != nil {
		return err
	}
	if err := m.docs.Set(ctx, collection, k.Key, doc); err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	return nil
}
