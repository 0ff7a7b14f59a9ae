package domain

import "time"

const (
	PermRead  = "read"
	PermAdmin = "admin"

	DefaultTier = "default"
)

// APIKey 托管接口使用的访问密钥
type APIKey struct {
	Key         string     `json:"key"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	Tier        string     `json:"tier,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used"`
}

// HasPermission 判断密钥是否带有某项权限
func (k APIKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// EffectiveTier 未设置档位时按 default 处理
func (k APIKey) EffectiveTier() string {
	if k.Tier == "" {
		return DefaultTier
	}
	return k.Tier
}
