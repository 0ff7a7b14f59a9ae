package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound 文档不存在
var ErrNotFound = errors.New("storage: document not found")

// Document 以 JSON 对象形式保存的一条记录
type Document map[string]any

// DocumentStore 按集合组织的文档存储，字段等值查询足以支撑文章与 API key 两类数据
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	// Update 只合并给定字段，文档不存在时返回 ErrNotFound，不会重新创建
	Update(ctx context.Context, collection, id string, fields Document) error
	// Query 返回 field == value 的文档 id 与内容，limit <= 0 表示不限
	Query(ctx context.Context, collection, field string, value any, limit int) ([]Entry, error)
	// BatchDelete 一次删除多条；不存在的 id 忽略
	BatchDelete(ctx context.Context, collection string, ids []string) error
}

// Entry 查询结果
type Entry struct {
	ID  string
	Doc Document
}

// ToDocument 通过 JSON 把结构体转成 Document，字段名沿用 json tag
func ToDocument(v any) (Document, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(bs, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// FromDocument ToDocument 的逆过程
func FromDocument(doc Document, v any) error {
	bs, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(bs, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
