package storage

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore 进程内文档存储，未配置数据库时使用；读写都复制文档，调用方拿到的是独立副本
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]Document)}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, doc Document) error {
	if id == "" {
		return fmt.Errorf("memory store: empty id in %s", collection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[collection]
	if !ok {
		c = make(map[string]Document)
		m.data[collection] = c
	}
	c[id] = copyDocument(doc)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := copyDocument(doc)
	for k, v := range fields {
		merged[k] = v
	}
	m.data[collection][id] = merged
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	return nil
}

// Query 按 id 排序后返回，保证结果稳定
func (m *MemoryStore) Query(_ context.Context, collection, field string, value any, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.data[collection]
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Entry
	for _, id := range ids {
		doc := c[id]
		if !reflect.DeepEqual(doc[field], value) {
			continue
		}
		out = append(out, Entry{ID: id, Doc: copyDocument(doc)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) BatchDelete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.data[collection]
	for _, id := range ids {
		delete(c, id)
	}
	return nil
}

// copyDocument 只做一层复制，文档里的值来自 JSON 解码，嵌套结构不会被就地修改
func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
