package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/LJTian/MediaMon/internal/domain"
)

const articleCollection = "articles"

// ArticleStore 在文档存储之上读写 Article
type ArticleStore struct {
	docs DocumentStore
}

func NewArticleStore(docs DocumentStore) *ArticleStore {
	return &ArticleStore{docs: docs}
}

func (s *ArticleStore) Save(ctx context.Context, a domain.Article) error {
	doc, err := ToDocument(a)
	if err != nil {
		return err
	}
	return s.docs.Set(ctx, articleCollection, a.ID, doc)
}

// Get 未找到时返回 ErrNotFound
func (s *ArticleStore) Get(ctx context.Context, id string) (domain.Article, error) {
	doc, err := s.docs.Get(ctx, articleCollection, id)
	if err != nil {
		return domain.Article{}, err
	}
	var a domain.Article
	if err := FromDocument(doc, &a); err != nil {
		return domain.Article{}, err
	}
	return a, nil
}

// ListByQuery 返回 search_query 等于 query（空则为 default）的文章，顺序不保证
func (s *ArticleStore) ListByQuery(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	entries, err := s.docs.Query(ctx, articleCollection, "search_query", domain.QueryTag(query), limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Article, 0, len(entries))
	for _, e := range entries {
		var a domain.Article
		if err := FromDocument(e.Doc, &a); err != nil {
			return nil, fmt.Errorf("article %s: %w", e.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// InvalidateQuery 删除该搜索词下已保存的全部文章，返回删除条数
func (s *ArticleStore) InvalidateQuery(ctx context.Context, query string) (int, error) {
	entries, err := s.docs.Query(ctx, articleCollection, "search_query", domain.QueryTag(query), 0)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := s.docs.BatchDelete(ctx, articleCollection, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// IsNotFound 便于上层判断
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
