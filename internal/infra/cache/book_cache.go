package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BookCachePrefix  = "book:detail:"
	BookListCacheKey = "books:all"
)

const DefaultCacheTTL = 5 * time.Minute

// BookRepositoryの読み取りをRedisで包む。
// Redisが落ちていても結果はDBから返す（キャッシュ失敗はwarnログのみ）。
type CachedBookRepository struct {
	next  repository.BookRepository
	redis redis.Cmdable
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedBookRepository(next repository.BookRepository, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedBookRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedBookRepository{next: next, redis: rdb, ttl: ttl, log: log}
}

func (r *CachedBookRepository) ListAll(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	if r.get(ctx, BookListCacheKey, &books) {
		return books, nil
	}

	books, err := r.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, BookListCacheKey, books)
	return books, nil
}

func (r *CachedBookRepository) FindByID(ctx context.Context, id int64) (model.Book, error) {
	key := BookCachePrefix + strconv.FormatInt(id, 10)

	var book model.Book
	if r.get(ctx, key, &book) {
		return book, nil
	}

	book, err := r.next.FindByID(ctx, id)
	if err != nil {
		// NotFoundはキャッシュしない
		return model.Book{}, err
	}
	r.set(ctx, key, book)
	return book, nil
}

// 一覧と指定IDの詳細を消す
func (r *CachedBookRepository) invalidate(ctx context.Context, ids ...int64) error {
	keys := []string{BookListCacheKey}
	for _, id := range ids {
		keys = append(keys, BookCachePrefix+strconv.FormatInt(id, 10))
	}
	return r.redis.Del(ctx, keys...).Err()
}

func (r *CachedBookRepository) get(ctx context.Context, key string, dst any) bool {
	raw, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("book cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.log.Warn("failed to unmarshal cached book", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *CachedBookRepository) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("failed to marshal book for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.redis.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Warn("book cache write failed", zap.String("key", key), zap.Error(err))
	}
}
