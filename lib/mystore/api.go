package mystore

import (
	"context"
	"os"
)

type ctxTransactionKey struct{}

type Filter struct {
	Field   string
	Compare string
	Value   any
}

type Store[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Put(c context.Context, uid string, value T) error
	Get(c context.Context, uid string) (T, bool, error)
	List(c context.Context) ([]T, error)
	Query(c context.Context, filters []Filter, orderByField string) ([]T, error)
}

// New selects the store implementation based on the environment:
// Postgres when POSTGRES_URL is set, Datastore when running on Google Cloud,
// in-memory otherwise.
func New[T any](c context.Context) (Store[T], func(), error) {
	if os.Getenv("POSTGRES_URL") != "" {
		return newPostgresStore[T](c)
	}

	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" {
		return newGcloudStore[T](c)
	}

	return NewInMemoryStore[T](c)
}
