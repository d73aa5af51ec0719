// Package repo provides a generic CRUD abstraction over graph-backed storage.
package repo

import "context"

// Repository is the CRUD surface shared by entity stores.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts carries pagination and filter parameters for List.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
