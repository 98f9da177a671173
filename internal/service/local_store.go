package service

import "context"

// LocalStore is the slice of the device key/value store the sync services
// need. Satisfied by localstore.Store.
type LocalStore interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}) error
	Remove(ctx context.Context, key string) error
}
