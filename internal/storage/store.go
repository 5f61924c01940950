package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys shared by the session and cart state holders.
const (
	KeyCart      = "cartItems"
	KeyCartOwner = "cartOwner"
	KeyToken     = "token"
	KeyUser      = "user"
)

// Store is the durable key/value storage that survives process restarts,
// the equivalent of a browser's localStorage.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("storage: key not found")

// GetJSON decodes the value stored under key into dest.
func GetJSON(ctx context.Context, s Store, key string, dest any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("storage: unmarshal %s failed: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshal %s failed: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
