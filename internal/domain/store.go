package domain

import "context"

// KVStore is the minimal persistence contract the cache store and quota
// tracker are built on. Implementations must be safe for concurrent use.
// Values are opaque bytes; every operation is scoped to explicit keys, no
// transaction ever spans more than one call.
type KVStore interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, items map[string][]byte) error
	RemoveMany(ctx context.Context, keys []string) error

	// ListKeys returns all stored keys with the given prefix, in no
	// particular order. Needed by prune/clear, which scan the cache keyspace.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// CredentialProvider supplies the upstream API credential. An empty string
// means no credential is configured.
type CredentialProvider interface {
	GetCredential(ctx context.Context) string
}

// StaticCredential is a CredentialProvider backed by a fixed value, used when
// the credential comes from configuration.
type StaticCredential string

func (s StaticCredential) GetCredential(_ context.Context) string {
	return string(s)
}
