package service

import (
	"context"
	"time"

	"github.com/spec-kit/leadcrm/internal/persistence"
)

const revokedKeyPrefix = "revoked:"

// RevocationList remembers logged-out token ids until they would have expired anyway.
type RevocationList struct {
	store persistence.KeyValueStore
	now   func() time.Time
}

// NewRevocationList stores revocations in store.
func NewRevocationList(store persistence.KeyValueStore) *RevocationList {
	return &RevocationList{store: store, now: time.Now}
}

// Revoke marks tokenID as unusable until until.
func (r *RevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" || !until.After(r.now()) {
		return nil
	}
	return r.store.Set(ctx, revokedKeyPrefix+tokenID, until.UTC().Format(time.RFC3339))
}

// IsRevoked reports whether tokenID was revoked. Entries past their expiry are dropped.
func (r *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	value, ok, err := r.store.Get(ctx, revokedKeyPrefix+tokenID)
	if err != nil || !ok {
		return false, err
	}
	until, err := time.Parse(time.RFC3339, value)
	if err != nil || r.now().After(until) {
		_ = r.store.Delete(ctx, revokedKeyPrefix+tokenID)
		return false, nil
	}
	return true, nil
}
