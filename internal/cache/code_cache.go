package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const codeKeyPrefix = "verification:"

// Entry mirrors the latest verification code issued for an email.
type Entry struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeCache stores one Entry per email. It is only consulted for the resend
// cooldown; the database stays authoritative for validation.
type CodeCache struct {
	cache Cache
	ttl   time.Duration
}

// NewCodeCache creates a CodeCache whose entries live for ttl.
func NewCodeCache(c Cache, ttl time.Duration) *CodeCache {
	return &CodeCache{cache: c, ttl: ttl}
}

func codeKey(email string) string {
	return codeKeyPrefix + email
}

// Lookup returns the entry for email, or ErrMiss.
func (c *CodeCache) Lookup(ctx context.Context, email string) (*Entry, error) {
	raw, err := c.cache.Get(ctx, codeKey(email))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry for %s: %w", email, err)
	}
	return &entry, nil
}

// Put writes or overwrites the entry for entry.Email.
func (c *CodeCache) Put(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry for %s: %w", entry.Email, err)
	}
	_, err = c.cache.Set(ctx, codeKey(entry.Email), string(raw), c.ttl, SetOptions{})
	return err
}

// Drop removes the entry for email.
func (c *CodeCache) Drop(ctx context.Context, email string) error {
	return c.cache.Delete(ctx, codeKey(email))
}

// IsMiss reports whether err means the entry is absent.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
