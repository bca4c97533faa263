// Package profile resolves user display fields for denormalised payloads.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"careportal/internal/model"
)

// UserSource is the durable user lookup the directory reads through to.
type UserSource interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]model.User, error)
}

// Directory looks up user summaries, consulting an optional cache first.
// Cache failures are logged and fall through to the source.
type Directory struct {
	source UserSource
	cache  Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewDirectory creates a Directory. cache may be nil.
func NewDirectory(source UserSource, cache Cache, ttl time.Duration, log zerolog.Logger) *Directory {
	return &Directory{source: source, cache: cache, ttl: ttl, log: log}
}

func cacheKey(id string) string {
	return "profile:user:" + id
}

// User returns the full user record. It always reads the source; the
// authenticator depends on it to reject deleted accounts.
func (d *Directory) User(ctx context.Context, id string) (model.User, error) {
	u, err := d.source.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	d.store(ctx, u.Summary())
	return u, nil
}

// Summary returns the display fields of one user.
func (d *Directory) Summary(ctx context.Context, id string) (model.UserSummary, error) {
	if s, ok := d.cached(ctx, id); ok {
		return s, nil
	}
	u, err := d.source.GetUser(ctx, id)
	if err != nil {
		return model.UserSummary{}, err
	}
	s := u.Summary()
	d.store(ctx, s)
	return s, nil
}

// Summaries resolves the display fields of ids, preserving their order.
// Unknown users are returned with only their id set.
func (d *Directory) Summaries(ctx context.Context, ids []string) ([]model.UserSummary, error) {
	out := make([]model.UserSummary, len(ids))
	var missing []string
	for i, id := range ids {
		if s, ok := d.cached(ctx, id); ok {
			out[i] = s
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		users, err := d.source.GetUsers(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i, id := range ids {
			if out[i].ID != "" {
				continue
			}
			u, ok := users[id]
			if !ok {
				out[i] = model.UserSummary{ID: id}
				continue
			}
			out[i] = u.Summary()
			d.store(ctx, out[i])
		}
	}
	return out, nil
}

func (d *Directory) cached(ctx context.Context, id string) (model.UserSummary, bool) {
	if d.cache == nil {
		return model.UserSummary{}, false
	}
	raw, err := d.cache.Get(ctx, cacheKey(id))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			d.log.Warn().Err(err).Str("user_id", id).Msg("profile cache read failed")
		}
		return model.UserSummary{}, false
	}
	var s model.UserSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.ID != id {
		return model.UserSummary{}, false
	}
	return s, true
}

func (d *Directory) store(ctx context.Context, s model.UserSummary) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, cacheKey(s.ID), string(raw), d.ttl); err != nil {
		d.log.Warn().Err(err).Str("user_id", s.ID).Msg("profile cache write failed")
	}
}
