// Package file implements the subscription repository on a single JSON
// file, the default backend for small single-process deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/domain/subscription"
)

// fileDocument is the on-disk shape. Subscriptions live under a "servers"
// key so the file stays self-describing.
type fileDocument struct {
	Servers []subscription.Subscription `json:"servers"`
}

// SubscriptionRepo persists the full subscription set to one JSON file.
// Every save rewrites the whole file through a temp-file rename so a crash
// mid-write never leaves a torn document.
type SubscriptionRepo struct {
	path   string
	logger zerolog.Logger
}

// NewSubscriptionRepo creates a file-backed repository at path.
func NewSubscriptionRepo(path string, logger zerolog.Logger) *SubscriptionRepo {
	return &SubscriptionRepo{
		path:   path,
		logger: logger.With().Str("component", "file.subscriptions").Logger(),
	}
}

// Load reads the subscription set. A missing file is an empty set, not an
// error, so first boot needs no provisioning step.
func (r *SubscriptionRepo) Load(_ context.Context) ([]subscription.Subscription, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Info().Str("path", r.path).Msg("subscription file absent, starting empty")
			return nil, nil
		}
		return nil, fmt.Errorf("read subscription file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode subscription file: %w", err)
	}
	return doc.Servers, nil
}

// Save overwrites the subscription set.
func (r *SubscriptionRepo) Save(_ context.Context, subs []subscription.Subscription) error {
	doc := fileDocument{Servers: subs}
	if doc.Servers == nil {
		doc.Servers = []subscription.Subscription{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscription file: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".subscriptions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace subscription file: %w", err)
	}
	return nil
}
