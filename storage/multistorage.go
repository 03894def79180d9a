package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/document-registry/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend over several
// backends. Stores go to every available backend; fetches fall back
// through the list in order.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

func NewMultiStorageBackend(backends []interfaces.StorageBackend, log *slog.Logger) *MultiStorageBackend {
	if log == nil {
		log = slog.Default()
	}
	return &MultiStorageBackend{
		backends: backends,
		log:      log,
	}
}

// Fetch returns the content from the first available backend holding it.
// ErrContentNotFound is returned only when every consulted backend
// reported the content missing; if any of them failed otherwise the
// failures are returned instead.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	var errs []error
	missing := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", shortID(id)))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil {
			m.log.Info("Fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("content_id", shortID(id)),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("content_id", shortID(id)),
			"err", err)
		if errors.Is(err, interfaces.ErrContentNotFound) {
			missing++
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	if len(errs) == 0 {
		if missing > 0 {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, interfaces.ErrBackendUnavailable
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("content_id", shortID(id)),
		slog.Int("failed_backends", len(errs)),
		slog.Int("missing", missing),
		slog.Duration("duration", time.Since(start)))
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", shortID(id), errors.Join(errs...))
}

// Store writes data to every available backend and succeeds if at least
// one write did.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	start := time.Now()
	var (
		result interfaces.ContentID
		stored int
		errs   []error
	)

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		id, err := backend.Store(ctx, data, contentType)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		if stored == 0 {
			result = id
		} else if result != id {
			m.log.Warn("Inconsistent content IDs from backends",
				slog.String("backend_name", backend.Name()),
				slog.String("expected_id", result.String()),
				slog.String("actual_id", id.String()))
		}
		stored++
	}

	if stored == 0 {
		m.log.Error("All backends failed to store data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return result, interfaces.ErrBackendUnavailable
		}
		return result, fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	m.log.Info("Stored content",
		slog.String("content_id", result.String()),
		slog.Int("backends", stored),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
