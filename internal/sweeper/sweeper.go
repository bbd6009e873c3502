// Package sweeper prunes devices that have been idle past their profile TTL.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/linguapolis/internal/store"
)

// CleanupCallback is called for each pruned user before their data is removed.
type CleanupCallback func(userID string)

// Start runs a background goroutine that sweeps idle users every interval
// until ctx is cancelled.
func Start(ctx context.Context, repo store.Repository, interval, ttl time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("Sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep removes every user idle for longer than ttl along with their save
// slots. It returns the number of users removed.
func Sweep(ctx context.Context, repo store.Repository, ttl time.Duration, onCleanup CleanupCallback) int {
	idle, err := repo.GetIdleUsers(ctx, ttl)
	if err != nil {
		slog.Error("Sweeper failed to list idle users", "error", err)
		return 0
	}
	if len(idle) == 0 {
		return 0
	}

	slog.Info("Sweeper found idle users", "count", len(idle))

	removed := 0
	for _, user := range idle {
		if ctx.Err() != nil {
			slog.Debug("Sweeper interrupted", "error", ctx.Err())
			break
		}
		if onCleanup != nil {
			onCleanup(user.UserID)
		}
		if err := repo.DeleteUser(ctx, user.UserID); err != nil {
			slog.Warn("Sweeper failed to delete user", "error", err, "user_id", user.UserID)
			continue
		}
		removed++
	}

	slog.Info("Sweeper cleanup completed", "removed", removed)
	return removed
}
