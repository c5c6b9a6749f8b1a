// Package cleanup implements pruning of old completed sessions from the
// local cache together with their saved reports.
package cleanup

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hirepath/hirepath/internal/report"
	"github.com/hirepath/hirepath/internal/session"
)

// Store is the part of the session cache pruning needs.
// *session.Store satisfies it.
type Store interface {
	List(limit int) ([]session.Summary, error)
	Delete(id string) error
}

// PruneByAge removes completed sessions last updated more than maxAgeDays
// before now. If dryRun is true, nothing is deleted; the function only
// returns the sessions that would be removed.
func PruneByAge(store Store, dir string, maxAgeDays int, now time.Time, dryRun bool) ([]session.Summary, error) {
	completed, err := completedSessions(store)
	if err != nil {
		return nil, err
	}

	cutoff := now.AddDate(0, 0, -maxAgeDays)
	var pruned []session.Summary
	for _, s := range completed {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}
		if !dryRun {
			if err := remove(store, dir, s.ID); err != nil {
				return pruned, err
			}
		}
		pruned = append(pruned, s)
	}
	return pruned, nil
}

// PruneKeepRecent removes all completed sessions except the keep most
// recently updated. If dryRun is true, nothing is deleted.
func PruneKeepRecent(store Store, dir string, keep int, dryRun bool) ([]session.Summary, error) {
	completed, err := completedSessions(store)
	if err != nil {
		return nil, err
	}
	if len(completed) <= keep {
		return nil, nil
	}

	// List orders newest first.
	toRemove := completed[keep:]
	var pruned []session.Summary
	for _, s := range toRemove {
		if !dryRun {
			if err := remove(store, dir, s.ID); err != nil {
				return pruned, err
			}
		}
		pruned = append(pruned, s)
	}
	return pruned, nil
}

// completedSessions lists finished sessions, newest first. Sessions still
// in progress are never pruned.
func completedSessions(store Store) ([]session.Summary, error) {
	all, err := store.List(-1)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	var out []session.Summary
	for _, s := range all {
		if s.Stage == session.StageComplete {
			out = append(out, s)
		}
	}
	return out, nil
}

func remove(store Store, dir, id string) error {
	if err := store.Delete(id); err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	if err := os.RemoveAll(report.SessionDir(dir, id)); err != nil {
		return fmt.Errorf("removing %s report: %w", id, err)
	}
	return nil
}
