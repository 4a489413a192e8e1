package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"bitunix-bot/internal/apperr"
	"bitunix-bot/internal/safeguard"

	"go.etcd.io/bbolt"
)

func reservationKey(windowID, strategyID string) []byte {
	return []byte(windowID + "|" + strategyID)
}

// InsertEntry enforces the (window_id, strategy_id) uniqueness constraint
// that is the Entry Safeguard's one atomic primitive: a Put on an existing
// key is rejected with apperr.DuplicatePosition before it happens, rather
// than silently overwriting the earlier reservation.
func (s *Store) InsertEntry(e safeguard.WindowEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		k := reservationKey(e.WindowID, e.StrategyID)
		if b.Get(k) != nil {
			return apperr.New(apperr.DuplicatePosition, "duplicate window entry", map[string]any{
				"windowId": e.WindowID, "strategyId": e.StrategyID,
			})
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal window entry: %w", err)
		}
		return b.Put(k, data)
	})
}

// HasEntry reports whether a reservation exists for (windowID, strategyID).
func (s *Store) HasEntry(windowID, strategyID string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		found = b.Get(reservationKey(windowID, strategyID)) != nil
		return nil
	})
	return found, err
}

// ConfirmEntry marks a reservation confirmed, links it to a position, and
// stamps ConfirmedAt — the clock LastConfirmedEntryTime reads for the
// per-symbol rate limit.
func (s *Store) ConfirmEntry(windowID, strategyID string, positionID int64, confirmedAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		k := reservationKey(windowID, strategyID)
		data := b.Get(k)
		if data == nil {
			return fmt.Errorf("reservation %s/%s not found", windowID, strategyID)
		}
		var e safeguard.WindowEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unmarshal window entry: %w", err)
		}
		e.Confirmed = true
		e.PositionID = positionID
		e.ConfirmedAt = confirmedAt
		newData, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal window entry: %w", err)
		}
		return b.Put(k, newData)
	})
}

// SeedConfirmedEntry writes a confirmed reservation row directly, used at
// startup to backfill the rate limiter from positions that were already
// open before this process started. It overwrites any existing row for the
// same key rather than rejecting it as a duplicate, since re-seeding on
// every restart is expected, not a race.
func (s *Store) SeedConfirmedEntry(e safeguard.WindowEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal window entry: %w", err)
		}
		return b.Put(reservationKey(e.WindowID, e.StrategyID), data)
	})
}

// RemoveEntry deletes a reservation row; a no-op if it is already gone.
func (s *Store) RemoveEntry(windowID, strategyID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		return b.Delete(reservationKey(windowID, strategyID))
	})
}

// CountOpenPositions counts confirmed positions still open (those whose
// lifecycle row has not reached CLOSED).
func (s *Store) CountOpenPositions() (int, error) {
	open, err := s.ListOpenPositions()
	if err != nil {
		return 0, err
	}
	return len(open), nil
}

// LastConfirmedEntryTime returns the most recent ConfirmedAt recorded across
// every confirmed reservation for symbol, across strategies and windows —
// the rate limit throttles entries into a market, not entries by a single
// strategy.
func (s *Store) LastConfirmedEntryTime(symbol string) (time.Time, bool, error) {
	var latest time.Time
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		return b.ForEach(func(k, v []byte) error {
			var e safeguard.WindowEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			if !e.Confirmed || e.Symbol != symbol {
				return nil
			}
			if !found || e.ConfirmedAt.After(latest) {
				latest = e.ConfirmedAt
				found = true
			}
			return nil
		})
	})
	return latest, found, err
}

// StaleReservations returns every reservation row reserved at or before
// olderThan.
func (s *Store) StaleReservations(olderThan time.Time) ([]safeguard.WindowEntry, error) {
	var out []safeguard.WindowEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(reservationsBucket))
		return b.ForEach(func(k, v []byte) error {
			var e safeguard.WindowEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			if !e.ReservedAt.After(olderThan) {
				out = append(out, e)
			}
			return nil
		})
	})
	return out, err
}
