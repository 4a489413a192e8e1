package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"bitunix-bot/internal/apperr"
	"bitunix-bot/internal/lifecycle"
	"bitunix-bot/internal/position"

	"go.etcd.io/bbolt"
)

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func positionIndexKey(windowID, market, tokenID string) []byte {
	return []byte(strings.Join([]string{windowID, market, tokenID}, "|"))
}

// InsertPosition assigns the next bucket sequence as the position's ID and
// stores it, mirroring the auto-increment "run" semantics of the
// persistence contract on top of bbolt's bucket sequence counter. The
// (window_id, market, token_id) uniqueness constraint is enforced inside
// the same transaction via a secondary index bucket: the check-then-put
// on positionIndexBucket is what makes the constraint atomic across
// concurrent callers, the same compare-and-swap idiom SetLifecycleState
// uses for the locked-state table.
func (s *Store) InsertPosition(p position.Position) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket([]byte(positionIndexBucket))
		key := positionIndexKey(p.WindowID, p.Market, p.TokenID)
		if idx.Get(key) != nil {
			return apperr.New(apperr.DuplicatePosition, "a position already exists for this window/market/token", map[string]any{
				"windowId": p.WindowID, "market": p.Market, "tokenId": p.TokenID,
			})
		}

		b := tx.Bucket([]byte(positionsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next position sequence: %w", err)
		}
		id = int64(seq)
		p.ID = id

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		if err := b.Put(itob(id), data); err != nil {
			return err
		}
		return idx.Put(key, itob(id))
	})
	return id, err
}

// UpdatePosition overwrites the row for p.ID.
func (s *Store) UpdatePosition(p position.Position) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		return b.Put(itob(p.ID), data)
	})
}

// GetPosition reads a single position row.
func (s *Store) GetPosition(id int64) (position.Position, error) {
	var p position.Position
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("position %d not found", id)
		}
		return json.Unmarshal(data, &p)
	})
	return p, err
}

// ListOpenPositions scans every row and returns those not yet CLOSED.
func (s *Store) ListOpenPositions() ([]position.Position, error) {
	var out []position.Position
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		return b.ForEach(func(k, v []byte) error {
			var p position.Position
			if err := json.Unmarshal(v, &p); err != nil {
				return nil // skip malformed rows
			}
			if p.Status == position.Open {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

// ListPositions returns every position (open or closed) matching mode.
func (s *Store) ListPositions(mode position.Mode) ([]position.Position, error) {
	var out []position.Position
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		return b.ForEach(func(k, v []byte) error {
			var p position.Position
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			if p.Mode == mode {
				out = append(out, p)
			}
			return nil
		})
	})
	return out, err
}

// CountOpenPositionsInMarket counts OPEN positions in market.
func (s *Store) CountOpenPositionsInMarket(market string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		return b.ForEach(func(k, v []byte) error {
			var p position.Position
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			if p.Market == market && p.Status == position.Open {
				n++
			}
			return nil
		})
	})
	return n, err
}

// TotalExposure sums size*entryPrice across every OPEN position.
func (s *Store) TotalExposure() (float64, error) {
	var total float64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		return b.ForEach(func(k, v []byte) error {
			var p position.Position
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			if p.Status == position.Open {
				total += p.Size * p.EntryPrice
			}
			return nil
		})
	})
	return total, err
}

// LifecycleState implements lifecycle.Store.
func (s *Store) LifecycleState(positionID int64) (lifecycle.State, error) {
	p, err := s.GetPosition(positionID)
	if err != nil {
		return "", err
	}
	return p.LifecycleState, nil
}

// SetLifecycleState implements lifecycle.Store: it writes the new state
// only if the stored row still matches from, returning 1 if it did, 0
// otherwise (the row existed but had already moved on).
func (s *Store) SetLifecycleState(positionID int64, from, to lifecycle.State) (int, error) {
	rows := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(positionsBucket))
		data := b.Get(itob(positionID))
		if data == nil {
			return fmt.Errorf("position %d not found", positionID)
		}
		var p position.Position
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("unmarshal position: %w", err)
		}
		if p.LifecycleState != from {
			return nil
		}
		p.LifecycleState = to
		newData, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		if err := b.Put(itob(positionID), newData); err != nil {
			return err
		}
		rows = 1
		return nil
	})
	return rows, err
}

// InsertIntent assigns a sequence ID and stores an intent row, defaulting
// its Status to IntentLogged if the caller left it unset.
func (s *Store) InsertIntent(i position.Intent) (int64, error) {
	var id int64
	if i.Status == "" {
		i.Status = position.IntentLogged
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(intentsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next intent sequence: %w", err)
		}
		id = int64(seq)
		i.ID = id

		data, err := json.Marshal(i)
		if err != nil {
			return fmt.Errorf("marshal intent: %w", err)
		}
		return b.Put(itob(id), data)
	})
	return id, err
}

// setIntentStatus rewrites an existing intent row's Status field.
func (s *Store) setIntentStatus(id int64, status position.IntentStatus) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(intentsBucket))
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("intent %d not found", id)
		}
		var i position.Intent
		if err := json.Unmarshal(data, &i); err != nil {
			return fmt.Errorf("unmarshal intent: %w", err)
		}
		i.Status = status
		newData, err := json.Marshal(i)
		if err != nil {
			return fmt.Errorf("marshal intent: %w", err)
		}
		return b.Put(itob(id), newData)
	})
}

// MarkIntentExecuting transitions an intent row to IntentExecuting, once the
// mutation it guards actually begins.
func (s *Store) MarkIntentExecuting(id int64) error {
	return s.setIntentStatus(id, position.IntentExecuting)
}

// CompleteIntent transitions an intent row to IntentCompleted.
func (s *Store) CompleteIntent(id int64) error {
	return s.setIntentStatus(id, position.IntentCompleted)
}

// FailIntent transitions an intent row to IntentFailed, the terminal state
// for a mutation that started but did not land.
func (s *Store) FailIntent(id int64) error {
	return s.setIntentStatus(id, position.IntentFailed)
}

// IncompleteIntents returns every intent row still at IntentLogged or
// IntentExecuting — the set a startup recovery pass must retry or roll
// back. IntentFailed is a settled terminal state, not something to retry.
func (s *Store) IncompleteIntents() ([]position.Intent, error) {
	var out []position.Intent
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(intentsBucket))
		return b.ForEach(func(k, v []byte) error {
			var i position.Intent
			if err := json.Unmarshal(v, &i); err != nil {
				return nil
			}
			if i.Status == position.IntentLogged || i.Status == position.IntentExecuting {
				out = append(out, i)
			}
			return nil
		})
	})
	return out, err
}
