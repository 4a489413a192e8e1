// Package lifecycle implements the position state machine and the
// priority-ordered exit evaluator. It mirrors the guarded-transition style
// a small circuit-breaker state machine uses (mutex-guarded state, an
// explicit transition check before mutating) but generalizes it to a full
// table of named states instead of four booleans.
package lifecycle

import (
	"time"

	"bitunix-bot/internal/apperr"

	"github.com/rs/zerolog/log"
)

// State is a position's lifecycle stage.
type State string

const (
	Entry          State = "ENTRY"
	Monitoring     State = "MONITORING"
	StopTriggered  State = "STOP_TRIGGERED"
	TPTriggered    State = "TP_TRIGGERED"
	Expiry         State = "EXPIRY"
	ExitPending    State = "EXIT_PENDING"
	Settlement     State = "SETTLEMENT"
	Closed         State = "CLOSED"
)

// transitions enumerates every legal from->to edge. Anything absent here
// fails INVALID_STATUS_TRANSITION.
var transitions = map[State][]State{
	Entry:         {Monitoring},
	Monitoring:    {StopTriggered, TPTriggered, Expiry},
	StopTriggered: {ExitPending},
	TPTriggered:   {ExitPending},
	Expiry:        {Settlement},
	ExitPending:   {Closed},
	Settlement:    {Closed},
	Closed:        {},
}

// locked is the set of states past which no mutation other than a
// transition to CLOSED is legal; the exit evaluator ignores positions in
// any of these.
var locked = map[State]bool{
	ExitPending: true,
	Settlement:  true,
	Closed:      true,
}

// Locked reports whether s is a locked state.
func Locked(s State) bool {
	return locked[s]
}

// CanTransition reports whether from->to is a legal edge. A from of ""
// defaults to MONITORING, the "null reads as MONITORING" rule for
// freshly created rows.
func CanTransition(from, to State) bool {
	if from == "" {
		from = Monitoring
	}
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Store is the minimal persistence surface the state machine needs: read
// the current state for a position and write the new one if-and-only-if
// it still matches what was read, returning how many rows matched.
type Store interface {
	LifecycleState(positionID int64) (State, error)
	SetLifecycleState(positionID int64, from, to State) (rowsAffected int, err error)
}

// Transition validates and applies a single transition, logging a
// structured event on success. The row-affected check guards against a
// concurrent transition winning the race; zero rows affected is a
// DATABASE_ERROR (the row existed — Store already confirmed that via
// LifecycleState — so a zero-row update means something else mutated it
// between the read and the write).
func Transition(store Store, positionID int64, to State) error {
	from, err := store.LifecycleState(positionID)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "read lifecycle_state", err, map[string]any{"positionId": positionID})
	}

	if !CanTransition(from, to) {
		return apperr.New(apperr.InvalidStatusTransition, "illegal lifecycle transition", map[string]any{
			"positionId": positionID, "from": from, "to": to,
		})
	}

	n, err := store.SetLifecycleState(positionID, from, to)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "update lifecycle_state", err, map[string]any{"positionId": positionID})
	}
	if n != 1 {
		return apperr.New(apperr.DatabaseError, "lifecycle_state update matched no row", map[string]any{
			"positionId": positionID, "from": from, "to": to, "rowsAffected": n,
		})
	}

	effectiveFrom := from
	if effectiveFrom == "" {
		effectiveFrom = Monitoring
	}
	log.Info().
		Int64("positionId", positionID).
		Str("from", string(effectiveFrom)).
		Str("to", string(to)).
		Time("timestamp", time.Now()).
		Msg("lifecycle transition")

	return nil
}
