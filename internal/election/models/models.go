package models

import (
	"time"

	id "electa/pkg/domain"
)

// Transition names the lifecycle fan-out currently holding the reference.
type Transition string

const (
	TransitionNone  Transition = ""
	TransitionStart Transition = "start"
	TransitionEnd   Transition = "end"
)

// Reference is the single process-wide pointer to the live ledger election.
// The ledger owns started/ended; Started and Ended here are the last values
// observed by reconciliation.
type Reference struct {
	Address      id.Address `json:"address"`
	Started      bool       `json:"started"`
	Ended        bool       `json:"ended"`
	Version      int64      `json:"version"`
	Transition   Transition `json:"transition,omitempty"`
	TransitionAt *time.Time `json:"transitionAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NullReference is the stored value when nothing has been deployed.
func NullReference() Reference {
	return Reference{Address: id.NullAddress}
}

func (r Reference) HasElection() bool {
	return !r.Address.IsNull()
}

// TransitionHeld reports whether a fan-out holds the reference. Markers older
// than staleAfter are treated as abandoned.
func (r Reference) TransitionHeld(now time.Time, staleAfter time.Duration) bool {
	if r.Transition == TransitionNone || r.TransitionAt == nil {
		return false
	}
	return now.Sub(*r.TransitionAt) < staleAfter
}

// WithTransition returns a copy holding the marker.
func (r Reference) WithTransition(t Transition, now time.Time) Reference {
	r.Transition = t
	r.TransitionAt = &now
	r.UpdatedAt = now
	return r
}

// Released returns a copy with the marker dropped.
func (r Reference) Released(now time.Time) Reference {
	r.Transition = TransitionNone
	r.TransitionAt = nil
	r.UpdatedAt = now
	return r
}

// Drifted reports whether a ledger read shows the referenced election is over:
// the ledger says ended, or it says not started after the reference had
// observed a start. A deployed election that has not started yet is not drift.
func (r Reference) Drifted(started, ended bool) bool {
	return ended || (r.Started && !started)
}

// Cleared points the reference back at the null address.
func (r Reference) Cleared(now time.Time) Reference {
	r.Address = id.NullAddress
	r.Started = false
	r.Ended = false
	r.UpdatedAt = now
	return r
}

// State is the merged election state an account sees.
type State string

const (
	StateNoElection State = "no_election"
	StatePending    State = "pending"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// DeriveState merges ledger flags. ended wins over started; a deployed
// election that has neither flag is pending.
func DeriveState(hasElection, started, ended bool) State {
	switch {
	case !hasElection:
		return StateNoElection
	case ended:
		return StateClosed
	case started:
		return StateOpen
	default:
		return StatePending
	}
}

func (s State) Open() bool { return s == StateOpen }
