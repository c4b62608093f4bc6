// Package counters applies per-user idempotent counter events and turns the
// resulting aggregate delta into atomic store increments.
package counters

import (
	"sort"
	"strconv"

	"game-score-engine/internal/docstore"
)

// Keys of the aggregate counters kept on GameStats.
const (
	TotalPlayers     = "totalPlayers"
	SessionsPlayed   = "sessionsPlayed"
	UniqueSubmitters = "uniqueSubmitters"
	Favorites        = "favorites"
)

type kind int

const (
	kindIncrement kind = iota + 1
	kindUnique
	kindToggle
)

// Update is one counter event. Amount is applied as given; a zero amount
// still sets Unique and Toggle flags but moves no aggregate.
type Update struct {
	Key    string
	kind   kind
	Amount int
	Value  bool
}

// Increment always adds amount.
func Increment(key string, amount int) Update {
	return Update{Key: key, kind: kindIncrement, Amount: amount}
}

// Unique adds amount the first time key is seen for this user.
func Unique(key string, amount int) Update {
	return Update{Key: key, kind: kindUnique, Amount: amount}
}

// Toggle adds amount when value flips to true and subtracts it when it flips
// to false. Repeating the current value is a no-op.
func Toggle(key string, value bool, amount int) Update {
	return Update{Key: key, kind: kindToggle, Amount: amount, Value: value}
}

// State is the per-user flag set backing Unique and Toggle.
type State map[string]bool

// Delta is the net aggregate change per key.
type Delta map[string]int

// Apply evaluates updates in order against state. The input state is not
// modified.
func Apply(updates []Update, state State) (State, Delta) {
	next := make(State, len(state)+len(updates))
	for k, v := range state {
		next[k] = v
	}
	delta := Delta{}
	for _, u := range updates {
		amount := u.Amount
		switch u.kind {
		case kindIncrement:
			delta[u.Key] += amount
		case kindUnique:
			if next[u.Key] {
				continue
			}
			next[u.Key] = true
			delta[u.Key] += amount
		case kindToggle:
			if next[u.Key] == u.Value {
				continue
			}
			next[u.Key] = u.Value
			if u.Value {
				delta[u.Key] += amount
			} else {
				delta[u.Key] -= amount
			}
		}
	}
	for k, v := range delta {
		if v == 0 {
			delete(delta, k)
		}
	}
	return next, delta
}

// Changed lists the flags whose value differs between before and after.
func Changed(before, after State) map[string]any {
	out := map[string]any{}
	for k, v := range after {
		if before[k] != v {
			out[k] = v
		}
	}
	return out
}

// Transforms renders the delta as increment field values for SetMerge.
func (d Delta) Transforms() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = docstore.Increment(v)
	}
	return out
}

// Keys returns the delta keys in sorted order.
func (d Delta) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Distribution moves a user's bucket in scoreDistribution from previous to
// next. previous is nil for a first submission. Negative buckets are ignored.
func Distribution(previous *int, next int) map[string]any {
	buckets := map[string]any{}
	if previous != nil && *previous == next {
		return nil
	}
	if previous != nil && *previous >= 0 {
		buckets[strconv.Itoa(*previous)] = docstore.Increment(-1)
	}
	if next >= 0 {
		buckets[strconv.Itoa(next)] = docstore.Increment(1)
	}
	if len(buckets) == 0 {
		return nil
	}
	return map[string]any{"scoreDistribution": buckets}
}
