package common

import "strings"

var ErrModulePaused = NewError(ErrAdmissionDenied, "module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// KVStore is the state subset needed to persist pause flags.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// StatePauses reads and writes module pause flags in state.
type StatePauses struct {
	store KVStore
}

func NewStatePauses(store KVStore) *StatePauses {
	return &StatePauses{store: store}
}

func pauseKey(module string) []byte {
	return []byte("pause/" + strings.ToLower(strings.TrimSpace(module)))
}

// IsPaused implements PauseView. Unreadable flags count as paused.
func (p *StatePauses) IsPaused(module string) bool {
	if p == nil || p.store == nil {
		return false
	}
	var paused bool
	ok, err := p.store.KVGet(pauseKey(module), &paused)
	if err != nil {
		return true
	}
	return ok && paused
}

// SetPaused toggles the pause flag of a module.
func (p *StatePauses) SetPaused(module string, paused bool) error {
	if strings.TrimSpace(module) == "" {
		return NewError(ErrConfigInvalid, "module name required")
	}
	return p.store.KVPut(pauseKey(module), paused)
}
