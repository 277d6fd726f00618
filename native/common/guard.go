// Package common holds the cross-module governance hooks shared by the
// native modules.
package common

import "errors"

// ErrModulePaused is returned by Guard when governance has paused the module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the governance pause switches by module name.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard gates a module operation on the governance pause view. A nil view or
// an empty module name leaves the operation ungated.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
