package models

import "time"

type ViolationType string

const (
	ViolationShortcutBlocked    ViolationType = "shortcut_blocked"
	ViolationKeyBlocked         ViolationType = "key_blocked"
	ViolationFocusLost          ViolationType = "focus_lost"
	ViolationNavigationBlocked  ViolationType = "navigation_blocked"
	ViolationAppOpened          ViolationType = "app_opened"
	ViolationBlacklistedProcess ViolationType = "blacklisted_process"
	ViolationVirtualMachine     ViolationType = "virtual_machine"
)

// KnownViolationType reports whether t is one of the classified types.
func KnownViolationType(t ViolationType) bool {
	switch t {
	case ViolationShortcutBlocked, ViolationKeyBlocked, ViolationFocusLost,
		ViolationNavigationBlocked, ViolationAppOpened,
		ViolationBlacklistedProcess, ViolationVirtualMachine:
		return true
	}
	return false
}

// Violation is one classified integrity breach appended to an attempt.
// Seq is the receipt position within the attempt; CreatedAt is assigned by
// the server at receipt time, so timestamps are non-decreasing in Seq order.
type Violation struct {
	ID           uint          `gorm:"primaryKey"`
	AttemptIDRef string        `gorm:"type:uuid;uniqueIndex:uniq_attempt_seq,priority:1"`
	Seq          int           `gorm:"uniqueIndex:uniq_attempt_seq,priority:2"`
	Type         ViolationType `gorm:"size:32;index"`
	Description  string        `gorm:"type:text"`
	Details      string        `gorm:"type:text"`
	CreatedAt    time.Time
}
