package components

import (
	"fmt"
	"strings"
)

// String returns the display name for a Role.
func (r Role) String() string {
	names := RoleNames()
	if int(r) < len(names) {
		return names[r]
	}
	return "UNKNOWN"
}

// RoleNames returns the display names for all roles.
// The order matches the Role constants.
func RoleNames() []string {
	return []string{"CITIZEN", "MAFIA", "POLICE", "DOCTOR", "SPECTATOR"}
}

// ParseRole converts a role name (case-insensitive) to a Role.
func ParseRole(s string) (Role, error) {
	for i, name := range RoleNames() {
		if strings.EqualFold(s, name) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// String returns the display name for a SubRole.
func (s SubRole) String() string {
	names := SubRoleNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// SubRoleNames returns the display names for all sub-roles.
func SubRoleNames() []string {
	return []string{"NONE", "FARMER", "MINER", "FISHER"}
}

// String returns the display name for a Phase.
func (p Phase) String() string {
	names := PhaseNames()
	if int(p) < len(names) {
		return names[p]
	}
	return "UNKNOWN"
}

// PhaseNames returns the display names for all phases, DAWN first.
func PhaseNames() []string {
	return []string{"DAWN", "MORNING", "NOON", "AFTERNOON", "EVENING", "NIGHT"}
}

// ParsePhase converts a phase name (case-insensitive) to a Phase.
func ParsePhase(s string) (Phase, error) {
	for i, name := range PhaseNames() {
		if strings.EqualFold(s, name) {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// String returns the display name for a Hiding state.
func (h Hiding) String() string {
	switch h {
	case HidingPassive:
		return "passive"
	case HidingActive:
		return "active"
	}
	return "none"
}
