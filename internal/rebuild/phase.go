package rebuild

import (
	"encoding/json"
	"fmt"
)

// Phase is a completed milestone of the rebuild workflow. The sequence
// is fixed; a checkpoint carrying an out-of-order or unknown phase is
// rejected as corrupt.
type Phase uint8

const (
	PhaseStart Phase = iota
	PhaseCommunityDisabled
	PhaseChannelsDeleted
	PhaseRolesDeleted
	PhaseRolesCreated
	PhaseChannelsCreated
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseStart:             "start",
	PhaseCommunityDisabled: "community_features_disabled",
	PhaseChannelsDeleted:   "channels_deleted",
	PhaseRolesDeleted:      "roles_deleted",
	PhaseRolesCreated:      "roles_created",
	PhaseChannelsCreated:   "channels_created",
	PhaseDone:              "done",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(p))
}

// ParsePhase resolves a persisted phase name, rejecting unknown values.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return PhaseStart, fmt.Errorf("unknown rebuild phase %q", s)
}

// Next returns the following phase. ok is false at the terminal phase.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseDone {
		return PhaseDone, false
	}
	return p + 1, true
}

// ValidTransition allows only single forward steps through the sequence.
func ValidTransition(from, to Phase) bool {
	next, ok := from.Next()
	return ok && next == to
}

func (p Phase) MarshalJSON() ([]byte, error) {
	name, ok := phaseNames[p]
	if !ok {
		return nil, fmt.Errorf("cannot encode unknown rebuild phase %d", uint8(p))
	}
	return json.Marshal(name)
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
