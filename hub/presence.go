package hub

// The presence view is always rebuilt from the live session set, never
// stored, so reported membership cannot drift from actual membership.

// snapshotLocked builds the room's presence list in join order. Caller
// holds rm.mu.
func (rm *room) snapshotLocked() []Participant {
	participants := make([]Participant, 0, len(rm.order))
	for _, s := range rm.order {
		participants = append(participants, Participant{
			UserID:       s.UserID,
			Username:     s.Username,
			LanguageMode: s.Mode(),
		})
	}
	return participants
}
