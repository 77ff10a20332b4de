package model

import "time"

// Engagement is a single actor-to-subject interaction, such as a vote.
// At most one exists per (ActorID, SubjectID).
type Engagement struct {
	ID        string
	ActorID   string
	SubjectID string
	CreatedAt time.Time
}

type EngagementResult struct {
	Created bool
}
