package domain

import (
	"time"

	"github.com/google/uuid"
)

// FollowEdge is one directed edge follower -> target.
type FollowEdge struct {
	FollowerId uuid.UUID
	TargetId   uuid.UUID
	CreatedAt  time.Time
}
