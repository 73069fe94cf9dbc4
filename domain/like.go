package domain

import (
	"time"

	"github.com/google/uuid"
)

type ObjectType string

const (
	ObjectPost    ObjectType = "post"
	ObjectComment ObjectType = "comment"
)

// Like is unique per (object, author, object type).
type Like struct {
	Id         uuid.UUID
	AuthorId   uuid.UUID
	ObjectType ObjectType
	ObjectId   string
	Published  time.Time
}
