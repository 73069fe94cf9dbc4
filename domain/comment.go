package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment on a post. ContentType holds the wire label.
type Comment struct {
	Id          uuid.UUID
	PostId      uuid.UUID
	AuthorId    uuid.UUID
	ExternId    *string
	Comment     string
	ContentType string
	Published   time.Time
}
