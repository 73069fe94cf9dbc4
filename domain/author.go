package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Author is a participant on this node. Local authors carry credentials,
// remote-cached authors carry the (peer, extern id) pair of their owner.
type Author struct {
	Id           uuid.UUID
	PeerId       *uuid.UUID
	ExternId     string
	Username     string
	PasswordHash string
	RemoteName   string
	Github       string
	ProfileImage string
	IsApproved   bool
	CreatedAt    time.Time
}

func (a *Author) IsRemote() bool {
	return a.PeerId != nil
}

// DisplayName is the local username or the cached remote display name.
func (a *Author) DisplayName() string {
	if a.IsRemote() {
		if a.RemoteName != "" {
			return a.RemoteName
		}
		return a.ExternId
	}
	return a.Username
}

// Validate checks that exactly one of local-with-credentials or
// remote-with-(peer, extern id) holds.
func (a *Author) Validate() error {
	if a.IsRemote() {
		if a.ExternId == "" {
			return fmt.Errorf("remote author %s has no extern id", a.Id)
		}
		if a.Username != "" || a.PasswordHash != "" {
			return fmt.Errorf("remote author %s carries local credentials", a.Id)
		}
		return nil
	}
	if a.Username == "" || a.PasswordHash == "" {
		return fmt.Errorf("local author %s has no credentials", a.Id)
	}
	if a.ExternId != "" {
		return fmt.Errorf("local author %s carries an extern id", a.Id)
	}
	return nil
}

func (a *Author) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tName: %s \n\tRemote: %t \n\tApproved: %t", a.Id, a.DisplayName(), a.IsRemote(), a.IsApproved)
}
