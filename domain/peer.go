package domain

import "github.com/google/uuid"

// Credentials is a basic-auth pair.
type Credentials struct {
	Username string
	Password string
}

// Peer is a registered federation partner. Outbound is what this node
// presents when calling the peer; the inbound pair is what the peer must
// present when calling us. The two directions are configured independently.
type Peer struct {
	Id                  uuid.UUID
	Name                string
	BaseURL             string
	Enabled             bool
	Outbound            Credentials
	InboundUsername     string
	InboundPasswordHash string
}
