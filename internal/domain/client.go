// Package domain contains entities without logic, just meta-data
package domain

import "github.com/google/uuid"

// ClientID is the identity of one WebSocket connection. Two tabs of the
// same browser get different ids.
type ClientID string

func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}
