// Package utils holds small helpers shared across services.
package utils

import "github.com/google/uuid"

// UUIDGenerator issues ids for queued operations and optimistic updates.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a v7 uuid. The time-ordered prefix keeps outbox rows
// sortable by creation even when created_at timestamps collide. Falls back
// to v4 if the monotonic clock source fails.
func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
