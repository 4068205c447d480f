// Package models defines the domain types for Gebo.
package models

import "time"

// Note represents a persisted unit of text content. The body is
// authoritative in the content store; the metadata index only keeps the
// derived title and a pointer to the artifact.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Connection is a directed, optionally labeled relation between two notes,
// either user-authored or derived by the relation pipeline.
type Connection struct {
	ID            int64     `json:"id"`
	SourceID      int64     `json:"sourceId"`
	TargetID      int64     `json:"targetId"`
	Label         *string   `json:"label"`
	IsAIGenerated bool      `json:"isAiGenerated"`
	Relation      *string   `json:"relation"`
	CreatedAt     time.Time `json:"createdAt"`
}
