package api

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content string `json:"content"`
}

// CreateConnectionRequest is the request body for a manual connection.
type CreateConnectionRequest struct {
	SourceID int64   `json:"sourceId"`
	TargetID int64   `json:"targetId"`
	Label    *string `json:"label,omitempty"`
}

// ReprocessResponse reports how many connections a reprocess run created.
type ReprocessResponse struct {
	CreatedCount int `json:"createdCount"`
}
