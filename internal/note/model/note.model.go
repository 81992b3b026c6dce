package model

import (
	"time"
)

// Note is created once per successful upload and never modified afterwards.
// HTMLContent is the sanitized render of Content at creation time.
type Note struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	HTMLContent string    `json:"htmlContent"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NoteSummary is what list operations return, without the note bodies.
type NoteSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n *Note) Summary() NoteSummary {
	return NoteSummary{ID: n.ID, Title: n.Title, CreatedAt: n.CreatedAt}
}
