package model

import "time"

type Contest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Platform    string    `json:"platform"`
	StartTime   time.Time `json:"startTime"`
	Duration    *string   `json:"duration,omitempty"`
	URL         *string   `json:"url,omitempty"`
	Description *string   `json:"description,omitempty"`
	Difficulty  *string   `json:"difficulty,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Background  *string   `json:"background,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ContestRef is the slice of contest metadata joined onto a result row.
type ContestRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Platform  string    `json:"platform"`
	StartTime time.Time `json:"startTime"`
}
