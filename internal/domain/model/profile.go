package model

import "time"

type ProfileStats struct {
	Rating         int `json:"rating"`
	Participations int `json:"participations"`
	Solved         int `json:"solved"`
	Wins           int `json:"wins"`
}

type ProfileHistoryItem struct {
	ID          string    `json:"id"`
	ContestID   string    `json:"contestId"`
	Title       string    `json:"title"`
	Platform    string    `json:"platform"`
	StartTime   time.Time `json:"startTime"`
	Rank        int       `json:"rank"`
	RatingDelta int       `json:"ratingDelta"`
	Solved      int       `json:"solved"`
	IsWinner    bool      `json:"isWinner"`
}

// ProfileSummary is computed on read and never stored.
type ProfileSummary struct {
	Stats   ProfileStats         `json:"stats"`
	History []ProfileHistoryItem `json:"history"`
}
