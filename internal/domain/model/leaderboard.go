package model

type LeaderboardEntry struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rating int     `json:"rating"`
	Avatar *string `json:"avatar"`
}

func NewLeaderboardEntry(u *User) LeaderboardEntry {
	return LeaderboardEntry{ID: u.ID, Name: u.Name, Rating: u.Rating, Avatar: u.Avatar}
}

// AdminSummary holds row counts for the admin dashboard.
type AdminSummary struct {
	Users    int `json:"users"`
	Contests int `json:"contests"`
	Results  int `json:"results"`
}
