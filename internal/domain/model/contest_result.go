package model

import "time"

type ContestResult struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ContestID   string    `json:"contestId"`
	Rank        int       `json:"rank"` // 0 = unranked
	Solved      int       `json:"solved"`
	RatingDelta int       `json:"ratingDelta"`
	IsWinner    bool      `json:"isWinner"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ContestResultWithContest is a result row joined with its contest by the
// result store query.
type ContestResultWithContest struct {
	Result  ContestResult
	Contest ContestRef
}

// DeriveDefaultWinner is the winner flag used when the caller does not supply
// one. rank is the submitted value before it is truncated for storage.
func DeriveDefaultWinner(rank float64) bool {
	return rank == 1
}
