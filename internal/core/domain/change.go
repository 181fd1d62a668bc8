package domain

import "github.com/google/uuid"

type Collection string

const (
	CollectionVotes         Collection = "votes"
	CollectionSubmissions   Collection = "submissions"
	CollectionResetRequests Collection = "resetRequests"
)

var AllCollections = []Collection{CollectionVotes, CollectionSubmissions, CollectionResetRequests}

// Change is published after every successful write. An empty Collections
// list means "reload everything", which is what a feed reconnect produces.
type Change struct {
	Collections []Collection `json:"collections"`
	VoteID      uuid.UUID    `json:"vote_id"`
}

func (c Change) Targets() []Collection {
	if len(c.Collections) == 0 {
		return AllCollections
	}
	return c.Collections
}
