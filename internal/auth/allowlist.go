// Package auth is the identity collaborator: a flat allow-list check.
// There is no per-offer ownership model; any allowed actor may change
// any published offer's status.
package auth

// Authorizer is consulted before every mutating action. Transports
// silently drop requests from disallowed actors.
type Authorizer interface {
	IsAllowed(actorID int64) bool
}

type AllowList struct {
	ids map[int64]struct{}
}

// NewAllowList builds an authorizer from a fixed set of actor IDs. An
// empty set allows everyone, which is how small broker groups run it.
func NewAllowList(ids []int64) *AllowList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &AllowList{ids: set}
}

func (a *AllowList) IsAllowed(actorID int64) bool {
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[actorID]
	return ok
}
