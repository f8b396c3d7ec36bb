package service

import (
	"github.com/iliyamo/peer-support/internal/model"
)

// authorize is the entry check of every actor-driven operation: the actor
// must exist, be active, and hold one of roles (any role when empty).
func authorize(actor *model.User, roles ...model.Role) error {
	if actor == nil {
		return newErr(Unauthorized, "authentication required")
	}
	if !actor.IsActive() {
		if actor.Role == model.RoleMotivator && actor.Status == model.UserStatusPending {
			return newErr(Forbidden, "account is awaiting admin approval")
		}
		return newErr(Forbidden, "account is not active")
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return newErr(Forbidden, "you do not have permission to perform this action")
}

// genderMatch is the routing predicate: a motivator only serves clients of
// the same gender.  An unknown author (deleted account) never matches.
func genderMatch(motivator, author *model.User) bool {
	return author != nil && motivator.Gender != "" && motivator.Gender == author.Gender
}

// canViewMessage applies the per-message visibility rule.  author may be
// nil when the account was deleted.
func canViewMessage(actor *model.User, m *model.Message, author *model.User) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleClient:
		return m.UserID == actor.ID
	case model.RoleMotivator:
		return genderMatch(actor, author)
	}
	return false
}

// motivatorListable is the listing-only filter kept for motivators: new
// messages and messages that already carry a response.  An archived
// message that never got a response drops out of their queue.
func motivatorListable(m *model.Message) bool {
	return m.Status == model.MessageStatusNew || m.Responded()
}

// canSelfOrAdmin reports whether actor may read the account targetID.
func canSelfOrAdmin(actor *model.User, targetID string) bool {
	return actor.Role == model.RoleAdmin || actor.ID == targetID
}
