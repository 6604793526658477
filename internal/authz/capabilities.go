package authz

import "card-custody-service/internal/models"

// Capability names one operation a role may perform. Role checks go through
// the capability table below instead of comparing role strings at call sites,
// so the full authorization surface is enumerable and testable.
type Capability string

const (
	CapCardsCreate              Capability = "cards:create"
	CapCardsRead                Capability = "cards:read"
	CapCardsAssign              Capability = "cards:assign"
	CapCardsBlock               Capability = "cards:block"
	CapCardsUnblock             Capability = "cards:unblock"
	CapCardsReveal              Capability = "cards:reveal"
	CapEngagementsOpen          Capability = "engagements:open"
	CapEngagementsClose         Capability = "engagements:close"
	CapWithdrawalsCreate        Capability = "withdrawals:create"
	CapWithdrawalsReviewFront   Capability = "withdrawals:review:front"
	CapWithdrawalsReviewHR      Capability = "withdrawals:review:hr"
	CapWithdrawalsReviewFinance Capability = "withdrawals:review:finance"
	CapWithdrawalsBlock         Capability = "withdrawals:block"
	CapWithdrawalsUnblock       Capability = "withdrawals:unblock"
	CapGrantsManage             Capability = "grants:manage"
	CapActorsManage             Capability = "actors:manage"
	CapAuditRead                Capability = "audit:read"
)

// roleCapabilities maps each role to its allowed operations
var roleCapabilities = map[models.Role][]Capability{
	models.RoleAdmin: {
		CapCardsCreate, CapCardsRead, CapCardsAssign, CapCardsBlock, CapCardsUnblock,
		CapCardsReveal, CapEngagementsOpen, CapEngagementsClose,
		CapWithdrawalsCreate, CapGrantsManage, CapActorsManage, CapAuditRead,
	},
	models.RoleSupervisor: {
		CapCardsRead, CapCardsAssign,
	},
	models.RoleWorker: {
		CapCardsRead, CapCardsReveal, CapEngagementsOpen, CapEngagementsClose,
		CapWithdrawalsCreate,
	},
	models.RoleManager: {
		CapCardsRead, CapWithdrawalsReviewFront,
	},
	models.RoleHR: {
		CapWithdrawalsReviewHR,
	},
	models.RoleFinance: {
		CapCardsRead, CapCardsBlock, CapCardsUnblock,
		CapWithdrawalsReviewFinance, CapWithdrawalsBlock, CapWithdrawalsUnblock,
		CapAuditRead,
	},
	models.RoleTester: {
		CapCardsRead,
	},
}

// HasCapability reports whether the role is allowed the given operation
func HasCapability(role models.Role, cap Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == cap {
			return true
		}
	}
	return false
}

// CapabilitiesFor returns the full capability list for a role
func CapabilitiesFor(role models.Role) []Capability {
	caps := make([]Capability, len(roleCapabilities[role]))
	copy(caps, roleCapabilities[role])
	return caps
}
