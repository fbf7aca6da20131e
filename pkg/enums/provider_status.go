package enums

// ProviderStatus mirrors the billing provider's subscription state as it
// appears on the wire. Values are upper-case on the provider side.
type ProviderStatus string

const (
	ProviderStatusActive    ProviderStatus = "ACTIVE"
	ProviderStatusCancelled ProviderStatus = "CANCELLED"
	ProviderStatusExpired   ProviderStatus = "EXPIRED"
	ProviderStatusDeclined  ProviderStatus = "DECLINED"
	ProviderStatusFrozen    ProviderStatus = "FROZEN"
)

// String implements fmt.Stringer.
func (p ProviderStatus) String() string {
	return string(p)
}

// Terminal reports whether the provider considers the subscription dead.
// EXPIRED and DECLINED are folded into local cancellation.
func (p ProviderStatus) Terminal() bool {
	return p == ProviderStatusCancelled || p == ProviderStatusExpired || p == ProviderStatusDeclined
}

// Local maps the provider state onto the persisted status. Unknown provider
// values return ("", false) so callers can skip the transition.
func (p ProviderStatus) Local() (SubscriptionStatus, bool) {
	switch p {
	case ProviderStatusActive:
		return SubscriptionStatusActive, true
	case ProviderStatusCancelled, ProviderStatusExpired, ProviderStatusDeclined:
		return SubscriptionStatusCancelled, true
	case ProviderStatusFrozen:
		return SubscriptionStatusFrozen, true
	default:
		return "", false
	}
}
