package models

// Tier is an account's subscription class.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPro     Tier = "PRO"
	TierPremium Tier = "PREMIUM"
)

// Tiers lists the known tiers in ascending order.
var Tiers = []Tier{TierFree, TierPro, TierPremium}

func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}
