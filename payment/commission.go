package payment

// Provider commission per transaction, tiered by amount in minor units.
// Mirrors the mobile-money operator's published tariff bands.
var commissionTiers = []struct {
	upTo int // inclusive upper bound, 0 = no bound
	fee  int
}{
	{upTo: 10000, fee: 0},
	{upTo: 50000, fee: 500},
	{upTo: 100000, fee: 1000},
	{upTo: 0, fee: 2000},
}

func Commission(amount int) int {
	for _, tier := range commissionTiers {
		if tier.upTo == 0 || amount <= tier.upTo {
			return tier.fee
		}
	}
	return 0
}
