package domain

import "strings"

// ─── Withdrawal Catalog ─────────────────────────────────────────────────────
// Static payout configuration, not lifecycle state. The catalog is loaded
// from config; these types carry no behavior beyond lookup.

// PayoutChannel identifies how a withdrawal is paid out.
type PayoutChannel string

const (
	ChannelUPI      PayoutChannel = "UPI"
	ChannelGiftCard PayoutChannel = "GIFT_CARD"
)

// WithdrawalOption is a single catalog entry: a coin cost redeemable for a
// fixed payout over a fixed channel.
type WithdrawalOption struct {
	ID      string        `json:"id"`
	Channel PayoutChannel `json:"channel"`
	Coins   int64         `json:"coins"`  // cost debited from the balance
	Amount  int64         `json:"amount"` // payout value in the channel's currency
	Label   string        `json:"label"`
}

// Catalog is the set of withdrawal options on offer.
type Catalog []WithdrawalOption

// Find returns the option with the given id.
func (c Catalog) Find(id string) (WithdrawalOption, bool) {
	for _, opt := range c {
		if opt.ID == id {
			return opt, true
		}
	}
	return WithdrawalOption{}, false
}

// ReconstructCost recovers the coin cost of a withdrawal from its payout
// amount and title, by matching against the catalog. Withdrawals created
// before the coin cost was recorded on the transaction itself need this;
// it is ambiguous when two channels share a payout amount, so the title's
// channel hint breaks the tie.
func (c Catalog) ReconstructCost(amount int64, title string) int64 {
	wantUPI := strings.Contains(title, "UPI")
	var fallback int64
	for _, opt := range c {
		if opt.Amount != amount {
			continue
		}
		if fallback == 0 {
			fallback = opt.Coins
		}
		if (opt.Channel == ChannelUPI) == wantUPI {
			return opt.Coins
		}
	}
	return fallback
}
