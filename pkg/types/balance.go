package types

// Balance splits an amount into what can be spent now and what is locked.
type Balance struct {
	Unlocked uint64 `json:"unlocked"`
	Locked   uint64 `json:"locked"`
}

// Total returns unlocked + locked.
func (b Balance) Total() uint64 {
	return b.Unlocked + b.Locked
}

// AuthorityBalance counts authority outputs per authority kind.
type AuthorityBalance struct {
	Mint Balance `json:"mint"`
	Melt Balance `json:"melt"`
}

// TokenBalance is the balance of a single token including authorities.
type TokenBalance struct {
	Tokens      Balance          `json:"tokens"`
	Authorities AuthorityBalance `json:"authorities"`
}

// IsZero returns true if every counter is zero.
func (b TokenBalance) IsZero() bool {
	return b == TokenBalance{}
}
