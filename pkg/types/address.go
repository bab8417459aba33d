package types

// AddressInfo is one derived wallet address.
type AddressInfo struct {
	Base58     string `json:"base58"`
	Bip32Index uint32 `json:"bip32AddressIndex"`
}

// AddressMetadata is the aggregated per-address state, keyed by token uid.
type AddressMetadata struct {
	NumTransactions uint64                  `json:"numTransactions"`
	Balance         map[string]TokenBalance `json:"balance"`
}
