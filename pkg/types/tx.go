package types

// Transaction versions. They double as the output types stored on UTXOs.
const (
	BlockVersion            uint8 = 0
	DefaultTxVersion        uint8 = 1
	CreateTokenTxVersion    uint8 = 2
	MergedMinedBlockVersion uint8 = 3
	NanoContractsVersion    uint8 = 4
	PoaBlockVersion         uint8 = 5
)

// DecodedOutput holds the fields decoded from an output script.
type DecodedOutput struct {
	Type     string  `json:"type,omitempty"`
	Address  string  `json:"address,omitempty"`
	Timelock *uint32 `json:"timelock,omitempty"`
}

// TxInput is a spent output as recorded in a history transaction.
type TxInput struct {
	TxID      Hash          `json:"txId"`
	Index     uint16        `json:"index"`
	Value     uint64        `json:"value"`
	TokenData uint8         `json:"tokenData"`
	Token     string        `json:"token"`
	Script    string        `json:"script,omitempty"`
	Decoded   DecodedOutput `json:"decoded"`
}

// TxOutput is a transaction output as recorded in a history transaction.
type TxOutput struct {
	Value     uint64        `json:"value"`
	TokenData uint8         `json:"tokenData"`
	Token     string        `json:"token"`
	Script    string        `json:"script,omitempty"`
	Decoded   DecodedOutput `json:"decoded"`
	SpentBy   *Hash         `json:"spentBy,omitempty"`
}

// IsAuthority reports whether the output carries authorities instead of value.
func (o TxOutput) IsAuthority() bool {
	return o.TokenData&tokenAuthorityMask != 0
}

// Authorities returns the authority bitmask, or 0 for value outputs.
func (o TxOutput) Authorities() uint8 {
	if !o.IsAuthority() {
		return 0
	}
	return uint8(o.Value) & AuthorityAll
}

// IsAuthority reports whether the input spends an authority output.
func (in TxInput) IsAuthority() bool {
	return in.TokenData&tokenAuthorityMask != 0
}

// HistoryTx is a wallet transaction record. It is immutable once confirmed.
type HistoryTx struct {
	TxID        Hash       `json:"txId"`
	Version     uint8      `json:"version"`
	Timestamp   uint32     `json:"timestamp"`
	Weight      float64    `json:"weight,omitempty"`
	Height      *uint32    `json:"height,omitempty"`
	IsVoided    bool       `json:"isVoided"`
	Parents     []Hash     `json:"parents,omitempty"`
	Inputs      []TxInput  `json:"inputs"`
	Outputs     []TxOutput `json:"outputs"`
	Tokens      []string   `json:"tokens,omitempty"`
	TokenName   string     `json:"tokenName,omitempty"`
	TokenSymbol string     `json:"tokenSymbol,omitempty"`
}

// HasToken reports whether any input or output moves the given token.
func (tx *HistoryTx) HasToken(uid string) bool {
	for _, in := range tx.Inputs {
		if in.Token == uid {
			return true
		}
	}
	for _, out := range tx.Outputs {
		if out.Token == uid {
			return true
		}
	}
	return false
}
