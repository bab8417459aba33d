package types

// Utxo is an unspent output owned by the wallet. Identity is (TxID, Index).
type Utxo struct {
	TxID        Hash    `json:"txId"`
	Index       uint16  `json:"index"`
	Token       string  `json:"token"`
	Address     string  `json:"address"`
	Value       uint64  `json:"value"`
	Authorities uint8   `json:"authorities"`
	Timelock    *uint32 `json:"timelock"`
	Height      *uint32 `json:"height"`
	Type        uint8   `json:"type"`
}

// Outpoint returns the identity of the output.
func (u *Utxo) Outpoint() Outpoint {
	return Outpoint{TxID: u.TxID, Index: u.Index}
}

// LockedUtxo is a known output that is currently time- or height-locked.
type LockedUtxo struct {
	Tx    *HistoryTx `json:"tx"`
	Index uint16     `json:"index"`
}

// Outpoint returns the identity of the locked output.
func (l *LockedUtxo) Outpoint() Outpoint {
	return Outpoint{TxID: l.Tx.TxID, Index: l.Index}
}

// Equal reports whether u and o hold the same fields. Optional fields are
// compared by value.
func (u *Utxo) Equal(o *Utxo) bool {
	if u == nil || o == nil {
		return u == o
	}
	return u.TxID == o.TxID &&
		u.Index == o.Index &&
		u.Token == o.Token &&
		u.Address == o.Address &&
		u.Value == o.Value &&
		u.Authorities == o.Authorities &&
		u.Type == o.Type &&
		equalOpt(u.Timelock, o.Timelock) &&
		equalOpt(u.Height, o.Height)
}

// Clone returns a copy of u that shares no pointers with it.
func (u *Utxo) Clone() *Utxo {
	c := *u
	c.Timelock = cloneOpt(u.Timelock)
	c.Height = cloneOpt(u.Height)
	return &c
}

func equalOpt(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneOpt(p *uint32) *uint32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
