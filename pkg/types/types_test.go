package types

import (
	"strings"
	"testing"
)

func TestValidateTokenUID(t *testing.T) {
	if err := ValidateTokenUID(NativeTokenUID); err != nil {
		t.Errorf("native token: %v", err)
	}
	if err := ValidateTokenUID(strings.Repeat("ab", 32)); err != nil {
		t.Errorf("hex token: %v", err)
	}
	for _, bad := range []string{"", "01", strings.Repeat("g", 64), strings.Repeat("a", 63)} {
		if err := ValidateTokenUID(bad); err == nil {
			t.Errorf("ValidateTokenUID(%q) should fail", bad)
		}
	}
}

func TestTxOutput_Authorities(t *testing.T) {
	value := TxOutput{Value: 3, TokenData: 1}
	if value.IsAuthority() {
		t.Error("value output reported as authority")
	}
	if value.Authorities() != 0 {
		t.Errorf("value output authorities = %d, want 0", value.Authorities())
	}

	mint := TxOutput{Value: uint64(AuthorityMint), TokenData: 0x81}
	if !mint.IsAuthority() {
		t.Fatal("authority output not detected")
	}
	if mint.Authorities() != AuthorityMint {
		t.Errorf("authorities = %d, want %d", mint.Authorities(), AuthorityMint)
	}
}

func TestHistoryTx_HasToken(t *testing.T) {
	tx := &HistoryTx{
		Inputs:  []TxInput{{Token: "00"}},
		Outputs: []TxOutput{{Token: strings.Repeat("ab", 32)}},
	}
	if !tx.HasToken("00") {
		t.Error("expected input token match")
	}
	if !tx.HasToken(strings.Repeat("ab", 32)) {
		t.Error("expected output token match")
	}
	if tx.HasToken(strings.Repeat("cd", 32)) {
		t.Error("unexpected token match")
	}
}

func TestScanPolicy_Validate(t *testing.T) {
	if err := GapLimitPolicy(20).Validate(); err != nil {
		t.Errorf("gap limit: %v", err)
	}
	if err := IndexLimitPolicy(0, 10).Validate(); err != nil {
		t.Errorf("index limit: %v", err)
	}
	if err := IndexLimitPolicy(11, 10).Validate(); err == nil {
		t.Error("inverted index limit should fail")
	}
	if err := (ScanPolicy{Kind: "bogus"}).Validate(); err == nil {
		t.Error("unknown policy should fail")
	}
}

func TestDefaultWalletData(t *testing.T) {
	wd := DefaultWalletData()
	if wd.CurrentAddressIndex != -1 || wd.LastUsedAddressIndex != -1 || wd.LastLoadedAddressIndex != -1 {
		t.Errorf("unset pointers should be -1, got current=%d used=%d loaded=%d",
			wd.CurrentAddressIndex, wd.LastUsedAddressIndex, wd.LastLoadedAddressIndex)
	}
	if wd.GapLimit != DefaultGapLimit || wd.ScanPolicy.Kind != ScanPolicyGapLimit {
		t.Errorf("default policy = %+v, gap=%d", wd.ScanPolicy, wd.GapLimit)
	}
}

func TestUtxo_EqualClone(t *testing.T) {
	lock := uint32(100)
	u := &Utxo{TxID: Hash{0x01}, Index: 2, Token: "00", Address: "W", Value: 5, Timelock: &lock}
	c := u.Clone()
	if !u.Equal(c) {
		t.Fatal("clone should be equal")
	}
	if c.Timelock == u.Timelock {
		t.Error("clone shares timelock pointer")
	}

	*c.Timelock = 101
	if u.Equal(c) {
		t.Error("differing timelocks compare equal")
	}

	c = u.Clone()
	c.Height = new(uint32)
	if u.Equal(c) {
		t.Error("nil and set height compare equal")
	}
	var nilUtxo *Utxo
	if !nilUtxo.Equal(nil) || u.Equal(nil) {
		t.Error("nil handling broken")
	}
}
