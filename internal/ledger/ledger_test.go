package ledger

import (
	"testing"

	"github.com/Klingon-tech/klingnet-walletstore/pkg/types"
)

func TestCanBeHeightLocked(t *testing.T) {
	locked := map[uint8]bool{
		types.BlockVersion:            true,
		types.DefaultTxVersion:        false,
		types.CreateTokenTxVersion:    false,
		types.MergedMinedBlockVersion: true,
		types.NanoContractsVersion:    false,
		types.PoaBlockVersion:         true,
	}
	for v, want := range locked {
		if got := CanBeHeightLocked(v); got != want {
			t.Errorf("CanBeHeightLocked(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestIsHeightLocked(t *testing.T) {
	tests := []struct {
		name                      string
		height, network, lockSize uint32
		want                      bool
	}{
		{"unknown height", 0, 100, 10, false},
		{"unknown network height", 50, 0, 10, false},
		{"no lock window", 50, 51, 0, false},
		{"just mined", 100, 100, 10, true},
		{"last locked block", 100, 110, 10, true},
		{"first unlocked block", 100, 111, 10, false},
		{"long unlocked", 100, 1000, 10, false},
		{"no overflow", ^uint32(0), ^uint32(0), ^uint32(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHeightLocked(tt.height, tt.network, tt.lockSize); got != tt.want {
				t.Errorf("IsHeightLocked(%d, %d, %d) = %v, want %v", tt.height, tt.network, tt.lockSize, got, tt.want)
			}
		})
	}
}
