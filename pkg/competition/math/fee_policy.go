package math

import (
	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/holiman/uint256"
)

// SurplusPolicy takes a percentage of a trade's surplus as protocol fee,
// capped at a percentage of the trade's executed volume so a single very
// profitable fill can't be skimmed disproportionately.
type SurplusPolicy struct {
	// FactorBps is the percentage of surplus retained, in basis points
	// (10_000 = 100%).
	FactorBps uint64
	// MaxVolumeFactorBps caps the fee at this percentage of executed
	// volume, also in basis points.
	MaxVolumeFactorBps uint64
}

func (p SurplusPolicy) ProtocolFee(grossSurplus, executedVolumeNative domain.TokenAmount) domain.TokenAmount {
	bySurplus := bps(grossSurplus.Uint256(), p.FactorBps)
	byVolume := bps(executedVolumeNative.Uint256(), p.MaxVolumeFactorBps)
	if bySurplus.Cmp(byVolume) > 0 {
		return domain.NewTokenAmount(byVolume)
	}
	return domain.NewTokenAmount(bySurplus)
}

// VolumePolicy takes a flat percentage of executed volume as protocol
// fee, independent of surplus.
type VolumePolicy struct {
	FactorBps uint64
}

func (p VolumePolicy) ProtocolFee(_ domain.TokenAmount, executedVolumeNative domain.TokenAmount) domain.TokenAmount {
	return domain.NewTokenAmount(bps(executedVolumeNative.Uint256(), p.FactorBps))
}

// PriceImprovementPolicy takes a percentage of the surplus the order
// earned beyond a reference quote's price, capped at a percentage of
// executed volume like SurplusPolicy. QuoteSurplus is the portion of
// surplus attributable to the quoted price, precomputed by the caller
// (the quote itself is an external collaborator's concern, out of scope
// here).
type PriceImprovementPolicy struct {
	FactorBps          uint64
	MaxVolumeFactorBps uint64
	QuoteSurplus       domain.TokenAmount
}

func (p PriceImprovementPolicy) ProtocolFee(grossSurplus, executedVolumeNative domain.TokenAmount) domain.TokenAmount {
	improvement := grossSurplus.Uint256()
	if improvement.Cmp(p.QuoteSurplus.Uint256()) > 0 {
		improvement = new(uint256.Int).Sub(improvement, p.QuoteSurplus.Uint256())
	} else {
		improvement = uint256.NewInt(0)
	}
	bySurplus := bps(improvement, p.FactorBps)
	byVolume := bps(executedVolumeNative.Uint256(), p.MaxVolumeFactorBps)
	if bySurplus.Cmp(byVolume) > 0 {
		return domain.NewTokenAmount(byVolume)
	}
	return domain.NewTokenAmount(bySurplus)
}

func bps(amount *uint256.Int, factorBps uint64) *uint256.Int {
	if factorBps == 0 || amount.IsZero() {
		return uint256.NewInt(0)
	}
	product := new(uint256.Int).Mul(amount, uint256.NewInt(factorBps))
	return product.Div(product, uint256.NewInt(10_000))
}
