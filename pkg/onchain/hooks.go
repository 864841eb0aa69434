package onchain

import (
	"fmt"
	"math/big"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// hookTuple mirrors the trampoline contract's Interaction struct, used to
// ABI-encode the calldata for its executeHooks entrypoint.
type hookTuple struct {
	Target   common.Address
	CallData []byte
	GasLimit *big.Int
}

var hookTupleArguments = mustHookArguments()

func mustHookArguments() abi.Arguments {
	tupleType, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "callData", Type: "bytes"},
		{Name: "gasLimit", Type: "uint256"},
	})
	if err != nil {
		panic(fmt.Errorf("build hook tuple abi type: %w", err))
	}
	return abi.Arguments{{Type: tupleType}}
}

// BuildHookInteraction wraps a non-empty hook list into a single
// Interaction targeting the hooks trampoline contract, whose calldata is
// the ABI-encoded (target, callData, gasLimit)[] tuple array (§4.5 step
// 7). Callers must not invoke this with an empty hook list; there is
// nothing to trampoline.
func BuildHookInteraction(trampoline common.Address, hooks []Hook) (domain.Interaction, error) {
	tuples := make([]hookTuple, len(hooks))
	for i, h := range hooks {
		tuples[i] = hookTuple{Target: h.Target, CallData: h.CallData, GasLimit: new(big.Int).SetUint64(h.GasLimit)}
	}
	packed, err := hookTupleArguments.Pack(tuples)
	if err != nil {
		return domain.Interaction{}, fmt.Errorf("pack hook interactions: %w", err)
	}

	var totalGas uint64
	for _, h := range hooks {
		totalGas += h.GasLimit
	}

	return domain.Interaction{Target: trampoline, CallData: packed, GasLimit: totalGas}, nil
}

// NextInteractionIndex returns the index a new interaction row for uid
// should use, given how many pre- or post-interactions are already
// persisted for it. Indexes are per-order and per-execution-phase, so a
// reorg replaying the same uid does not collide with rows left behind by
// a prior, now-superseded, application of the same event.
func NextInteractionIndex(existingCount int) int {
	return existingCount
}
