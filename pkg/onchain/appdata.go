package onchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Hook is a single pre- or post-settlement call an order wants executed,
// as recovered from its app-data document.
type Hook struct {
	Target   common.Address
	CallData []byte
	GasLimit uint64
}

// ParsedAppData is the decoded form of an order's app-data document: its
// hook lists and an optional signer override (used by some signing
// schemes to delegate signature checks to a different address).
type ParsedAppData struct {
	PreHooks  []Hook
	PostHooks []Hook
	Signer    *common.Address
}

// AppDataStore is the external collaborator named in §6: it resolves an
// app-data hash to its raw document and can parse that document into
// structured hooks.
type AppDataStore interface {
	Fetch(ctx context.Context, hash common.Hash) ([]byte, bool, error)
	Parse(raw []byte) (ParsedAppData, error)
}
