package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

func newBlockNumber(blockNumber uint64) *big.Int {
	return new(big.Int).SetUint64(blockNumber)
}

// EthClientTimestamps implements BlockTimestamps against a live node over
// JSON-RPC, using the same go-ethereum client the ABI/EIP-712 encoding in
// this package already depends on.
type EthClientTimestamps struct {
	client *ethclient.Client
}

// NewEthClientTimestamps dials the given JSON-RPC endpoint.
func NewEthClientTimestamps(ctx context.Context, rpcURL string) (*EthClientTimestamps, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	return &EthClientTimestamps{client: client}, nil
}

func (c *EthClientTimestamps) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint32, error) {
	header, err := c.client.HeaderByNumber(ctx, newBlockNumber(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("fetch header %d: %w", blockNumber, err)
	}
	return uint32(header.Time), nil
}

func (c *EthClientTimestamps) Close() { c.client.Close() }

var _ BlockTimestamps = (*EthClientTimestamps)(nil)
