package sources

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// BlockHeight is the payload published by the chain head source.
type BlockHeight struct {
	Number    uint64
	Hash      string
	BlockTime time.Time
	FetchedAt time.Time
}

type headerReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ChainHead polls the latest block header of an EVM JSON-RPC node.
type ChainHead struct {
	name   string
	client headerReader
	closer func()
}

// DialChainHead connects to rpcURL. name distinguishes several chains.
func DialChainHead(ctx context.Context, name, rpcURL string) (*ChainHead, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", name, err)
	}
	return &ChainHead{name: name, client: c, closer: c.Close}, nil
}

func (h *ChainHead) Name() string { return h.name }

func (h *ChainHead) Fetch(ctx context.Context) (any, error) {
	hdr, err := h.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	return BlockHeight{
		Number:    hdr.Number.Uint64(),
		Hash:      hdr.Hash().Hex(),
		BlockTime: time.Unix(int64(hdr.Time), 0),
		FetchedAt: time.Now(),
	}, nil
}

func (h *ChainHead) Close() {
	if h.closer != nil {
		h.closer()
	}
}
