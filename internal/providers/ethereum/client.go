package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/adapter"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
)

// ContractReader is the read-only call surface used by the mapping handlers.
// A false ok means the call reverted or failed; callers treat it as "not available yet".
//
//go:generate mockgen -source=client.go -destination=../../mocks/contract_reader.go -package=mocks -mock_names=ContractReader=MockContractReader,EthereumClient=MockEthereumClient
type ContractReader interface {
	// TokenURI calls the ERC721 tokenURI(uint256) of a contract
	TokenURI(ctx context.Context, contract common.Address, tokenID *big.Int, blockNumber uint64) (string, bool)

	// URI calls the ERC1155 uri(uint256) of a contract
	URI(ctx context.Context, contract common.Address, tokenID *big.Int, blockNumber uint64) (string, bool)

	// Brainz calls the Smol Brains school brainz(uint256) getter
	Brainz(ctx context.Context, contract common.Address, tokenID *big.Int, blockNumber uint64) (*big.Int, bool)
}

// EthereumClient is the JSON-RPC surface of the indexer
type EthereumClient interface {
	ContractReader

	// FilterLogs returns the logs of a block range, splitting the range when the node refuses large results
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// TransactionSender returns the sender and the 4-byte call selector of a transaction
	TransactionSender(ctx context.Context, txHash common.Hash) (common.Address, string, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	client  adapter.EthClient
	archive bool

	chainIDOnce sync.Once
	chainID     *big.Int
	chainIDErr  error
}

// NewClient creates an Ethereum client. When archive is true, contract reads are made
// at the block of the event being handled instead of the latest block.
func NewClient(client adapter.EthClient, archive bool) EthereumClient {
	return &ethereumClient{client: client, archive: archive}
}

// maxLogRangeStep is the initial block step of a log query
const maxLogRangeStep = uint64(1000000)

// FilterLogs returns the logs matching the query, paging through the block range
func (c *ethereumClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if query.BlockHash != nil {
		return c.client.FilterLogs(timeoutCtx, query)
	}
	if query.FromBlock == nil || query.ToBlock == nil {
		return nil, fmt.Errorf("log query needs an explicit block range")
	}
	if query.FromBlock.Cmp(query.ToBlock) > 0 {
		return nil, nil
	}

	return c.getLogsWithRetry(timeoutCtx, query, maxLogRangeStep)
}

// getLogsWithRetry attempts to get logs with retry logic and step size reduction
// It processes the entire range from query.FromBlock to query.ToBlock in chunks
func (c *ethereumClient) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	// Process the entire range in chunks
	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		queryCopy := query
		queryCopy.FromBlock = new(big.Int).Set(currentFrom)
		queryCopy.ToBlock = new(big.Int).Set(currentTo)

		logs, err := c.client.FilterLogs(ctx, queryCopy)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, err
		}

		// Too many results: halve the step and try the same start block again
		currentStepSize = currentStepSize / 2

		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// TransactionSender returns the sender and the call selector of a transaction
func (c *ethereumClient) TransactionSender(ctx context.Context, txHash common.Hash) (common.Address, string, error) {
	tx, _, err := c.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to get transaction %s: %w", txHash.Hex(), err)
	}

	chainID, err := c.getChainID(ctx)
	if err != nil {
		return common.Address{}, "", err
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to recover sender of %s: %w", txHash.Hex(), err)
	}

	return from, callSelector(tx.Data()), nil
}

func (c *ethereumClient) getChainID(ctx context.Context) (*big.Int, error) {
	c.chainIDOnce.Do(func() {
		c.chainID, c.chainIDErr = c.client.ChainID(ctx)
	})
	if c.chainIDErr != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", c.chainIDErr)
	}
	return c.chainID, nil
}

// callSelector returns the lowercase 0x-hex 4-byte selector of call data, or "" for plain transfers
func callSelector(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	return fmt.Sprintf("0x%x", data[:4])
}

// TokenURI fetches the tokenURI from an ERC721 contract
func (c *ethereumClient) TokenURI(ctx context.Context, contract common.Address, tokenID *big.Int, blockNumber uint64) (string, bool) {
	var uri string
	if !c.call(ctx, contract, blockNumber, &uri, "tokenURI", tokenID) {
		return "", false
	}
	return uri, true
}

// URI fetches the uri from an ERC1155 contract
func (c *ethereumClient) URI(ctx context.Context, contract common.Address, tokenID *big.Int, blockNumber uint64) (string, bool) {
	var uri string
	if !c.call(ctx, contract, blockNumber, &uri, "uri", tokenID) {
		return "", false
	}
	return uri, true
}

// Brainz fetches the accumulated brainz of a Smol Brain from the school contract
func (c *ethereumClient) Brainz(ctx context.Context, contract common.Address, tokenID *big.Int, blockNumber uint64) (*big.Int, bool) {
	var brainz *big.Int
	if !c.call(ctx, contract, blockNumber, &brainz, "brainz", tokenID) {
		return nil, false
	}
	return brainz, true
}

// call packs a read-only method call, executes it and unpacks the single return value into out
func (c *ethereumClient) call(ctx context.Context, contract common.Address, blockNumber uint64, out interface{}, method string, args ...interface{}) bool {
	data, err := callsContractABI.Pack(method, args...)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to pack contract call", zap.String("method", method), zap.Error(err))
		return false
	}

	var atBlock *big.Int
	if c.archive {
		atBlock = new(big.Int).SetUint64(blockNumber)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, atBlock)
	if err != nil {
		logger.DebugCtx(ctx, "Contract call reverted",
			zap.String("method", method),
			zap.String("contract", contract.Hex()),
			zap.Error(err))
		return false
	}

	if err := callsContractABI.UnpackIntoInterface(out, method, result); err != nil {
		logger.DebugCtx(ctx, "Failed to unpack contract call result",
			zap.String("method", method),
			zap.String("contract", contract.Hex()),
			zap.Error(err))
		return false
	}

	return true
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
