package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/block"
	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
)

// LogSource pulls the logs of the watched contracts and turns them into ordered domain events
//
//go:generate mockgen -source=source.go -destination=../../mocks/log_source.go -package=mocks -mock_names=LogSource=MockLogSource
type LogSource interface {
	// FetchEvents returns the decoded events of [fromBlock, toBlock] in (block, log index) order
	FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]domain.Event, error)
}

type logSource struct {
	client  EthereumClient
	blocks  block.BlockProvider
	network *config.NetworkConfig
	pool    pond.Pool
}

// NewLogSource creates a log source. The pool is used to prefetch transaction
// senders and block timestamps of a range concurrently.
func NewLogSource(client EthereumClient, blocks block.BlockProvider, network *config.NetworkConfig, pool pond.Pool) LogSource {
	return &logSource{
		client:  client,
		blocks:  blocks,
		network: network,
		pool:    pool,
	}
}

type txInfo struct {
	from     common.Address
	selector string
}

// FetchEvents returns the decoded events of a block range
func (s *logSource) FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]domain.Event, error) {
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: s.network.WatchedAddresses(),
		Topics:    [][]common.Hash{topicSignatures()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs %d-%d: %w", fromBlock, toBlock, err)
	}

	live := logs[:0]
	for _, l := range logs {
		if !l.Removed {
			live = append(live, l)
		}
	}
	logs = live
	if len(logs) == 0 {
		return nil, nil
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	txs, timestamps, err := s.prefetch(ctx, logs)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(logs))
	for _, vLog := range logs {
		tx := txs[vLog.TxHash]
		event, err := ParseEventLog(vLog, domain.EventContext{
			Address:        vLog.Address,
			BlockNumber:    vLog.BlockNumber,
			BlockTimestamp: timestamps[vLog.BlockNumber],
			TxHash:         vLog.TxHash,
			TxFrom:         tx.from,
			TxSelector:     tx.selector,
			LogIndex:       vLog.Index,
		})
		if err != nil {
			// A watched contract emitting an unrelated or undecodable log must not stall indexing
			logger.WarnCtx(ctx, "Skipping undecodable log",
				zap.String("contract", vLog.Address.Hex()),
				zap.String("tx", vLog.TxHash.Hex()),
				zap.Uint("logIndex", vLog.Index),
				zap.Error(err))
			continue
		}
		if event == nil {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// prefetch loads the transaction sender, call selector and block timestamp of every log concurrently
func (s *logSource) prefetch(ctx context.Context, logs []types.Log) (map[common.Hash]txInfo, map[uint64]uint64, error) {
	var mu sync.Mutex
	txs := make(map[common.Hash]txInfo)
	timestamps := make(map[uint64]uint64)

	group := s.pool.NewGroupContext(ctx)
	for _, vLog := range logs {
		txHash := vLog.TxHash
		blockNumber := vLog.BlockNumber

		mu.Lock()
		_, seenTx := txs[txHash]
		_, seenBlock := timestamps[blockNumber]
		if !seenTx {
			txs[txHash] = txInfo{}
		}
		if !seenBlock {
			timestamps[blockNumber] = 0
		}
		mu.Unlock()

		if !seenTx {
			group.SubmitErr(func() error {
				from, selector, err := s.client.TransactionSender(ctx, txHash)
				if err != nil {
					return err
				}
				mu.Lock()
				txs[txHash] = txInfo{from: from, selector: selector}
				mu.Unlock()
				return nil
			})
		}
		if !seenBlock {
			group.SubmitErr(func() error {
				ts, err := s.blocks.GetBlockTimestamp(ctx, blockNumber)
				if err != nil {
					return err
				}
				mu.Lock()
				timestamps[blockNumber] = ts
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to prefetch log context: %w", err)
	}

	return txs, timestamps, nil
}
