package mapping

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
)

func (h *handlers) handleTransfer(ctx context.Context, s store.Store, event domain.TransferEvent) error {
	if _, ok := h.network.Profile(event.Address); !ok {
		logger.DebugCtx(ctx, "transfer of unknown collection", logger.Collection(domain.NormalizeAddress(event.Address)))
		return nil
	}

	t, err := h.load(ctx, s, event.Address, event.TokenID)
	if err != nil {
		return err
	}
	t.collection.Standard = domain.StandardERC721

	// collections with their own mint event are minted there
	if domain.IsZeroAddress(event.From) && t.profile.MintEvent != "" {
		return nil
	}

	return h.transfer(ctx, s, event.EventContext, t, event.From, event.To, 1)
}

func (h *handlers) handleTransferSingle(ctx context.Context, s store.Store, event domain.TransferSingleEvent) error {
	if _, ok := h.network.Profile(event.Address); !ok {
		logger.DebugCtx(ctx, "transfer of unknown collection", logger.Collection(domain.NormalizeAddress(event.Address)))
		return nil
	}

	t, err := h.load(ctx, s, event.Address, event.TokenID)
	if err != nil {
		return err
	}
	t.collection.Standard = domain.StandardERC1155

	return h.transfer(ctx, s, event.EventContext, t, event.From, event.To, domain.Int64(event.Value))
}

func (h *handlers) handleCollectionMint(ctx context.Context, s store.Store, event domain.CollectionMintEvent) error {
	profile, ok := h.network.Profile(event.Address)
	if !ok || profile.MintEvent != event.Event {
		logger.WarnCtx(ctx, "unexpected collection mint event",
			logger.Collection(domain.NormalizeAddress(event.Address)),
			zap.String("event", event.Event))
		return nil
	}

	t, err := h.load(ctx, s, event.Address, event.TokenID)
	if err != nil {
		return err
	}

	if err := h.mint(ctx, s, event.EventContext, t, event.To, 1, event.TokenURI, true); err != nil {
		return err
	}
	if err := h.retryMissingMetadata(ctx, s, event.EventContext, t); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

// transfer moves quantity units of the target token between two addresses
func (h *handlers) transfer(ctx context.Context, s store.Store, ec domain.EventContext, t *target, from, to common.Address, quantity int64) error {
	var err error
	switch {
	case domain.IsZeroAddress(from):
		err = h.mint(ctx, s, ec, t, to, quantity, "", false)
	case h.network.IsStaking(to):
		err = h.stake(ctx, s, t, from, quantity)
	case h.network.IsStaking(from):
		err = h.unstake(ctx, s, ec, t, to, quantity)
	default:
		err = h.move(ctx, s, ec, t, from, to, quantity)
	}
	if err != nil {
		return err
	}

	if err := h.retryMissingMetadata(ctx, s, ec, t); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

// mint creates units of the target token. tokenURI is the URI carried by the mint
// event when hasURI is true; otherwise it is read from the contract.
func (h *handlers) mint(ctx context.Context, s store.Store, ec domain.EventContext, t *target, to common.Address, quantity int64, tokenURI string, hasURI bool) error {
	t.collection.TokenIDs.Add(t.token.ID)
	h.ledger.Mint(t.token, t.collection, quantity)
	if err := h.receive(ctx, s, ec, t, to, quantity); err != nil {
		return err
	}

	// more units of a known ERC-1155 id
	if !t.created && t.token.Metadata != "" {
		return h.attributes.RecomputeRarity(ctx, s, t.collection, t.token)
	}

	if err := h.resolveMetadata(ctx, s, ec, t, tokenURI, hasURI); err != nil {
		return err
	}

	if t.created {
		for _, trait := range t.profile.SeedTraits {
			if err := h.attributes.SeedTrait(ctx, s, t.token, t.collection, trait); err != nil {
				return err
			}
		}
	}

	return h.attributes.RecomputeRarity(ctx, s, t.collection, t.token)
}

// receive credits units to a holder
func (h *handlers) receive(ctx context.Context, s store.Store, ec domain.EventContext, t *target, to common.Address, quantity int64) error {
	if t.collection.Standard == domain.StandardERC721 {
		t.token.Owner = domain.NormalizeAddress(to)
	}
	if err := h.ledger.Credit(ctx, s, to, t.token, quantity, ec.BlockNumber); err != nil {
		return err
	}
	return h.ledger.Acquire(ctx, s, to, t.token, t.collection, quantity)
}

// move handles an ordinary transfer or a burn
func (h *handlers) move(ctx context.Context, s store.Store, ec domain.EventContext, t *target, from, to common.Address, quantity int64) error {
	if t.created {
		// first sighting of a token minted before the indexed range
		logger.InfoCtx(ctx, "transfer of unindexed token", logger.Token(t.token.ID), logger.Block(ec.BlockNumber))
		t.collection.TokenIDs.Add(t.token.ID)
		if err := h.resolveMetadata(ctx, s, ec, t, "", false); err != nil {
			return err
		}
	}

	// the marketplace sale handler already settled the seller's side
	if !h.network.IsMarketplaceBuy(ec.TxSelector) {
		if err := h.listings.Withdraw(ctx, s, from, t.token, t.collection, quantity); err != nil {
			return err
		}
	}
	if err := h.ledger.Release(ctx, s, from, t.token, t.collection, quantity); err != nil {
		return err
	}

	if domain.IsZeroAddress(to) {
		h.ledger.Burn(t.token, t.collection, quantity)
		if t.collection.Standard == domain.StandardERC721 {
			t.token.Owner = ""
		}
		return nil
	}
	return h.receive(ctx, s, ec, t, to, quantity)
}

// stake handles a transfer into the staking contract. Ownership does not change.
func (h *handlers) stake(ctx context.Context, s store.Store, t *target, from common.Address, quantity int64) error {
	if t.collection.Standard == domain.StandardERC721 {
		marker := domain.NewStakingMarker(domain.KindStaker)(h.listingID(t, from))
		if err := s.Save(ctx, marker); err != nil {
			return err
		}
		quantity = 1
	}
	return h.listings.Stake(ctx, s, from, t.token, t.collection, quantity)
}

// unstake handles a transfer out of the staking contract
func (h *handlers) unstake(ctx context.Context, s store.Store, ec domain.EventContext, t *target, to common.Address, quantity int64) error {
	if t.collection.Standard == domain.StandardERC721 {
		if err := s.Remove(ctx, domain.KindStaker, h.listingID(t, to)); err != nil {
			return err
		}
		quantity = 1
	}
	return h.listings.Unstake(ctx, s, to, t.token, t.collection, quantity, ec.BlockNumber)
}

func (h *handlers) listingID(t *target, user common.Address) string {
	return domain.ListingID(user, t.address(), t.token.Number())
}

// tokenNumber parses a decimal token id
func tokenNumber(id string) (*big.Int, bool) {
	return new(big.Int).SetString(id, 10)
}
