package mapping

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
)

// loadListed resolves the target of a marketplace event. Listings of collections
// without a profile are still indexed.
func (h *handlers) loadListed(ctx context.Context, s store.Store, nft common.Address, tokenID *big.Int) (*target, error) {
	t, err := h.load(ctx, s, nft, tokenID)
	if err != nil {
		return nil, err
	}
	if !t.known {
		logger.DebugCtx(ctx, "marketplace event of unknown collection", logger.Collection(t.collection.ID))
	}
	return t, nil
}

func (h *handlers) handleItemListed(ctx context.Context, s store.Store, event domain.ItemListedEvent) error {
	t, err := h.loadListed(ctx, s, event.NFTAddress, event.TokenID)
	if err != nil {
		return err
	}
	if err := h.listings.OnItemListed(ctx, s, event, t.token, t.collection); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

func (h *handlers) handleItemUpdated(ctx context.Context, s store.Store, event domain.ItemUpdatedEvent) error {
	t, err := h.loadListed(ctx, s, event.NFTAddress, event.TokenID)
	if err != nil {
		return err
	}
	if err := h.listings.OnItemUpdated(ctx, s, event, t.token, t.collection); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

func (h *handlers) handleItemCanceled(ctx context.Context, s store.Store, event domain.ItemCanceledEvent) error {
	t, err := h.loadListed(ctx, s, event.NFTAddress, event.TokenID)
	if err != nil {
		return err
	}
	if err := h.listings.OnItemCanceled(ctx, s, event, t.token, t.collection); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

func (h *handlers) handleItemSold(ctx context.Context, s store.Store, event domain.ItemSoldEvent) error {
	t, err := h.loadListed(ctx, s, event.NFTAddress, event.TokenID)
	if err != nil {
		return err
	}
	if err := h.listings.OnItemSold(ctx, s, event, t.token, t.collection); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}
