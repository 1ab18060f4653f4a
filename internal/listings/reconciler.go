package listings

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/ledger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
)

// Reconciler maintains listings, the seller balances they draw from, and the floor
// price and listing totals derived from them.
//
// A listing moves Active -> Hidden when all of its units are staked and back when they
// are unstaked. Sales leave an archive row with status Sold; cancels and full fills
// remove the row.
type Reconciler interface {
	OnItemListed(ctx context.Context, s store.Store, event domain.ItemListedEvent, token *domain.Token, collection *domain.Collection) error
	OnItemUpdated(ctx context.Context, s store.Store, event domain.ItemUpdatedEvent, token *domain.Token, collection *domain.Collection) error
	OnItemCanceled(ctx context.Context, s store.Store, event domain.ItemCanceledEvent, token *domain.Token, collection *domain.Collection) error
	OnItemSold(ctx context.Context, s store.Store, event domain.ItemSoldEvent, token *domain.Token, collection *domain.Collection) error

	// RecomputeFloorAndTotals rebuilds the floor price and totalListings of the collection
	// from its listing index. token is the caller's in-flight copy, kept consistent when
	// its per-token floor changes.
	RecomputeFloorAndTotals(ctx context.Context, s store.Store, collection *domain.Collection, token *domain.Token) error

	// Stake hides quantity units of the user's token, taking free balance first, then listed units
	Stake(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error
	// Unstake reveals quantity units, restoring the listing first, then the free balance
	Unstake(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64, blockNumber uint64) error
	// Withdraw removes quantity units that left the user, taking free balance first, then listed units
	Withdraw(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error
}

type reconciler struct {
	ledger  ledger.Ledger
	network *config.NetworkConfig
}

// NewReconciler creates a listing reconciler
func NewReconciler(ledger ledger.Ledger, network *config.NetworkConfig) Reconciler {
	return &reconciler{
		ledger:  ledger,
		network: network,
	}
}

// settle derives the visible quantity and status of a listing from its listed and staked units
func settle(listing *domain.Listing) {
	if listing.StakedQuantity > listing.ListedQuantity {
		listing.StakedQuantity = listing.ListedQuantity
	}
	if listing.StakedQuantity < 0 {
		listing.StakedQuantity = 0
	}

	visible := listing.ListedQuantity - listing.StakedQuantity
	if visible <= 0 {
		listing.Status = domain.ListingStatusHidden
		listing.Quantity = listing.ListedQuantity
		return
	}
	listing.Status = domain.ListingStatusActive
	listing.Quantity = visible
}

// visible returns the units of a listing that are not staked
func visible(listing *domain.Listing) int64 {
	return max(listing.ListedQuantity-listing.StakedQuantity, 0)
}

func (r *reconciler) staked(ctx context.Context, s store.Store, listingID string) (bool, error) {
	return store.ExistsAny(ctx, s, domain.StakingMarkerKinds, listingID)
}

func (r *reconciler) OnItemListed(ctx context.Context, s store.Store, event domain.ItemListedEvent, token *domain.Token, collection *domain.Collection) error {
	listingID := domain.ListingID(event.Seller, event.NFTAddress, event.TokenID)
	quantity := domain.Int64(event.Quantity)

	staked, err := r.staked(ctx, s, listingID)
	if err != nil {
		return err
	}

	listing, _, err := store.GetOrCreate(ctx, s, listingID, domain.NewListing)
	if err != nil {
		return err
	}
	listing.User = domain.NormalizeAddress(event.Seller)
	listing.Token = token.ID
	listing.TokenName = token.Name
	listing.Collection = collection.ID
	listing.CollectionName = collection.Name
	listing.PricePerItem = domain.Uint256(event.PricePerItem)
	listing.Expires = domain.Uint256(event.ExpirationTime)
	listing.Filters = token.Filters.Clone()
	listing.ListedQuantity = quantity
	listing.StakedQuantity = 0

	if staked {
		// the staked units already left the free balance
		listing.StakedQuantity = quantity
	} else {
		taken, err := r.ledger.Debit(ctx, s, event.Seller, token, quantity)
		if err != nil {
			return err
		}
		if taken < quantity {
			logger.WarnCtx(ctx, "listing exceeds free balance",
				logger.Listing(listingID),
				zap.Int64("quantity", quantity),
				zap.Int64("balance", taken))
		}
	}
	settle(listing)

	if err := s.Save(ctx, listing); err != nil {
		return err
	}
	collection.ListingIDs.Add(listing.ID)

	return r.RecomputeFloorAndTotals(ctx, s, collection, token)
}

func (r *reconciler) OnItemUpdated(ctx context.Context, s store.Store, event domain.ItemUpdatedEvent, token *domain.Token, collection *domain.Collection) error {
	listingID := domain.ListingID(event.Seller, event.NFTAddress, event.TokenID)
	listing, found, err := store.Get(ctx, s, listingID, domain.NewListing)
	if err != nil {
		return err
	}
	if !found {
		logger.InfoCtx(ctx, "updated listing not found", logger.Listing(listingID))
		return nil
	}

	quantity := domain.Int64(event.Quantity)
	switch delta := quantity - listing.ListedQuantity; {
	case delta > 0:
		taken, err := r.ledger.Debit(ctx, s, event.Seller, token, delta)
		if err != nil {
			return err
		}
		if taken < delta {
			logger.WarnCtx(ctx, "listing update exceeds free balance",
				logger.Listing(listingID),
				zap.Int64("delta", delta),
				zap.Int64("balance", taken))
		}
	case delta < 0:
		if err := r.ledger.Credit(ctx, s, event.Seller, token, -delta, event.BlockNumber); err != nil {
			return err
		}
	}

	listing.ListedQuantity = quantity
	listing.PricePerItem = domain.Uint256(event.PricePerItem)
	listing.Expires = domain.Uint256(event.ExpirationTime)
	settle(listing)

	if err := s.Save(ctx, listing); err != nil {
		return err
	}
	return r.RecomputeFloorAndTotals(ctx, s, collection, token)
}

func (r *reconciler) OnItemCanceled(ctx context.Context, s store.Store, event domain.ItemCanceledEvent, token *domain.Token, collection *domain.Collection) error {
	listingID := domain.ListingID(event.Seller, event.NFTAddress, event.TokenID)
	listing, found, err := store.Get(ctx, s, listingID, domain.NewListing)
	if err != nil {
		return err
	}
	if !found {
		logger.InfoCtx(ctx, "canceled listing not found", logger.Listing(listingID))
		return nil
	}

	staked, err := r.staked(ctx, s, listingID)
	if err != nil {
		return err
	}
	if !staked {
		// staked units stay staked and come back on unstake
		if err := r.ledger.Credit(ctx, s, event.Seller, token, visible(listing), event.BlockNumber); err != nil {
			return err
		}
	}

	if err := s.Remove(ctx, domain.KindListing, listing.ID); err != nil {
		return err
	}
	return r.RecomputeFloorAndTotals(ctx, s, collection, token)
}

func (r *reconciler) OnItemSold(ctx context.Context, s store.Store, event domain.ItemSoldEvent, token *domain.Token, collection *domain.Collection) error {
	listingID := domain.ListingID(event.Seller, event.NFTAddress, event.TokenID)
	listing, found, err := store.Get(ctx, s, listingID, domain.NewListing)
	if err != nil {
		return err
	}
	if !found {
		logger.WarnCtx(ctx, "sold listing not found", logger.Listing(listingID), logger.Tx(event.TxHash))
		return nil
	}

	quantity := domain.Int64(event.Quantity)
	available := visible(listing)
	if quantity > available {
		logger.WarnCtx(ctx, "sale exceeds listed quantity",
			logger.Listing(listingID),
			zap.Int64("listed", available),
			zap.Int64("sold", quantity))
	}
	// staked units remain listed and return to the listing on unstake
	if listing.StakedQuantity == 0 && quantity >= listing.Quantity {
		if err := s.Remove(ctx, domain.KindListing, listing.ID); err != nil {
			return err
		}
	} else {
		listing.ListedQuantity -= min(quantity, available)
		settle(listing)
		if err := s.Save(ctx, listing); err != nil {
			return err
		}
	}

	price := domain.Uint256(event.PricePerItem)
	collection.TotalSales++
	collection.TotalVolume.Add(&collection.TotalVolume, domain.MulQuantity(&price, quantity))

	// fills of the same listing in one transaction share an archive row
	sold, _, err := store.GetOrCreate(ctx, s, domain.SoldListingID(listing.ID, event.TxHash.Hex()), domain.NewListing)
	if err != nil {
		return err
	}
	sold.User = listing.User
	sold.Buyer = domain.NormalizeAddress(event.Buyer)
	sold.Token = listing.Token
	sold.TokenName = listing.TokenName
	sold.Collection = listing.Collection
	sold.CollectionName = listing.CollectionName
	sold.Filters = listing.Filters.Clone()
	sold.PricePerItem = price
	sold.Quantity += quantity
	sold.ListedQuantity = sold.Quantity
	sold.Status = domain.ListingStatusSold
	sold.Expires = uint256.Int{}
	sold.NicePrice = domain.FormatPrice(&price)
	sold.TotalPrice = domain.FormatPrice(domain.MulQuantity(&price, sold.Quantity))
	sold.BlockTimestamp = event.BlockTimestamp
	sold.TransactionLink = r.network.TransactionLink(event.TxHash)
	if err := s.Save(ctx, sold); err != nil {
		return err
	}

	return r.RecomputeFloorAndTotals(ctx, s, collection, token)
}

func (r *reconciler) RecomputeFloorAndTotals(ctx context.Context, s store.Store, collection *domain.Collection, token *domain.Token) error {
	var floor uint256.Int
	var hasFloor bool
	var total int64
	tokenFloors := make(map[string]uint256.Int)

	for _, id := range collection.ListingIDs.Items() {
		listing, found, err := store.Get(ctx, s, id, domain.NewListing)
		if err != nil {
			return err
		}
		if !found {
			collection.ListingIDs.Remove(id)
			continue
		}
		if listing.Status != domain.ListingStatusActive {
			continue
		}

		price := listing.PricePerItem
		if !hasFloor || price.Lt(&floor) {
			floor = price
			hasFloor = true
		}
		total += listing.Quantity

		if collection.Standard == domain.StandardERC1155 {
			current, ok := tokenFloors[listing.Token]
			if !ok || price.Lt(&current) {
				tokenFloors[listing.Token] = price
			}
		}
	}

	collection.FloorPrice = floor
	collection.TotalListings = total

	if err := r.updateTokenFloors(ctx, s, collection, token, tokenFloors); err != nil {
		return err
	}
	return s.Save(ctx, collection)
}

// updateTokenFloors writes per-token floors and resets tokens that lost their last Active listing
func (r *reconciler) updateTokenFloors(ctx context.Context, s store.Store, collection *domain.Collection, current *domain.Token, floors map[string]uint256.Int) error {
	ids := collection.FloorTokenIDs.Items()
	for id := range floors {
		if !collection.FloorTokenIDs.Contains(id) {
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		floor, listed := floors[id]

		token := current
		if token == nil || token.ID != id {
			loaded, found, err := store.Get(ctx, s, id, domain.NewToken)
			if err != nil {
				return err
			}
			if !found {
				collection.FloorTokenIDs.Remove(id)
				continue
			}
			token = loaded
		}

		if listed {
			collection.FloorTokenIDs.Add(id)
		} else {
			collection.FloorTokenIDs.Remove(id)
		}
		if token.FloorPrice.Eq(&floor) {
			continue
		}
		token.FloorPrice = floor
		if err := s.Save(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciler) Stake(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error {
	taken, err := r.ledger.Debit(ctx, s, user, token, quantity)
	if err != nil {
		return err
	}
	remaining := quantity - taken
	if remaining <= 0 {
		return nil
	}

	listing, found, err := r.listingOf(ctx, s, user, token)
	if err != nil {
		return err
	}
	if found {
		hidden := min(remaining, visible(listing))
		listing.StakedQuantity += hidden
		remaining -= hidden
		settle(listing)
		if err := s.Save(ctx, listing); err != nil {
			return err
		}
		if err := r.RecomputeFloorAndTotals(ctx, s, collection, token); err != nil {
			return err
		}
	}

	if remaining > 0 {
		logger.WarnCtx(ctx, "staked more units than the user holds",
			logger.Token(token.ID),
			logger.User(user),
			zap.Int64("missing", remaining))
	}
	return nil
}

func (r *reconciler) Unstake(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64, blockNumber uint64) error {
	remaining := quantity

	listing, found, err := r.listingOf(ctx, s, user, token)
	if err != nil {
		return err
	}
	if found && listing.StakedQuantity > 0 {
		restored := min(remaining, listing.StakedQuantity)
		listing.StakedQuantity -= restored
		remaining -= restored
		settle(listing)
		if err := s.Save(ctx, listing); err != nil {
			return err
		}
		if err := r.RecomputeFloorAndTotals(ctx, s, collection, token); err != nil {
			return err
		}
	}

	return r.ledger.Credit(ctx, s, user, token, remaining, blockNumber)
}

func (r *reconciler) Withdraw(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error {
	taken, err := r.ledger.Debit(ctx, s, user, token, quantity)
	if err != nil {
		return err
	}
	remaining := quantity - taken
	if remaining <= 0 {
		return nil
	}

	listing, found, err := r.listingOf(ctx, s, user, token)
	if err != nil {
		return err
	}
	if !found {
		logger.WarnCtx(ctx, "transferred more units than the user holds",
			logger.Token(token.ID),
			logger.User(user),
			zap.Int64("missing", remaining))
		return nil
	}

	listing.ListedQuantity -= min(remaining, visible(listing))
	if visible(listing) <= 0 && listing.StakedQuantity == 0 {
		err = s.Remove(ctx, domain.KindListing, listing.ID)
	} else {
		settle(listing)
		err = s.Save(ctx, listing)
	}
	if err != nil {
		return err
	}
	return r.RecomputeFloorAndTotals(ctx, s, collection, token)
}

func (r *reconciler) listingOf(ctx context.Context, s store.Store, user common.Address, token *domain.Token) (*domain.Listing, bool, error) {
	id := domain.ListingID(user, common.HexToAddress(token.Collection), token.Number())
	return store.Get(ctx, s, id, domain.NewListing)
}
