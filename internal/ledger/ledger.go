package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
)

// Ledger tracks who holds which units of a token.
//
// Free balances (UserToken) count units that are neither listed nor staked. Holdings
// (TokenOwner, CollectionOwner) count every unit a user holds and drive the totalOwners
// aggregates. Token and collection aggregates are mutated in place and left for the
// caller to save.
type Ledger interface {
	// Balance returns the user's free balance of the token
	Balance(ctx context.Context, s store.Store, user common.Address, token *domain.Token) (int64, error)
	// Credit adds units to the user's free balance
	Credit(ctx context.Context, s store.Store, user common.Address, token *domain.Token, quantity int64, blockNumber uint64) error
	// Debit takes up to quantity units from the user's free balance and returns how many were taken.
	// The row is removed when the balance reaches zero.
	Debit(ctx context.Context, s store.Store, user common.Address, token *domain.Token, quantity int64) (int64, error)

	// Acquire records that the user now holds quantity more units of the token
	Acquire(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error
	// Release records that the user no longer holds quantity units of the token
	Release(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error

	// Mint adds units to the token and collection supply
	Mint(token *domain.Token, collection *domain.Collection, quantity int64)
	// Burn removes units from the token and collection supply
	Burn(token *domain.Token, collection *domain.Collection, quantity int64)
}

type ledger struct{}

// NewLedger creates a ledger
func NewLedger() Ledger {
	return &ledger{}
}

// holdingID is the UserToken / TokenOwner id of (user, token)
func holdingID(user common.Address, token *domain.Token) string {
	return domain.ListingID(user, common.HexToAddress(token.Collection), token.Number())
}

func (l *ledger) Balance(ctx context.Context, s store.Store, user common.Address, token *domain.Token) (int64, error) {
	balance, found, err := store.Get(ctx, s, holdingID(user, token), domain.NewUserToken)
	if err != nil || !found {
		return 0, err
	}
	return balance.Quantity, nil
}

func (l *ledger) Credit(ctx context.Context, s store.Store, user common.Address, token *domain.Token, quantity int64, blockNumber uint64) error {
	if quantity <= 0 {
		return nil
	}

	u, created, err := store.GetOrCreate(ctx, s, domain.NormalizeAddress(user), domain.NewUser)
	if err != nil {
		return err
	}
	if created {
		if err := s.Save(ctx, u); err != nil {
			return err
		}
	}

	balance, _, err := store.GetOrCreate(ctx, s, holdingID(user, token), domain.NewUserToken)
	if err != nil {
		return err
	}
	balance.User = u.ID
	balance.Token = token.ID
	balance.Quantity += quantity
	balance.BlockNumber = blockNumber
	return s.Save(ctx, balance)
}

func (l *ledger) Debit(ctx context.Context, s store.Store, user common.Address, token *domain.Token, quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, nil
	}

	balance, found, err := store.Get(ctx, s, holdingID(user, token), domain.NewUserToken)
	if err != nil || !found {
		return 0, err
	}

	taken := min(quantity, balance.Quantity)
	balance.Quantity -= taken
	if balance.Quantity <= 0 {
		return taken, s.Remove(ctx, domain.KindUserToken, balance.ID)
	}
	return taken, s.Save(ctx, balance)
}

func (l *ledger) Acquire(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	userID := domain.NormalizeAddress(user)

	owner, _, err := store.GetOrCreate(ctx, s, holdingID(user, token), domain.NewTokenOwner)
	if err != nil {
		return err
	}
	owner.User = userID
	owner.Token = token.ID
	owner.Quantity += quantity
	if err := s.Save(ctx, owner); err != nil {
		return err
	}
	token.Owners.Add(userID)
	token.TotalOwners = int64(token.Owners.Len())

	collectionAddress := common.HexToAddress(collection.Address)
	holder, created, err := store.GetOrCreate(ctx, s, domain.CollectionOwnerID(collectionAddress, user), domain.NewCollectionOwner)
	if err != nil {
		return err
	}
	if created {
		collection.TotalOwners++
	}
	holder.User = userID
	holder.Collection = collection.ID
	holder.Quantity += quantity
	return s.Save(ctx, holder)
}

func (l *ledger) Release(ctx context.Context, s store.Store, user common.Address, token *domain.Token, collection *domain.Collection, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	userID := domain.NormalizeAddress(user)

	owner, found, err := store.Get(ctx, s, holdingID(user, token), domain.NewTokenOwner)
	if err != nil {
		return err
	}
	if !found {
		logger.WarnCtx(ctx, "releasing units of a token the user does not hold",
			logger.Token(token.ID),
			logger.User(user))
	} else {
		owner.Quantity -= quantity
		if owner.Quantity > 0 {
			if err := s.Save(ctx, owner); err != nil {
				return err
			}
		} else {
			if err := s.Remove(ctx, domain.KindTokenOwner, owner.ID); err != nil {
				return err
			}
			token.Owners.Remove(userID)
			token.TotalOwners = int64(token.Owners.Len())
		}
	}

	collectionAddress := common.HexToAddress(collection.Address)
	holder, found, err := store.Get(ctx, s, domain.CollectionOwnerID(collectionAddress, user), domain.NewCollectionOwner)
	if err != nil {
		return err
	}
	if !found {
		logger.WarnCtx(ctx, "releasing units of a collection the user does not hold",
			logger.Collection(collection.ID),
			logger.User(user))
		return nil
	}

	holder.Quantity -= quantity
	if holder.Quantity > 0 {
		return s.Save(ctx, holder)
	}
	if collection.TotalOwners > 0 {
		collection.TotalOwners--
	}
	return s.Remove(ctx, domain.KindCollectionOwner, holder.ID)
}

func (l *ledger) Mint(token *domain.Token, collection *domain.Collection, quantity int64) {
	token.TotalItems += quantity
	collection.TotalItems += quantity
}

func (l *ledger) Burn(token *domain.Token, collection *domain.Collection, quantity int64) {
	token.TotalItems = clampedSub(token.TotalItems, quantity, token.ID)
	collection.TotalItems = clampedSub(collection.TotalItems, quantity, collection.ID)
}

func clampedSub(value, delta int64, entity string) int64 {
	if delta > value {
		logger.Warn("supply would go negative",
			zap.String("entity", entity),
			zap.Int64("supply", value),
			zap.Int64("burned", delta))
		return 0
	}
	return value - delta
}
