package mapping

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/attributes"
	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/ledger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/listings"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/providers/ethereum"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
	"github.com/feral-file/ff-marketplace-subgraph/internal/uri"
)

// Handlers applies decoded chain events to the entity store.
// Events must be delivered one at a time in (block, log index) order.
//
//go:generate mockgen -source=handlers.go -destination=../mocks/handlers.go -package=mocks -mock_names=Handlers=MockHandlers
type Handlers interface {
	// Handle applies a single event. Only store failures are returned.
	Handle(ctx context.Context, s store.Store, event domain.Event) error

	// OnBlock runs block-scoped work before the events of blockNumber are handled
	OnBlock(ctx context.Context, s store.Store, blockNumber uint64) error
}

type handlers struct {
	reader     ethereum.ContractReader
	fetcher    uri.Fetcher
	attributes attributes.Reconciler
	listings   listings.Reconciler
	ledger     ledger.Ledger
	network    *config.NetworkConfig
}

// NewHandlers creates the event handlers
func NewHandlers(
	reader ethereum.ContractReader,
	fetcher uri.Fetcher,
	attributes attributes.Reconciler,
	listings listings.Reconciler,
	ledger ledger.Ledger,
	network *config.NetworkConfig,
) Handlers {
	return &handlers{
		reader:     reader,
		fetcher:    fetcher,
		attributes: attributes,
		listings:   listings,
		ledger:     ledger,
		network:    network,
	}
}

func (h *handlers) Handle(ctx context.Context, s store.Store, event domain.Event) error {
	switch e := event.(type) {
	case domain.TransferEvent:
		return h.handleTransfer(ctx, s, e)
	case domain.TransferSingleEvent:
		return h.handleTransferSingle(ctx, s, e)
	case domain.TransferBatchEvent:
		logger.InfoCtx(ctx, "TransferBatch",
			logger.Collection(domain.NormalizeAddress(e.Address)),
			zap.String("from", e.From.Hex()),
			zap.String("to", e.To.Hex()),
			zap.Int("ids", len(e.TokenIDs)))
		return nil
	case domain.URIEvent:
		logger.InfoCtx(ctx, "URI",
			logger.Collection(domain.NormalizeAddress(e.Address)),
			logger.TokenNumber(e.TokenID),
			zap.String("value", e.Value))
		return nil
	case domain.ItemListedEvent:
		return h.handleItemListed(ctx, s, e)
	case domain.ItemUpdatedEvent:
		return h.handleItemUpdated(ctx, s, e)
	case domain.ItemCanceledEvent:
		return h.handleItemCanceled(ctx, s, e)
	case domain.ItemSoldEvent:
		return h.handleItemSold(ctx, s, e)
	case domain.JoinSchoolEvent:
		return h.handleJoin(ctx, s, e.EventContext, config.CollectionSmolBrains, domain.KindStudent, e.TokenID)
	case domain.DropSchoolEvent:
		return h.handleDropSchool(ctx, s, e)
	case domain.JoinGymEvent:
		return h.handleJoin(ctx, s, e.EventContext, config.CollectionSmolBodies, domain.KindExerciser, e.TokenID)
	case domain.DropGymEvent:
		return h.handleDropGym(ctx, s, e)
	case domain.CollectionMintEvent:
		return h.handleCollectionMint(ctx, s, e)
	default:
		logger.WarnCtx(ctx, "unhandled event", zap.String("event", event.Name()))
		return nil
	}
}

func (h *handlers) OnBlock(ctx context.Context, s store.Store, blockNumber uint64) error {
	return h.attributes.ActivateRarity(ctx, s, blockNumber)
}

// target is the collection and token an event applies to, loaded once per event
type target struct {
	profile    config.CollectionProfile
	known      bool
	collection *domain.Collection
	token      *domain.Token
	created    bool
	// attempted is set once the token's metadata was resolved during this event
	attempted  bool
}

func (t *target) address() common.Address {
	return common.HexToAddress(t.collection.Address)
}

// removeSuperseded drops the row of a collection replaced by a redeployed contract
func (h *handlers) removeSuperseded(ctx context.Context, s store.Store, id string) error {
	exists, err := s.Exists(ctx, domain.KindCollection, id)
	if err != nil || !exists {
		return err
	}
	logger.InfoCtx(ctx, "removing superseded collection", logger.Collection(id))
	return s.Remove(ctx, domain.KindCollection, id)
}

// load resolves the collection and token of an event, creating them when absent and
// applying the collection profile
func (h *handlers) load(ctx context.Context, s store.Store, address common.Address, tokenID *big.Int) (*target, error) {
	profile, known := h.network.Profile(address)

	collection, _, err := store.GetOrCreate(ctx, s, domain.NormalizeAddress(address), domain.NewCollection)
	if err != nil {
		return nil, err
	}
	collection.Address = collection.ID
	if known {
		collection.Name = profile.Name
		collection.Standard = profile.Standard
		if err := h.applyCreator(ctx, s, profile, collection); err != nil {
			return nil, err
		}
		if profile.Supersedes != "" {
			if err := h.removeSuperseded(ctx, s, profile.Supersedes); err != nil {
				return nil, err
			}
		}
	}

	token, created, err := store.GetOrCreate(ctx, s, domain.TokenID(address, tokenID), domain.NewToken)
	if err != nil {
		return nil, err
	}
	token.TokenID = tokenID.String()
	token.Collection = collection.ID

	return &target{
		profile:    profile,
		known:      known,
		collection: collection,
		token:      token,
		created:    created,
	}, nil
}

func (h *handlers) applyCreator(ctx context.Context, s store.Store, profile config.CollectionProfile, collection *domain.Collection) error {
	if profile.Creator == "" {
		return nil
	}
	creator, created, err := store.GetOrCreate(ctx, s, profile.Creator, domain.NewCreator)
	if err != nil {
		return err
	}
	if created || creator.Fee != profile.CreatorFee {
		creator.Fee = profile.CreatorFee
		if err := s.Save(ctx, creator); err != nil {
			return err
		}
	}
	collection.Creator = creator.ID
	return nil
}

// save persists the target's token and collection
func (h *handlers) save(ctx context.Context, s store.Store, t *target) error {
	return store.SaveAll(ctx, s, t.token, t.collection)
}
