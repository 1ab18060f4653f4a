package mapping_test

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace-subgraph/internal/attributes"
	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/ledger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/listings"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/mapping"
	"github.com/feral-file/ff-marketplace-subgraph/internal/mocks"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
	"github.com/feral-file/ff-marketplace-subgraph/internal/uri"
)

const (
	buySelector          = "0xde250604"
	safeTransferSelector = "0xf242432a"
)

var (
	smolBrains  = common.HexToAddress("0x6325439389E0797Ab35752B4F43a14C004f22A9c")
	smolBodies  = common.HexToAddress("0x17DaCAD7975960833f374622fad08b90Ed67D1B5")
	treasures   = common.HexToAddress("0xEbba467eCB6b21239178033189CeAE27CA12EaDf")
	legions     = common.HexToAddress("0x658365026D06F00965B5bb570727100E821e6508")
	legionsOld  = common.HexToAddress("0xE83c0200E93Cb1496054e387BDdaE590C07f0194")
	marketplace = common.HexToAddress("0x2E3b85F85628301a0Bce300Dee3A6B04195A15Ee")
	staking     = common.HexToAddress("0x0000000000000000000000000000000000005a6e")

	me     = common.HexToAddress("0x0000000000000000000000000000000000000022")
	you    = common.HexToAddress("0x0000000000000000000000000000000000000333")
	friend = common.HexToAddress("0x0000000000000000000000000000000000004444")
	zero   = common.Address{}
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func testSettings() config.NetworkSettings {
	return config.NetworkSettings{
		Name:                   config.NetworkArbitrumOne,
		MarketplaceAddress:     marketplace.Hex(),
		MarketplaceBuySelector: buySelector,
		StakingAddress:         staking.Hex(),
		GatewayRewrites: []config.Rewrite{
			{From: "gateway.pinata.cloud", To: config.DEFAULT_PINNED_GATEWAY},
		},
		LegacyHashes: []config.Rewrite{
			{From: "QmOldBodies", To: "QmNewBodies"},
		},
		Collections: []config.CollectionSettings{
			{
				Name:                "Smol Brains",
				Address:             smolBrains.Hex(),
				Creator:             "Smol Brains",
				SeedTraits:          []string{domain.TRAIT_IQ},
				PlaceholderMetadata: true,
			},
			{
				Name:       "Smol Bodies",
				Address:    smolBodies.Hex(),
				MintEvent:  "SmolBodiesMint",
				NameRule:   config.NameRuleDescription,
				SeedTraits: []string{domain.TRAIT_PLATES},
			},
			{Name: "Treasures", Address: treasures.Hex(), Standard: "ERC1155"},
			{Name: "Legions Genesis", Address: legions.Hex(), Standard: "ERC1155", Supersedes: legionsOld.Hex()},
		},
	}
}

type fixture struct {
	ctx    context.Context
	s      store.TxStore
	reader *mocks.MockContractReader
	http   *mocks.MockHTTPClient
	h      mapping.Handlers
	block  uint64
	tx     int64
}

// removalCounter counts collection rows removed through the store
type removalCounter struct {
	store.TxStore
	removed map[string]int
}

func (c *removalCounter) Remove(ctx context.Context, kind domain.Kind, id string) error {
	if kind == domain.KindCollection {
		if c.removed == nil {
			c.removed = map[string]int{}
		}
		c.removed[id]++
	}
	return c.TxStore.Remove(ctx, kind, id)
}

func newFixture(t *testing.T, customize ...func(*config.NetworkSettings)) *fixture {
	settings := testSettings()
	for _, c := range customize {
		c(&settings)
	}
	network := config.NewTestNetwork(settings)

	ctrl := gomock.NewController(t)
	reader := mocks.NewMockContractReader(ctrl)
	httpClient := mocks.NewMockHTTPClient(ctrl)
	fetcher := uri.NewFetcher(httpClient, mocks.NewMockBase64(ctrl), network)

	l := ledger.NewLedger()
	h := mapping.NewHandlers(
		reader,
		fetcher,
		attributes.NewReconciler(fetcher, network),
		listings.NewReconciler(l, network),
		l,
		network,
	)

	return &fixture{
		ctx:    context.Background(),
		s:      store.NewMemoryStore(),
		reader: reader,
		http:   httpClient,
		h:      h,
		block:  10,
	}
}

// ec returns the context of a new transaction in a new block
func (f *fixture) ec(address, sender common.Address, selector string) domain.EventContext {
	f.block++
	f.tx++
	return domain.EventContext{
		Address:        address,
		BlockNumber:    f.block,
		BlockTimestamp: 1640000000 + f.block,
		TxHash:         common.BigToHash(big.NewInt(f.tx)),
		TxFrom:         sender,
		TxSelector:     selector,
	}
}

func (f *fixture) handle(t *testing.T, event domain.Event) {
	require.NoError(t, f.h.Handle(f.ctx, f.s, event))
}

func (f *fixture) transfer721(t *testing.T, collection common.Address, id int64, from, to common.Address) {
	f.handle(t, domain.TransferEvent{
		EventContext: f.ec(collection, from, safeTransferSelector),
		From:         from,
		To:           to,
		TokenID:      big.NewInt(id),
	})
}

func (f *fixture) transfer1155(t *testing.T, collection common.Address, id, quantity int64, from, to common.Address) {
	f.transfer1155With(t, collection, id, quantity, from, to, safeTransferSelector)
}

func (f *fixture) transfer1155With(t *testing.T, collection common.Address, id, quantity int64, from, to common.Address, selector string) {
	f.handle(t, domain.TransferSingleEvent{
		EventContext: f.ec(collection, from, selector),
		Operator:     from,
		From:         from,
		To:           to,
		TokenID:      big.NewInt(id),
		Value:        big.NewInt(quantity),
	})
}

func (f *fixture) list(t *testing.T, collection common.Address, id, quantity int64, seller common.Address) {
	f.handle(t, domain.ItemListedEvent{
		EventContext:   f.ec(marketplace, seller, ""),
		Seller:         seller,
		NFTAddress:     collection,
		TokenID:        big.NewInt(id),
		Quantity:       big.NewInt(quantity),
		PricePerItem:   eth(1),
		ExpirationTime: big.NewInt(0),
	})
}

func (f *fixture) cancel(t *testing.T, collection common.Address, id int64, seller common.Address) {
	f.handle(t, domain.ItemCanceledEvent{
		EventContext: f.ec(marketplace, seller, ""),
		Seller:       seller,
		NFTAddress:   collection,
		TokenID:      big.NewInt(id),
	})
}

// buy fills a 1155 listing the way the marketplace does: ItemSold, then the token
// transfer, both in one buyItem transaction
func (f *fixture) buy(t *testing.T, collection common.Address, id, quantity int64, seller, buyer common.Address) common.Hash {
	ec := f.ec(marketplace, buyer, buySelector)
	f.handle(t, domain.ItemSoldEvent{
		EventContext: ec,
		Seller:       seller,
		Buyer:        buyer,
		NFTAddress:   collection,
		TokenID:      big.NewInt(id),
		Quantity:     big.NewInt(quantity),
		PricePerItem: eth(1),
	})

	ec.Address = collection
	ec.LogIndex++
	f.handle(t, domain.TransferSingleEvent{
		EventContext: ec,
		Operator:     marketplace,
		From:         seller,
		To:           buyer,
		TokenID:      big.NewInt(id),
		Value:        big.NewInt(quantity),
	})
	return ec.TxHash
}

func (f *fixture) collection(t *testing.T, address common.Address) *domain.Collection {
	collection, found, err := store.Get(f.ctx, f.s, domain.NormalizeAddress(address), domain.NewCollection)
	require.NoError(t, err)
	require.True(t, found, "collection %s", address.Hex())
	return collection
}

func (f *fixture) token(t *testing.T, address common.Address, id int64) *domain.Token {
	token, found, err := store.Get(f.ctx, f.s, domain.TokenID(address, big.NewInt(id)), domain.NewToken)
	require.NoError(t, err)
	require.True(t, found, "token %s #%d", address.Hex(), id)
	return token
}

func (f *fixture) listing(t *testing.T, user, address common.Address, id int64) (*domain.Listing, bool) {
	listing, found, err := store.Get(f.ctx, f.s, domain.ListingID(user, address, big.NewInt(id)), domain.NewListing)
	require.NoError(t, err)
	return listing, found
}

// balance returns the free balance of user, or -1 when there is no UserToken row
func (f *fixture) balance(t *testing.T, user, address common.Address, id int64) int64 {
	holding, found, err := store.Get(f.ctx, f.s, domain.ListingID(user, address, big.NewInt(id)), domain.NewUserToken)
	require.NoError(t, err)
	if !found {
		return -1
	}
	return holding.Quantity
}

func (f *fixture) exists(t *testing.T, kind domain.Kind, id string) bool {
	ok, err := f.s.Exists(f.ctx, kind, id)
	require.NoError(t, err)
	return ok
}

func (f *fixture) attribute(t *testing.T, id string) *domain.Attribute {
	attribute, found, err := store.Get(f.ctx, f.s, id, domain.NewAttribute)
	require.NoError(t, err)
	require.True(t, found, "attribute %s", id)
	return attribute
}

// brainsURI answers tokenURI of Smol Brains with the unrevealed placeholder URI
func (f *fixture) brainsURI(uri string) {
	f.reader.EXPECT().
		TokenURI(gomock.Any(), smolBrains, gomock.Any(), gomock.Any()).
		Return(uri, true).
		AnyTimes()
}

func (f *fixture) treasuresURI() {
	f.reader.EXPECT().
		URI(gomock.Any(), treasures, gomock.Any(), gomock.Any()).
		Return("ipfs://QmTreasures/", true).
		AnyTimes()
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestHandleSmolBrainsDropSchool(t *testing.T) {
	f := newFixture(t)
	f.brainsURI("ipfs://smolbrains/0")
	f.reader.EXPECT().
		Brainz(gomock.Any(), smolBrains, big.NewInt(0), gomock.Any()).
		Return(new(big.Int).Mul(big.NewInt(305), big.NewInt(1e18)), true)

	f.transfer721(t, smolBrains, 0, zero, me)

	token := f.token(t, smolBrains, 0)
	assert.Equal(t, "ipfs://smolbrains/0", token.MetadataURI)
	assert.Equal(t, "Smol Brains #0", token.Name)
	assert.Equal(t, domain.NormalizeAddress(me), token.Owner)
	iqID := domain.SeedAttributeID(smolBrains, domain.TRAIT_IQ, big.NewInt(0))
	assert.Equal(t, domain.ZERO_TRAIT_VALUE, f.attribute(t, iqID).Value)

	listingID := domain.ListingID(me, smolBrains, big.NewInt(0))
	f.handle(t, domain.JoinSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
	assert.True(t, f.exists(t, domain.KindStudent, listingID))
	assert.Equal(t, int64(-1), f.balance(t, me, smolBrains, 0))

	f.handle(t, domain.DropSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
	assert.False(t, f.exists(t, domain.KindStudent, listingID))
	assert.Equal(t, int64(1), f.balance(t, me, smolBrains, 0))
	assert.Equal(t, "305", f.attribute(t, iqID).Value)

	headSize := f.attribute(t, domain.AttributeID(smolBrains, domain.TRAIT_HEAD_SIZE, "5"))
	assert.Equal(t, "5", headSize.Value)
	assert.True(t, headSize.TokenIDs.Contains("0"))

	token = f.token(t, smolBrains, 0)
	assert.Equal(t, "ipfs://smolbrains/5", token.MetadataURI)
	assert.True(t, token.Filters.Has(domain.Filter{Name: domain.TRAIT_HEAD_SIZE, Value: "5"}))
	assert.True(t, f.exists(t, domain.KindMetadataAttribute, domain.MetadataAttributeID(token.ID, headSize.ID)))
	assert.Equal(t, 0, f.collection(t, smolBrains).MissingMetadataIDs.Len())
}

func TestHandleDropSchoolLevelMismatch(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(
		f.reader.EXPECT().TokenURI(gomock.Any(), smolBrains, gomock.Any(), gomock.Any()).Return("ipfs://smolbrains/0", true),
		f.reader.EXPECT().TokenURI(gomock.Any(), smolBrains, gomock.Any(), gomock.Any()).Return("ipfs://smolbrains/3", true),
	)
	f.reader.EXPECT().
		Brainz(gomock.Any(), smolBrains, gomock.Any(), gomock.Any()).
		Return(new(big.Int).Mul(big.NewInt(305), big.NewInt(1e18)), true)

	f.transfer721(t, smolBrains, 0, zero, me)
	f.handle(t, domain.JoinSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
	f.handle(t, domain.DropSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})

	token := f.token(t, smolBrains, 0)
	assert.Equal(t, "ipfs://smolbrains/0", token.MetadataURI)
	assert.Empty(t, token.Filters.ValuesOf(domain.TRAIT_HEAD_SIZE))
	assert.False(t, f.exists(t, domain.KindAttribute, domain.AttributeID(smolBrains, domain.TRAIT_HEAD_SIZE, "5")))

	// the IQ is recorded regardless of the level
	iqID := domain.SeedAttributeID(smolBrains, domain.TRAIT_IQ, big.NewInt(0))
	assert.Equal(t, "305", f.attribute(t, iqID).Value)
	assert.Equal(t, int64(1), f.balance(t, me, smolBrains, 0))
}

func TestHandleStakedListing(t *testing.T) {
	t.Run("school hides the listing while enrolled", func(t *testing.T) {
		f := newFixture(t)
		f.brainsURI("ipfs://smolbrains/0")
		f.reader.EXPECT().Brainz(gomock.Any(), smolBrains, gomock.Any(), gomock.Any()).Return(big.NewInt(0), true)

		f.transfer721(t, smolBrains, 0, zero, me)
		f.list(t, smolBrains, 0, 1, me)

		listing, found := f.listing(t, me, smolBrains, 0)
		require.True(t, found)
		assert.Equal(t, domain.ListingStatusActive, listing.Status)
		assert.Equal(t, int64(1), f.collection(t, smolBrains).TotalListings)

		f.handle(t, domain.JoinSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
		listing, found = f.listing(t, me, smolBrains, 0)
		require.True(t, found)
		assert.Equal(t, domain.ListingStatusHidden, listing.Status)
		assert.Equal(t, int64(1), listing.Quantity)
		assert.Equal(t, int64(0), f.collection(t, smolBrains).TotalListings)

		f.handle(t, domain.DropSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
		listing, found = f.listing(t, me, smolBrains, 0)
		require.True(t, found)
		assert.Equal(t, domain.ListingStatusActive, listing.Status)
		assert.Equal(t, int64(1), listing.Quantity)
		assert.Equal(t, int64(1), f.collection(t, smolBrains).TotalListings)
		assert.Equal(t, int64(-1), f.balance(t, me, smolBrains, 0))
	})

	t.Run("canceling a hidden listing keeps the token out of inventory", func(t *testing.T) {
		f := newFixture(t)
		f.brainsURI("ipfs://smolbrains/0")
		f.reader.EXPECT().Brainz(gomock.Any(), smolBrains, gomock.Any(), gomock.Any()).Return(big.NewInt(0), true)
		listingID := domain.ListingID(me, smolBrains, big.NewInt(0))

		f.transfer721(t, smolBrains, 0, zero, me)
		f.list(t, smolBrains, 0, 1, me)
		f.handle(t, domain.JoinSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
		f.cancel(t, smolBrains, 0, me)

		assert.True(t, f.exists(t, domain.KindStudent, listingID))
		_, found := f.listing(t, me, smolBrains, 0)
		assert.False(t, found)
		assert.Equal(t, int64(-1), f.balance(t, me, smolBrains, 0))

		f.handle(t, domain.DropSchoolEvent{EventContext: f.ec(smolBrains, me, ""), TokenID: big.NewInt(0)})
		assert.False(t, f.exists(t, domain.KindStudent, listingID))
		assert.Equal(t, int64(1), f.balance(t, me, smolBrains, 0))
	})

	t.Run("staking contract hides an ERC721 listing", func(t *testing.T) {
		f := newFixture(t)
		f.brainsURI("ipfs://smolbrains/0")
		listingID := domain.ListingID(me, smolBrains, big.NewInt(0))

		f.transfer721(t, smolBrains, 0, zero, me)
		f.list(t, smolBrains, 0, 1, me)
		f.transfer721(t, smolBrains, 0, me, staking)

		assert.True(t, f.exists(t, domain.KindStaker, listingID))
		listing, found := f.listing(t, me, smolBrains, 0)
		require.True(t, found)
		assert.Equal(t, domain.ListingStatusHidden, listing.Status)
		// staking does not change ownership
		token := f.token(t, smolBrains, 0)
		assert.Equal(t, domain.NormalizeAddress(me), token.Owner)
		assert.Equal(t, int64(1), token.TotalOwners)

		f.transfer721(t, smolBrains, 0, staking, me)

		assert.False(t, f.exists(t, domain.KindStaker, listingID))
		listing, found = f.listing(t, me, smolBrains, 0)
		require.True(t, found)
		assert.Equal(t, domain.ListingStatusActive, listing.Status)
		assert.Equal(t, int64(1), listing.Quantity)
		assert.Equal(t, int64(1), f.collection(t, smolBrains).TotalListings)
	})
}

func TestHandleStakingERC1155(t *testing.T) {
	t.Run("mint 2, stake 1, list 1, stake 1, unstake 2", func(t *testing.T) {
		f := newFixture(t)
		f.treasuresURI()

		f.transfer1155(t, treasures, 0, 2, zero, me)
		f.transfer1155(t, treasures, 0, 1, me, staking)
		f.list(t, treasures, 0, 1, me)

		listing, found := f.listing(t, me, treasures, 0)
		require.True(t, found)
		assert.Equal(t, int64(1), listing.Quantity)
		assert.Equal(t, int64(-1), f.balance(t, me, treasures, 0))

		f.transfer1155(t, treasures, 0, 1, me, staking)

		collection := f.collection(t, treasures)
		assert.Equal(t, int64(2), collection.TotalItems)
		assert.Equal(t, int64(0), collection.TotalListings)
		assert.Equal(t, int64(1), collection.TotalOwners)
		listing, _ = f.listing(t, me, treasures, 0)
		assert.Equal(t, domain.ListingStatusHidden, listing.Status)
		assert.Equal(t, int64(1), listing.Quantity)
		assert.Equal(t, int64(-1), f.balance(t, me, treasures, 0))

		f.transfer1155(t, treasures, 0, 2, staking, me)

		collection = f.collection(t, treasures)
		assert.Equal(t, int64(2), collection.TotalItems)
		assert.Equal(t, int64(1), collection.TotalListings)
		listing, _ = f.listing(t, me, treasures, 0)
		assert.Equal(t, domain.ListingStatusActive, listing.Status)
		assert.Equal(t, int64(1), listing.Quantity)
		assert.Equal(t, int64(1), f.balance(t, me, treasures, 0))
	})

	t.Run("mint 3, stake 1, list 2, stake 1 listed, unstake 1, unstake 1", func(t *testing.T) {
		f := newFixture(t)
		f.treasuresURI()

		f.transfer1155(t, treasures, 0, 3, zero, me)
		f.transfer1155(t, treasures, 0, 1, me, staking)
		f.list(t, treasures, 0, 2, me)

		listing, _ := f.listing(t, me, treasures, 0)
		assert.Equal(t, int64(2), listing.Quantity)
		assert.Equal(t, int64(-1), f.balance(t, me, treasures, 0))

		f.transfer1155(t, treasures, 0, 1, me, staking)

		collection := f.collection(t, treasures)
		assert.Equal(t, int64(3), collection.TotalItems)
		assert.Equal(t, int64(1), collection.TotalListings)
		assert.Equal(t, int64(1), collection.TotalOwners)
		listing, _ = f.listing(t, me, treasures, 0)
		assert.Equal(t, domain.ListingStatusActive, listing.Status)
		assert.Equal(t, int64(1), listing.Quantity)

		f.transfer1155(t, treasures, 0, 1, staking, me)

		assert.Equal(t, int64(2), f.collection(t, treasures).TotalListings)
		listing, _ = f.listing(t, me, treasures, 0)
		assert.Equal(t, int64(2), listing.Quantity)
		assert.Equal(t, int64(-1), f.balance(t, me, treasures, 0))

		f.transfer1155(t, treasures, 0, 1, staking, me)

		assert.Equal(t, int64(2), f.collection(t, treasures).TotalListings)
		assert.Equal(t, int64(1), f.balance(t, me, treasures, 0))
	})
}

func TestHandleTransferOwners(t *testing.T) {
	f := newFixture(t)
	f.treasuresURI()

	owners := func(collection int64, tokens ...int64) {
		t.Helper()
		assert.Equal(t, collection, f.collection(t, treasures).TotalOwners, "collection owners")
		for id, want := range tokens {
			assert.Equal(t, want, f.token(t, treasures, int64(id)).TotalOwners, "token %d owners", id)
		}
	}

	f.transfer1155(t, treasures, 0, 2, zero, me)
	f.transfer1155(t, treasures, 1, 1, zero, me)
	owners(1, 1, 1)

	f.transfer1155(t, treasures, 2, 1, zero, you)
	owners(2, 1, 1, 1)

	f.transfer1155(t, treasures, 0, 1, me, friend)
	owners(3, 2, 1, 1)

	f.transfer1155(t, treasures, 0, 1, me, you)
	owners(3, 2, 1, 1)

	f.transfer1155(t, treasures, 1, 1, me, friend)
	owners(2, 2, 1, 1)

	f.transfer1155(t, treasures, 0, 1, you, friend)
	owners(2, 1, 1, 1)

	collection := f.collection(t, treasures)
	assert.Equal(t, int64(4), collection.TotalItems)
	assert.Equal(t, int64(2), f.token(t, treasures, 0).TotalItems)
	assert.Equal(t, 3, collection.TokenIDs.Len())
}

func TestHandleMarketplaceBuy(t *testing.T) {
	f := newFixture(t)
	f.treasuresURI()

	f.transfer1155(t, treasures, 0, 2, zero, me)
	assert.Equal(t, int64(1), f.collection(t, treasures).TotalOwners)

	f.list(t, treasures, 0, 2, me)
	tx := f.buy(t, treasures, 0, 1, me, you)

	collection := f.collection(t, treasures)
	assert.Equal(t, int64(2), collection.TotalOwners)
	assert.Equal(t, int64(2), f.token(t, treasures, 0).TotalOwners)
	assert.Equal(t, int64(1), collection.TotalListings)
	assert.Equal(t, int64(1), collection.TotalSales)
	assert.Equal(t, int64(1), f.balance(t, you, treasures, 0))

	listing, found := f.listing(t, me, treasures, 0)
	require.True(t, found)
	assert.Equal(t, int64(1), listing.Quantity)

	soldID := domain.SoldListingID(listing.ID, tx.Hex())
	sold, found, err := store.Get(f.ctx, f.s, soldID, domain.NewListing)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.ListingStatusSold, sold.Status)
	assert.Equal(t, domain.NormalizeAddress(you), sold.Buyer)
	assert.Equal(t, int64(1), sold.Quantity)

	f.buy(t, treasures, 0, 1, me, you)

	collection = f.collection(t, treasures)
	assert.Equal(t, int64(1), collection.TotalOwners)
	assert.Equal(t, int64(1), f.token(t, treasures, 0).TotalOwners)
	assert.Equal(t, int64(0), collection.TotalListings)
	assert.Equal(t, int64(2), collection.TotalSales)
	assert.Equal(t, int64(2), f.balance(t, you, treasures, 0))
	_, found = f.listing(t, me, treasures, 0)
	assert.False(t, found)
}

func TestHandleTransferWithdrawsListing(t *testing.T) {
	tests := []struct {
		name          string
		minted        int64
		listed        int64
		sent          int64
		expectListing int64 // 0 means removed
		expectBalance int64
	}{
		{
			name:          "free balance is spent first",
			minted:        3,
			listed:        1,
			sent:          2,
			expectListing: 1,
			expectBalance: -1,
		},
		{
			name:          "listing shrinks once the free balance is gone",
			minted:        2,
			listed:        2,
			sent:          1,
			expectListing: 1,
			expectBalance: -1,
		},
		{
			name:          "listing is removed when nothing is left",
			minted:        2,
			listed:        1,
			sent:          2,
			expectListing: 0,
			expectBalance: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.treasuresURI()

			f.transfer1155(t, treasures, 0, tt.minted, zero, me)
			f.list(t, treasures, 0, tt.listed, me)
			f.transfer1155(t, treasures, 0, tt.sent, me, friend)

			listing, found := f.listing(t, me, treasures, 0)
			if tt.expectListing == 0 {
				assert.False(t, found)
			} else {
				require.True(t, found)
				assert.Equal(t, tt.expectListing, listing.Quantity)
			}
			assert.Equal(t, tt.expectBalance, f.balance(t, me, treasures, 0))
			assert.Equal(t, tt.sent, f.balance(t, friend, treasures, 0))
			assert.Equal(t, tt.expectListing, f.collection(t, treasures).TotalListings)
		})
	}
}

func TestHandleBurn(t *testing.T) {
	f := newFixture(t)
	f.treasuresURI()

	f.transfer1155(t, treasures, 0, 2, zero, me)
	f.transfer1155(t, treasures, 0, 1, me, zero)

	token := f.token(t, treasures, 0)
	assert.Equal(t, int64(1), token.TotalItems)
	assert.Equal(t, int64(1), token.TotalOwners)
	assert.Equal(t, int64(1), f.balance(t, me, treasures, 0))

	f.transfer1155(t, treasures, 0, 1, me, zero)

	token = f.token(t, treasures, 0)
	collection := f.collection(t, treasures)
	assert.Equal(t, int64(0), token.TotalItems)
	assert.Equal(t, int64(0), token.TotalOwners)
	assert.Equal(t, int64(0), collection.TotalItems)
	assert.Equal(t, int64(0), collection.TotalOwners)
	assert.Equal(t, int64(-1), f.balance(t, me, treasures, 0))
	assert.Equal(t, int64(-1), f.balance(t, zero, treasures, 0))
}

func TestHandleMissingMetadataRetry(t *testing.T) {
	const (
		ipfsURI  = "ipfs://QmTreasures/"
		httpsURI = "https://treasure-marketplace.mypinata.cloud/ipfs/QmTreasures/"
	)

	f := newFixture(t)
	gomock.InOrder(
		f.reader.EXPECT().URI(gomock.Any(), treasures, gomock.Any(), gomock.Any()).Return("", false),
		f.reader.EXPECT().URI(gomock.Any(), treasures, gomock.Any(), gomock.Any()).Return(ipfsURI, true).Times(2),
		f.reader.EXPECT().URI(gomock.Any(), treasures, gomock.Any(), gomock.Any()).Return(httpsURI, true).AnyTimes(),
	)
	f.http.EXPECT().GetBytes(gomock.Any(), httpsURI+"0.json").Return(treasureDocument("Honeycomb"), nil)
	f.http.EXPECT().GetBytes(gomock.Any(), httpsURI+"1.json").Return(treasureDocument("Grain"), nil)
	f.http.EXPECT().GetBytes(gomock.Any(), httpsURI+"2.json").Return(treasureDocument("Bait"), nil)

	f.transfer1155(t, treasures, 0, 1, zero, me)

	collection := f.collection(t, treasures)
	assert.Equal(t, []string{"0"}, collection.MissingMetadataIDs.Items())
	assert.Empty(t, f.token(t, treasures, 0).MetadataURI)

	// an ipfs:// URI cannot be fetched, both tokens stay queued
	f.transfer1155(t, treasures, 1, 1, zero, me)

	collection = f.collection(t, treasures)
	assert.Equal(t, []string{"0", "1"}, collection.MissingMetadataIDs.Items())
	assert.Equal(t, "ipfs://QmTreasures/0.json", f.token(t, treasures, 0).MetadataURI)
	assert.Equal(t, "ipfs://QmTreasures/1.json", f.token(t, treasures, 1).MetadataURI)

	f.transfer1155(t, treasures, 2, 1, zero, me)

	collection = f.collection(t, treasures)
	assert.Equal(t, 0, collection.MissingMetadataIDs.Len())
	for id, name := range []string{"Honeycomb", "Grain", "Bait"} {
		token := f.token(t, treasures, int64(id))
		assert.Equal(t, httpsURI+fmt.Sprintf("%d.json", id), token.MetadataURI)
		assert.Equal(t, name, token.Name)
	}
}

func treasureDocument(name string) []byte {
	return []byte(fmt.Sprintf(`{"name": %q, "description": "Treasures", "image": "ipfs://QmTreasureImage"}`, name))
}

func bodiesDocument(swol int) []byte {
	return []byte(fmt.Sprintf(`{
		"name": "#0",
		"description": "Smol Bodies",
		"image": "https://gateway.pinata.cloud/ipfs/QmBodyImage/0.png",
		"attributes": [
			{"trait_type": "Background", "value": "Blue"},
			{"trait_type": "Swol Size", "value": %d}
		]
	}`, swol))
}

func TestHandleSmolBodies(t *testing.T) {
	const (
		mintedURI = "https://gateway.pinata.cloud/ipfs/QmOldBodies/0/0"
		storedURI = "https://treasure-marketplace.mypinata.cloud/ipfs/QmNewBodies/0/0"
		leveled   = "https://treasure-marketplace.mypinata.cloud/ipfs/QmNewBodies/0/2"
	)

	f := newFixture(t)
	f.http.EXPECT().GetBytes(gomock.Any(), storedURI).Return(bodiesDocument(0), nil)
	f.http.EXPECT().GetBytes(gomock.Any(), leveled).Return(bodiesDocument(2), nil)
	f.reader.EXPECT().TokenURI(gomock.Any(), smolBodies, gomock.Any(), gomock.Any()).Return(mintedURI, true)

	// Transfer mints of collections with their own mint event are ignored
	f.transfer721(t, smolBodies, 0, zero, me)
	assert.False(t, f.exists(t, domain.KindToken, domain.TokenID(smolBodies, big.NewInt(0))))

	f.handle(t, domain.CollectionMintEvent{
		EventContext: f.ec(smolBodies, me, ""),
		Event:        "SmolBodiesMint",
		To:           me,
		TokenID:      big.NewInt(0),
		TokenURI:     mintedURI,
	})

	token := f.token(t, smolBodies, 0)
	assert.Equal(t, storedURI, token.MetadataURI)
	assert.Equal(t, "Smol Bodies #0", token.Name)
	assert.True(t, token.Filters.Has(domain.Filter{Name: domain.TRAIT_SWOL_SIZE, Value: "0"}))
	assert.Equal(t, int64(1), f.collection(t, smolBodies).TotalItems)

	md, found, err := store.Get(f.ctx, f.s, token.ID, domain.NewMetadata)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ipfs://QmBodyImage/0.png", md.Image)

	platesID := domain.SeedAttributeID(smolBodies, domain.TRAIT_PLATES, big.NewInt(0))
	assert.Equal(t, domain.ZERO_TRAIT_VALUE, f.attribute(t, platesID).Value)

	f.handle(t, domain.JoinGymEvent{EventContext: f.ec(smolBodies, me, ""), TokenID: big.NewInt(0)})
	assert.True(t, f.exists(t, domain.KindExerciser, domain.ListingID(me, smolBodies, big.NewInt(0))))

	f.handle(t, domain.DropGymEvent{
		EventContext: f.ec(smolBodies, me, ""),
		TokenID:      big.NewInt(0),
		Plates:       big.NewInt(600),
		Level:        big.NewInt(2),
	})

	token = f.token(t, smolBodies, 0)
	assert.Equal(t, leveled, token.MetadataURI)
	assert.Equal(t, []string{"2"}, token.Filters.ValuesOf(domain.TRAIT_SWOL_SIZE))
	assert.Equal(t, "600", f.attribute(t, platesID).Value)
	assert.False(t, f.attribute(t, domain.AttributeID(smolBodies, domain.TRAIT_SWOL_SIZE, "0")).TokenIDs.Contains("0"))
	assert.True(t, f.attribute(t, domain.AttributeID(smolBodies, domain.TRAIT_SWOL_SIZE, "2")).TokenIDs.Contains("0"))
	assert.False(t, f.exists(t, domain.KindExerciser, domain.ListingID(me, smolBodies, big.NewInt(0))))
	assert.Equal(t, 0, f.collection(t, smolBodies).MissingMetadataIDs.Len())
}

func TestHandleCollectionProfile(t *testing.T) {
	t.Run("creator is attached", func(t *testing.T) {
		f := newFixture(t)
		f.brainsURI("ipfs://smolbrains/0")

		f.transfer721(t, smolBrains, 0, zero, me)

		collection := f.collection(t, smolBrains)
		assert.Equal(t, "Smol Brains", collection.Name)
		assert.Equal(t, "Smol Brains", collection.Creator)
		creator, found, err := store.Get(f.ctx, f.s, "Smol Brains", domain.NewCreator)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.DEFAULT_CREATOR_FEE, creator.Fee)
	})

	t.Run("superseded collection is removed", func(t *testing.T) {
		f := newFixture(t)
		f.reader.EXPECT().URI(gomock.Any(), legions, gomock.Any(), gomock.Any()).Return("ipfs://QmLegions/{id}.json", true)
		require.NoError(t, f.s.Save(f.ctx, domain.NewCollection(domain.NormalizeAddress(legionsOld))))

		f.transfer1155(t, legions, 7, 1, zero, me)

		assert.False(t, f.exists(t, domain.KindCollection, domain.NormalizeAddress(legionsOld)))
		assert.Equal(t, "ipfs://QmLegions/7.json", f.token(t, legions, 7).MetadataURI)
		assert.Equal(t, "Legions Genesis", f.collection(t, legions).Name)
	})

	t.Run("superseded collection is removed once", func(t *testing.T) {
		f := newFixture(t)
		f.reader.EXPECT().URI(gomock.Any(), legions, gomock.Any(), gomock.Any()).Return("ipfs://QmLegions/{id}.json", true).AnyTimes()
		require.NoError(t, f.s.Save(f.ctx, domain.NewCollection(domain.NormalizeAddress(legionsOld))))
		counting := &removalCounter{TxStore: f.s}
		f.s = counting

		f.transfer1155(t, legions, 7, 1, zero, me)
		f.transfer1155(t, legions, 8, 1, zero, me)
		f.transfer1155(t, legions, 7, 1, me, you)

		assert.Equal(t, 1, counting.removed[domain.NormalizeAddress(legionsOld)])
	})

	t.Run("unknown collection transfers are ignored", func(t *testing.T) {
		f := newFixture(t)
		unknown := common.HexToAddress("0x00000000000000000000000000000000000000ff")

		f.transfer721(t, unknown, 0, zero, me)

		assert.False(t, f.exists(t, domain.KindCollection, domain.NormalizeAddress(unknown)))
	})
}

func TestHandleLoggedOnly(t *testing.T) {
	tests := []struct {
		name  string
		event domain.Event
	}{
		{
			name: "TransferBatch",
			event: domain.TransferBatchEvent{
				EventContext: domain.EventContext{Address: treasures, BlockNumber: 1},
				From:         zero,
				To:           me,
				TokenIDs:     []*big.Int{big.NewInt(1), big.NewInt(2)},
				Values:       []*big.Int{big.NewInt(1), big.NewInt(1)},
			},
		},
		{
			name: "URI",
			event: domain.URIEvent{
				EventContext: domain.EventContext{Address: treasures, BlockNumber: 1},
				Value:        "ipfs://QmTreasures/1.json",
				TokenID:      big.NewInt(1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.handle(t, tt.event)
			assert.False(t, f.exists(t, domain.KindCollection, domain.NormalizeAddress(treasures)))
		})
	}
}

func TestOnBlockActivatesRarity(t *testing.T) {
	f := newFixture(t, func(s *config.NetworkSettings) {
		s.RarityActivationBlock = 100
		s.Collections[0].RarityThreshold = 2
	})
	f.brainsURI("ipfs://smolbrains/0")

	f.transfer721(t, smolBrains, 0, zero, me)
	f.transfer721(t, smolBrains, 1, zero, me)

	collection := f.collection(t, smolBrains)
	assert.False(t, collection.RarityActivated)
	assert.Equal(t, int64(0), f.token(t, smolBrains, 0).Rank)

	require.NoError(t, f.h.OnBlock(f.ctx, f.s, 99))
	assert.False(t, f.collection(t, smolBrains).RarityActivated)

	require.NoError(t, f.h.OnBlock(f.ctx, f.s, 100))
	collection = f.collection(t, smolBrains)
	assert.True(t, collection.RarityActivated)
	assert.False(t, collection.RarityPending)
	ranks := []int64{f.token(t, smolBrains, 0).Rank, f.token(t, smolBrains, 1).Rank}
	assert.ElementsMatch(t, []int64{1, 2}, ranks)
}
