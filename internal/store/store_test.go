package store

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
)

// RunStoreTests runs the shared store behavior against one implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) TxStore) {
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, initDB(t)) })
	t.Run("SaveLoadRoundTrip", func(t *testing.T) { testSaveLoadRoundTrip(t, initDB(t)) })
	t.Run("SaveOverwrites", func(t *testing.T) { testSaveOverwrites(t, initDB(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, initDB(t)) })
	t.Run("KindsAreSeparate", func(t *testing.T) { testKindsAreSeparate(t, initDB(t)) })
	t.Run("GetOrCreate", func(t *testing.T) { testGetOrCreate(t, initDB(t)) })
	t.Run("BlockCursor", func(t *testing.T) { testBlockCursor(t, initDB(t)) })
	t.Run("InTxRollback", func(t *testing.T) { testInTxRollback(t, initDB(t)) })
	t.Run("InTxCommit", func(t *testing.T) { testInTxCommit(t, initDB(t)) })
}

func testLoadMissing(t *testing.T, s TxStore) {
	ctx := context.Background()

	token, found, err := Get(ctx, s, "0xabc-0x1", domain.NewToken)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, token)

	exists, err := s.Exists(ctx, domain.KindToken, "0xabc-0x1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testSaveLoadRoundTrip(t *testing.T, s TxStore) {
	ctx := context.Background()

	collection := domain.NewCollection("0xabc")
	collection.Name = "Smol Brains"
	collection.FloorPrice = *uint256.MustFromDecimal("1500000000000000000")
	collection.TotalListings = 3
	collection.TokenIDs.Add("0xabc-0x1")
	collection.TokenIDs.Add("0xabc-0x2")
	collection.MissingMetadataIDs.Add("7")
	require.NoError(t, s.Save(ctx, collection))

	token := domain.NewToken("0xabc-0x1")
	token.Filters.Add(domain.Filter{Name: "Head Size", Value: "5"})
	token.Rarity = 12.5
	require.NoError(t, s.Save(ctx, token))

	loaded, found, err := Get(ctx, s, "0xabc", domain.NewCollection)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Smol Brains", loaded.Name)
	assert.Equal(t, "1500000000000000000", loaded.FloorPrice.Dec())
	assert.Equal(t, int64(3), loaded.TotalListings)
	assert.Equal(t, []string{"0xabc-0x1", "0xabc-0x2"}, loaded.TokenIDs.Items())
	assert.True(t, loaded.MissingMetadataIDs.Contains("7"))

	loadedToken, found, err := Get(ctx, s, "0xabc-0x1", domain.NewToken)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, loadedToken.Filters.Has(domain.Filter{Name: "Head Size", Value: "5"}))
	assert.Equal(t, 12.5, loadedToken.Rarity)
}

func testSaveOverwrites(t *testing.T, s TxStore) {
	ctx := context.Background()

	listing := domain.NewListing("0xs-0xabc-0x1")
	listing.Quantity = 2
	require.NoError(t, s.Save(ctx, listing))

	// mutations of a loaded value are invisible until saved
	loaded, _, err := Get(ctx, s, listing.ID, domain.NewListing)
	require.NoError(t, err)
	loaded.Quantity = 9

	again, _, err := Get(ctx, s, listing.ID, domain.NewListing)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Quantity)

	require.NoError(t, s.Save(ctx, loaded))
	again, _, err = Get(ctx, s, listing.ID, domain.NewListing)
	require.NoError(t, err)
	assert.Equal(t, int64(9), again.Quantity)
	assert.Equal(t, domain.ListingStatusActive, again.Status)
}

func testRemove(t *testing.T, s TxStore) {
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.NewUserToken("0xu-0xabc-0x1")))
	require.NoError(t, s.Remove(ctx, domain.KindUserToken, "0xu-0xabc-0x1"))
	require.NoError(t, s.Remove(ctx, domain.KindUserToken, "0xu-0xabc-0x1"), "removing an absent entity is a no-op")

	exists, err := s.Exists(ctx, domain.KindUserToken, "0xu-0xabc-0x1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testKindsAreSeparate(t *testing.T, s TxStore) {
	ctx := context.Background()

	id := "0xu-0xabc-0x1"
	require.NoError(t, s.Save(ctx, domain.NewStakingMarker(domain.KindStudent)(id)))

	staked, err := ExistsAny(ctx, s, domain.StakingMarkerKinds, id)
	require.NoError(t, err)
	assert.True(t, staked)

	exists, err := s.Exists(ctx, domain.KindExerciser, id)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.Exists(ctx, domain.KindListing, id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func testGetOrCreate(t *testing.T, s TxStore) {
	ctx := context.Background()

	creator, created, err := GetOrCreate(ctx, s, "SmolBrain", domain.NewCreator)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.DEFAULT_CREATOR_FEE, creator.Fee)

	creator.Fee = 5
	require.NoError(t, s.Save(ctx, creator))

	creator, created, err = GetOrCreate(ctx, s, "SmolBrain", domain.NewCreator)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 5.0, creator.Fee)
}

func testBlockCursor(t *testing.T, s TxStore) {
	ctx := context.Background()

	block, found, err := s.GetBlockCursor(ctx, "arbitrum-one")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, uint64(0), block)

	// block zero is a real cursor
	require.NoError(t, s.SetBlockCursor(ctx, "arbitrum-one", 0))
	block, found, err = s.GetBlockCursor(ctx, "arbitrum-one")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(0), block)

	require.NoError(t, s.SetBlockCursor(ctx, "arbitrum-one", 100))
	require.NoError(t, s.SetBlockCursor(ctx, "arbitrum-one", 101))

	block, found, err = s.GetBlockCursor(ctx, "arbitrum-one")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(101), block)
}

func testInTxRollback(t *testing.T, s TxStore) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx TxStore) error {
		require.NoError(t, tx.Save(ctx, domain.NewUser("0xu")))
		require.NoError(t, tx.SetBlockCursor(ctx, "arbitrum-one", 5))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.Exists(ctx, domain.KindUser, "0xu")
	require.NoError(t, err)
	assert.False(t, exists)

	_, found, err := s.GetBlockCursor(ctx, "arbitrum-one")
	require.NoError(t, err)
	assert.False(t, found)
}

func testInTxCommit(t *testing.T, s TxStore) {
	ctx := context.Background()

	err := s.InTx(ctx, func(tx TxStore) error {
		if err := tx.Save(ctx, domain.NewUser("0xu")); err != nil {
			return err
		}
		// read-your-writes inside the transaction
		exists, err := tx.Exists(ctx, domain.KindUser, "0xu")
		if err != nil {
			return err
		}
		assert.True(t, exists)
		return tx.SetBlockCursor(ctx, "arbitrum-one", 7)
	})
	require.NoError(t, err)

	exists, err := s.Exists(ctx, domain.KindUser, "0xu")
	require.NoError(t, err)
	assert.True(t, exists)
}
