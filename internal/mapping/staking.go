package mapping

import (
	"context"
	"math/big"
	"strconv"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/metadata"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
)

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.PRICE_DECIMALS), nil)

// loadProgram resolves the token of a school or gym event. The user is the sender of
// the enclosing transaction.
func (h *handlers) loadProgram(ctx context.Context, s store.Store, collectionName string, tokenID *big.Int) (*target, bool, error) {
	profile, ok := h.network.ProfileByName(collectionName)
	if !ok {
		logger.WarnCtx(ctx, "staking program collection not configured", zap.String("name", collectionName))
		return nil, false, nil
	}
	t, err := h.load(ctx, s, profile.Address, tokenID)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (h *handlers) handleJoin(ctx context.Context, s store.Store, ec domain.EventContext, collectionName string, program domain.Kind, tokenID *big.Int) error {
	t, ok, err := h.loadProgram(ctx, s, collectionName, tokenID)
	if err != nil || !ok {
		return err
	}

	marker := domain.NewStakingMarker(program)(h.listingID(t, ec.TxFrom))
	if err := s.Save(ctx, marker); err != nil {
		return err
	}
	if err := h.listings.Stake(ctx, s, ec.TxFrom, t.token, t.collection, 1); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

func (h *handlers) handleDropSchool(ctx context.Context, s store.Store, event domain.DropSchoolEvent) error {
	t, ok, err := h.loadProgram(ctx, s, config.CollectionSmolBrains, event.TokenID)
	if err != nil || !ok {
		return err
	}

	if err := h.leave(ctx, s, event.EventContext, t, domain.KindStudent); err != nil {
		return err
	}

	iq, ok := h.reader.Brainz(ctx, t.address(), event.TokenID, event.BlockNumber)
	if !ok {
		logger.WarnCtx(ctx, "brainz unavailable", logger.Token(t.token.ID))
		return h.save(ctx, s, t)
	}

	iqValue := new(big.Int).Quo(iq, weiPerUnit)
	if err := h.attributes.SetTraitValue(ctx, s, t.token, t.collection, domain.TRAIT_IQ, iqValue.String()); err != nil {
		return err
	}

	if err := h.applyLevel(ctx, s, event.EventContext, t, domain.TRAIT_HEAD_SIZE, h.headSize(iq)); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

func (h *handlers) handleDropGym(ctx context.Context, s store.Store, event domain.DropGymEvent) error {
	t, ok, err := h.loadProgram(ctx, s, config.CollectionSmolBodies, event.TokenID)
	if err != nil || !ok {
		return err
	}

	if err := h.leave(ctx, s, event.EventContext, t, domain.KindExerciser); err != nil {
		return err
	}

	if err := h.attributes.SetTraitValue(ctx, s, t.token, t.collection, domain.TRAIT_PLATES, event.Plates.String()); err != nil {
		return err
	}

	level := uint64(domain.Int64(event.Level))
	if err := h.applyLevel(ctx, s, event.EventContext, t, domain.TRAIT_SWOL_SIZE, level); err != nil {
		return err
	}
	return h.save(ctx, s, t)
}

// leave removes the program marker and reveals the token
func (h *handlers) leave(ctx context.Context, s store.Store, ec domain.EventContext, t *target, program domain.Kind) error {
	if err := s.Remove(ctx, program, h.listingID(t, ec.TxFrom)); err != nil {
		return err
	}
	return h.listings.Unstake(ctx, s, ec.TxFrom, t.token, t.collection, 1, ec.BlockNumber)
}

// headSize buckets an IQ into a Head Size level
func (h *handlers) headSize(iq *big.Int) uint64 {
	if iq.Sign() <= 0 {
		return 0
	}
	scaling := new(big.Int).Mul(new(big.Int).SetUint64(h.network.HeadSizeScaling()), weiPerUnit)
	level := new(big.Int).Quo(iq, scaling)
	if !level.IsUint64() || level.Uint64() > h.network.HeadSizeMax() {
		return h.network.HeadSizeMax()
	}
	return level.Uint64()
}

// applyLevel moves a dynamic trait to level. The level is encoded in the last character of
// the token's metadata URI; a live URI that advertises a different level wins over the
// local computation.
func (h *handlers) applyLevel(ctx context.Context, s store.Store, ec domain.EventContext, t *target, trait string, level uint64) error {
	stored := t.token.MetadataURI
	if stored == "" {
		logger.WarnCtx(ctx, "no metadata URI to level", logger.Token(t.token.ID))
		return nil
	}
	if current, ok := metadata.Level(stored); ok && current == level {
		return nil
	}

	if raw, ok := h.readURI(ctx, ec, t, t.token.Number()); ok {
		live := h.fetcher.Canonical(metadata.TokenMetadataURI(t.collection.Standard, raw, t.token.Number()))
		if live != stored {
			if liveLevel, ok := metadata.Level(live); !ok || liveLevel != level {
				logger.WarnCtx(ctx, "level mismatch",
					logger.Token(t.token.ID),
					zap.String("trait", trait),
					zap.Uint64("computed", level),
					zap.String("live", live))
				return nil
			}
		}
	}

	value := strconv.FormatUint(level, 10)
	t.token.MetadataURI = metadata.WithLevel(stored, level)
	logger.InfoCtx(ctx, "trait level changed",
		logger.Token(t.token.ID),
		logger.Trait(trait, value),
		zap.String("uri", t.token.MetadataURI))

	if err := h.attributes.ReplaceExclusiveTrait(ctx, s, t.token, t.collection, trait, value); err != nil {
		return err
	}
	if _, err := h.attributes.IngestMetadata(ctx, s, t.token, t.collection); err != nil {
		return err
	}

	attributeID := domain.AttributeID(t.address(), trait, value)
	exists, err := s.Exists(ctx, domain.KindMetadataAttribute, domain.MetadataAttributeID(t.token.ID, attributeID))
	if err != nil {
		return err
	}
	if !exists {
		logger.WarnCtx(ctx, "level not reflected in metadata", logger.Token(t.token.ID), logger.Trait(trait, value))
		t.collection.MissingMetadataIDs.Add(t.token.TokenID)
	}
	return nil
}
