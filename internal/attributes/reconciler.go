package attributes

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/metadata"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
	"github.com/feral-file/ff-marketplace-subgraph/internal/uri"
)

// Reconciler keeps Metadata, Attribute and MetadataAttribute rows, token filters and
// rarity scores consistent with the tokens' metadata documents.
//
// Methods mutate the token and collection they are given and persist every row they
// touch. Callers load those two entities once per event and pass the same pointers
// to each call so later steps see earlier changes.
type Reconciler interface {
	// IngestMetadata fetches the token's metadata document and indexes its traits.
	// It reports false when the document is unavailable or malformed so the caller can
	// queue the token for a retry.
	IngestMetadata(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection) (bool, error)

	// ReplaceExclusiveTrait sets the value of a trait the token may carry only once,
	// dropping any other value it carried before
	ReplaceExclusiveTrait(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name, value string) error

	// SeedTrait creates the token's own zero-valued trait row and its join row
	SeedTrait(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name string) error

	// SetTraitValue updates a trait row created by SeedTrait
	SetTraitValue(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name, value string) error

	// RecomputeRarity refreshes attribute percentages and rarity scores of the collection.
	// minted is the token that was just minted, or nil to request a full ranking pass.
	RecomputeRarity(ctx context.Context, s store.Store, collection *domain.Collection, minted *domain.Token) error

	// ActivateRarity runs the one-off full pass of every rarity-enabled collection
	ActivateRarity(ctx context.Context, s store.Store, blockNumber uint64) error
}

type reconciler struct {
	fetcher   uri.Fetcher
	network   *config.NetworkConfig
	chunkSize int
}

// Option configures a reconciler
type Option func(*reconciler)

// WithChunkSize bounds the number of token rows a single ranking pass persists
func WithChunkSize(n int) Option {
	return func(r *reconciler) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// NewReconciler creates an attribute reconciler
func NewReconciler(fetcher uri.Fetcher, network *config.NetworkConfig, opts ...Option) Reconciler {
	r := &reconciler{
		fetcher:   fetcher,
		network:   network,
		chunkSize: domain.RARITY_CHUNK_SIZE,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *reconciler) IngestMetadata(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection) (bool, error) {
	if !uri.IsFetchable(token.MetadataURI) {
		return false, nil
	}

	data, ok := r.fetcher.Fetch(ctx, token.MetadataURI)
	if !ok {
		logger.WarnCtx(ctx, "metadata unavailable",
			logger.Token(token.ID),
			zap.String("uri", token.MetadataURI))
		return false, nil
	}

	doc, err := metadata.Decode(data)
	if err != nil {
		logger.WarnCtx(ctx, "metadata malformed",
			logger.Token(token.ID),
			zap.String("uri", token.MetadataURI),
			zap.Error(err))
		return false, nil
	}

	md, _, err := store.GetOrCreate(ctx, s, token.ID, domain.NewMetadata)
	if err != nil {
		return false, err
	}
	md.Description = doc.Description
	md.Image = uri.ToIPFS(doc.Image)
	md.Name = doc.Name
	md.Token = token.ID
	token.Metadata = md.ID

	if !doc.HasAttributes {
		if err := s.Save(ctx, md); err != nil {
			return false, err
		}
		return true, s.Save(ctx, token)
	}

	for _, trait := range doc.Traits {
		if err := r.applyTrait(ctx, s, token, collection, trait.Name, trait.Value); err != nil {
			return false, err
		}
	}

	if err := store.SaveAll(ctx, s, md, token, collection); err != nil {
		return false, err
	}
	return true, nil
}

func (r *reconciler) ReplaceExclusiveTrait(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name, value string) error {
	if err := r.applyTrait(ctx, s, token, collection, name, value); err != nil {
		return err
	}
	return store.SaveAll(ctx, s, token, collection)
}

// applyTrait indexes one (name, value) pair of the token. Token and collection are
// mutated but not saved.
func (r *reconciler) applyTrait(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name, value string) error {
	address := common.HexToAddress(collection.Address)
	attribute, _, err := store.GetOrCreate(ctx, s, domain.AttributeID(address, name, value), domain.NewAttribute)
	if err != nil {
		return err
	}
	attribute.Name = name
	attribute.Value = value
	attribute.Collection = collection.ID

	collection.AttributeIDs.Add(attribute.ID)
	attribute.TokenIDs.Add(token.TokenID)
	attribute.Percentage = percentage(attribute.TokenIDs.Len(), collection.TokenIDs.Len())

	if domain.ExclusiveTraits[name] && value != domain.ZERO_TRAIT_VALUE {
		if err := r.dropOtherValues(ctx, s, token, collection, name, value); err != nil {
			return err
		}
	}

	join, created, err := store.GetOrCreate(ctx, s, domain.MetadataAttributeID(token.ID, attribute.ID), domain.NewMetadataAttribute)
	if err != nil {
		return err
	}
	if created {
		join.Metadata = token.ID
		join.Attribute = attribute.ID
		if err := s.Save(ctx, join); err != nil {
			return err
		}
	}

	token.Filters.Add(domain.Filter{Name: name, Value: value})
	return s.Save(ctx, attribute)
}

// dropOtherValues removes every value of trait name other than keep from the token
func (r *reconciler) dropOtherValues(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name, keep string) error {
	address := common.HexToAddress(collection.Address)
	for _, previous := range token.Filters.ValuesOf(name) {
		if previous == keep {
			continue
		}
		token.Filters.Remove(domain.Filter{Name: name, Value: previous})

		attributeID := domain.AttributeID(address, name, previous)
		attribute, found, err := store.Get(ctx, s, attributeID, domain.NewAttribute)
		if err != nil {
			return err
		}
		if !found {
			logger.WarnCtx(ctx, "previous attribute missing",
				logger.Token(token.ID),
				logger.Trait(name, previous))
			continue
		}

		attribute.TokenIDs.Remove(token.TokenID)
		attribute.Percentage = percentage(attribute.TokenIDs.Len(), collection.TokenIDs.Len())
		if err := s.Save(ctx, attribute); err != nil {
			return err
		}
		if err := s.Remove(ctx, domain.KindMetadataAttribute, domain.MetadataAttributeID(token.ID, attributeID)); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciler) SeedTrait(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name string) error {
	address := common.HexToAddress(collection.Address)
	attribute := domain.NewAttribute(domain.SeedAttributeID(address, name, token.Number()))
	attribute.Name = name
	attribute.Value = domain.ZERO_TRAIT_VALUE
	attribute.Collection = collection.ID

	join := domain.NewMetadataAttribute(domain.MetadataAttributeID(token.ID, attribute.ID))
	join.Metadata = token.ID
	join.Attribute = attribute.ID

	return store.SaveAll(ctx, s, attribute, join)
}

func (r *reconciler) SetTraitValue(ctx context.Context, s store.Store, token *domain.Token, collection *domain.Collection, name, value string) error {
	address := common.HexToAddress(collection.Address)
	attribute, created, err := store.GetOrCreate(ctx, s, domain.SeedAttributeID(address, name, token.Number()), domain.NewAttribute)
	if err != nil {
		return err
	}
	if created {
		// minted before seeding existed
		attribute.Name = name
		attribute.Collection = collection.ID
		join := domain.NewMetadataAttribute(domain.MetadataAttributeID(token.ID, attribute.ID))
		join.Metadata = token.ID
		join.Attribute = attribute.ID
		if err := s.Save(ctx, join); err != nil {
			return err
		}
	}
	attribute.Value = value
	return s.Save(ctx, attribute)
}

func (r *reconciler) RecomputeRarity(ctx context.Context, s store.Store, collection *domain.Collection, minted *domain.Token) error {
	profile, ok := r.network.Profile(common.HexToAddress(collection.Address))
	if !ok || !profile.RarityEnabled() {
		return nil
	}
	if r.network.RarityActivationBlock() > 0 && !collection.RarityActivated {
		return nil
	}

	total := collection.TokenIDs.Len()
	if int64(total) < profile.RarityThreshold {
		return nil
	}

	attributes, err := r.refreshPercentages(ctx, s, collection)
	if err != nil {
		return err
	}

	justCrossed := int64(total) == profile.RarityThreshold
	if minted != nil && !collection.RarityPending && !justCrossed {
		minted.Rarity = score(minted, attributes)
		return s.Save(ctx, minted)
	}

	return r.rank(ctx, s, collection, minted, attributes)
}

// refreshPercentages recomputes the share of every attribute of the collection and
// returns the attributes by id
func (r *reconciler) refreshPercentages(ctx context.Context, s store.Store, collection *domain.Collection) (map[string]*domain.Attribute, error) {
	total := collection.TokenIDs.Len()
	attributes := make(map[string]*domain.Attribute, collection.AttributeIDs.Len())
	for _, id := range collection.AttributeIDs.Items() {
		attribute, found, err := store.Get(ctx, s, id, domain.NewAttribute)
		if err != nil {
			return nil, err
		}
		if !found {
			logger.WarnCtx(ctx, "collection attribute missing",
				logger.Collection(collection.ID),
				zap.String("attribute", id))
			continue
		}
		attributes[id] = attribute

		p := percentage(attribute.TokenIDs.Len(), total)
		if p == attribute.Percentage {
			continue
		}
		attribute.Percentage = p
		if err := s.Save(ctx, attribute); err != nil {
			return nil, err
		}
	}
	return attributes, nil
}

// rank scores and ranks every token of the collection. At most chunkSize changed
// tokens are persisted; the remainder leaves the collection pending for the next mint.
func (r *reconciler) rank(ctx context.Context, s store.Store, collection *domain.Collection, minted *domain.Token, attributes map[string]*domain.Attribute) error {
	tokens := make([]*domain.Token, 0, collection.TokenIDs.Len())
	for _, id := range collection.TokenIDs.Items() {
		if minted != nil && minted.ID == id {
			tokens = append(tokens, minted)
			continue
		}
		token, found, err := store.Get(ctx, s, id, domain.NewToken)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		tokens = append(tokens, token)
	}

	scores := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		scores[token.ID] = score(token, attributes)
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return scores[tokens[i].ID] > scores[tokens[j].ID]
	})

	remaining := r.chunkSize
	pending := false
	for i, token := range tokens {
		rank := int64(i + 1)
		rarity := scores[token.ID]
		if token.Rarity == rarity && token.Rank == rank {
			continue
		}
		if remaining == 0 {
			pending = true
			break
		}
		token.Rarity = rarity
		token.Rank = rank
		if err := s.Save(ctx, token); err != nil {
			return err
		}
		remaining--
	}

	collection.RarityPending = pending
	logger.DebugCtx(ctx, "rarity ranked",
		logger.Collection(collection.ID),
		zap.Int("tokens", len(tokens)),
		zap.Int("saved", r.chunkSize-remaining),
		zap.Bool("pending", pending))
	return s.Save(ctx, collection)
}

func (r *reconciler) ActivateRarity(ctx context.Context, s store.Store, blockNumber uint64) error {
	activation := r.network.RarityActivationBlock()
	if activation == 0 || blockNumber < activation {
		return nil
	}

	for _, profile := range r.network.Profiles() {
		if !profile.RarityEnabled() {
			continue
		}
		collection, found, err := store.Get(ctx, s, domain.NormalizeAddress(profile.Address), domain.NewCollection)
		if err != nil {
			return err
		}
		if !found || collection.RarityActivated {
			continue
		}

		collection.RarityActivated = true
		logger.InfoCtx(ctx, "activating rarity",
			logger.Collection(collection.ID),
			logger.Block(blockNumber))
		if int64(collection.TokenIDs.Len()) < profile.RarityThreshold {
			if err := s.Save(ctx, collection); err != nil {
				return err
			}
			continue
		}
		if err := r.RecomputeRarity(ctx, s, collection, nil); err != nil {
			return fmt.Errorf("failed to activate rarity of %s: %w", collection.ID, err)
		}
	}
	return nil
}

// score is the sum of inverse attribute shares over the token's filters
func score(token *domain.Token, attributes map[string]*domain.Attribute) float64 {
	address := common.HexToAddress(token.Collection)
	var total float64
	for _, filter := range token.Filters.All() {
		if domain.RarityExcludedTraits[filter.Name] {
			continue
		}
		attribute, ok := attributes[domain.AttributeID(address, filter.Name, filter.Value)]
		if !ok || attribute.Percentage <= 0 {
			continue
		}
		total += 1 / attribute.Percentage
	}
	return total
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}
