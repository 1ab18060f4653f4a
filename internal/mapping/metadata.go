package mapping

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/metadata"
	"github.com/feral-file/ff-marketplace-subgraph/internal/names"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
	"github.com/feral-file/ff-marketplace-subgraph/internal/uri"
)

// placeholder metadata of Smol Brains tokens whose URI points at the unrevealed collection
const (
	placeholderMarker      = "smolbrains"
	placeholderDescription = "Smol Brains"
	placeholderImage       = "/img/smolbrains.png"
)

// readURI calls tokenURI or uri depending on the collection standard
func (h *handlers) readURI(ctx context.Context, ec domain.EventContext, t *target, tokenID *big.Int) (string, bool) {
	if t.collection.Standard == domain.StandardERC1155 {
		return h.reader.URI(ctx, t.address(), tokenID, ec.BlockNumber)
	}
	return h.reader.TokenURI(ctx, t.address(), tokenID, ec.BlockNumber)
}

// resolveMetadata sets the token's metadata URI and ingests its document. Tokens whose
// metadata is unavailable are queued for a retry.
func (h *handlers) resolveMetadata(ctx context.Context, s store.Store, ec domain.EventContext, t *target, raw string, hasURI bool) error {
	t.attempted = true
	if !hasURI {
		raw, hasURI = h.readURI(ctx, ec, t, t.token.Number())
	}
	if !hasURI {
		logger.InfoCtx(ctx, "token URI unavailable", logger.Token(t.token.ID))
		t.collection.MissingMetadataIDs.Add(t.token.TokenID)
		h.applyName(ctx, s, t, t.token)
		return nil
	}

	resolved, err := h.ingest(ctx, s, t, t.token, raw)
	if err != nil {
		return err
	}
	if resolved {
		t.collection.MissingMetadataIDs.Remove(t.token.TokenID)
	} else {
		t.collection.MissingMetadataIDs.Add(t.token.TokenID)
	}
	return nil
}

// ingest stores the derived metadata URI of token and indexes its document.
// It reports whether the token now has metadata.
func (h *handlers) ingest(ctx context.Context, s store.Store, t *target, token *domain.Token, raw string) (bool, error) {
	derived := metadata.TokenMetadataURI(t.collection.Standard, raw, token.Number())
	token.MetadataURI = h.fetcher.Canonical(derived)

	var resolved bool
	if t.profile.PlaceholderMetadata && strings.Contains(raw, placeholderMarker) {
		md, _, err := store.GetOrCreate(ctx, s, token.ID, domain.NewMetadata)
		if err != nil {
			return false, err
		}
		md.Description = placeholderDescription
		md.Image = placeholderImage
		md.Name = fmt.Sprintf("%s #%s", placeholderDescription, token.TokenID)
		if err := s.Save(ctx, md); err != nil {
			return false, err
		}
		token.Metadata = md.ID
		resolved = true
	} else if !uri.IsFetchable(token.MetadataURI) {
		// stays queued until the contract reports a fetchable URI
		logger.DebugCtx(ctx, "metadata URI not fetchable", logger.Token(token.ID), zap.String("uri", token.MetadataURI))
		resolved = false
	} else {
		ok, err := h.attributes.IngestMetadata(ctx, s, token, t.collection)
		if err != nil {
			return false, err
		}
		resolved = ok
	}

	h.applyName(ctx, s, t, token)
	return resolved, nil
}

// applyName derives the display name of a token according to its collection's name rule
func (h *handlers) applyName(ctx context.Context, s store.Store, t *target, token *domain.Token) {
	fallback := fmt.Sprintf("%s #%s", t.collection.Name, token.TokenID)

	md, found, err := store.Get(ctx, s, token.ID, domain.NewMetadata)
	if err != nil {
		logger.WarnCtx(ctx, "failed to load metadata for name", logger.Token(token.ID), zap.Error(err))
		found = false
	}

	switch t.profile.NameRule {
	case config.NameRuleDescription:
		if found {
			token.Name = fmt.Sprintf("%s %s", md.Description, md.Name)
			return
		}
	case config.NameRuleMetadata:
		if found && md.Name != "" {
			token.Name = md.Name
			return
		}
	default:
		if found && md.Name != "" {
			token.Name = md.Name
			return
		}
		if name, ok := names.Lookup(token.Number()); ok {
			token.Name = name
			return
		}
	}
	token.Name = fallback
}

// retryMissingMetadata tries again every token of the collection whose metadata was unavailable
func (h *handlers) retryMissingMetadata(ctx context.Context, s store.Store, ec domain.EventContext, t *target) error {
	for _, id := range t.collection.MissingMetadataIDs.Items() {
		if id == t.token.TokenID && t.attempted {
			continue
		}
		number, ok := tokenNumber(id)
		if !ok {
			t.collection.MissingMetadataIDs.Remove(id)
			continue
		}

		raw, ok := h.readURI(ctx, ec, t, number)
		if !ok {
			continue
		}

		token := t.token
		if token.TokenID != id {
			loaded, _, err := store.GetOrCreate(ctx, s, domain.TokenID(t.address(), number), domain.NewToken)
			if err != nil {
				return err
			}
			loaded.TokenID = id
			loaded.Collection = t.collection.ID
			token = loaded
		}

		resolved, err := h.ingest(ctx, s, t, token, raw)
		if err != nil {
			return err
		}
		if resolved {
			logger.InfoCtx(ctx, "recovered missing metadata", logger.Token(token.ID))
			t.collection.MissingMetadataIDs.Remove(id)
		}
		if token != t.token {
			if err := s.Save(ctx, token); err != nil {
				return err
			}
		}
	}
	return nil
}
