package uri

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/adapter"
	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
)

// Fetcher defines the interface for fetching token metadata documents
//
//go:generate mockgen -source=fetcher.go -destination=../mocks/uri_fetcher.go -package=mocks -mock_names=Fetcher=MockURIFetcher
type Fetcher interface {
	// Canonical applies the network's gateway rewrites and legacy hash remaps to a URI
	Canonical(uri string) string

	// Fetch returns the content behind uri, or false when it is unavailable.
	// Failures are logged and never returned; callers queue the token for a later retry.
	Fetch(ctx context.Context, uri string) ([]byte, bool)
}

type fetcher struct {
	httpClient adapter.HTTPClient
	base64     adapter.Base64
	gateway    string
	rewrites   []config.Rewrite
}

// NewFetcher creates a fetcher that reads IPFS content through the network's pinned gateway
func NewFetcher(httpClient adapter.HTTPClient, base64 adapter.Base64, network *config.NetworkConfig) Fetcher {
	// gateway hosts first, content hashes second
	rewrites := append(network.GatewayRewrites(), network.LegacyHashes()...)
	return &fetcher{
		httpClient: httpClient,
		base64:     base64,
		gateway:    network.IPFSGateway(),
		rewrites:   rewrites,
	}
}

func (f *fetcher) Canonical(uri string) string {
	for _, r := range f.rewrites {
		if r.From == "" {
			continue
		}
		uri = strings.ReplaceAll(uri, r.From, r.To)
	}
	return uri
}

func (f *fetcher) Fetch(ctx context.Context, uri string) ([]byte, bool) {
	if strings.HasPrefix(uri, dataScheme) {
		data, err := parseDataURI(f.base64, uri)
		if err != nil {
			logger.WarnCtx(ctx, "failed to parse data URI", zap.Error(err))
			return nil, false
		}
		return data, true
	}

	target := f.resolve(f.Canonical(uri))
	if target == "" {
		logger.WarnCtx(ctx, "unsupported metadata URI", zap.String("uri", uri))
		return nil, false
	}

	data, err := f.httpClient.GetBytes(ctx, target)
	if err != nil {
		logger.WarnCtx(ctx, "failed to fetch metadata", zap.Error(err), zap.String("url", target))
		return nil, false
	}
	if len(data) == 0 {
		logger.InfoCtx(ctx, "empty metadata response", zap.String("url", target))
		return nil, false
	}

	return data, true
}

// resolve maps a canonical URI to the URL actually requested.
// IPFS content is always read through the pinned gateway.
func (f *fetcher) resolve(uri string) string {
	if path, ok := ContentPath(uri); ok {
		return GatewayURL(f.gateway, path)
	}
	if strings.HasPrefix(uri, "https://") || strings.HasPrefix(uri, "http://") {
		return uri
	}
	return ""
}
