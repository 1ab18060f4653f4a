package metadata

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
)

// TokenMetadataURI derives a token's metadata URI from the value its contract returns.
// ERC-721 base URIs ending in "/" and ERC-1155 URIs not ending in ".json" get "{tokenId}.json"
// appended; the ERC-1155 {id} placeholder is substituted with the token number.
func TokenMetadataURI(standard domain.Standard, raw string, tokenID *big.Int) string {
	if raw == "" {
		return ""
	}

	number := tokenID.String()
	switch standard {
	case domain.StandardERC1155:
		raw = strings.ReplaceAll(raw, "{id}", number)
		if !strings.HasSuffix(raw, ".json") {
			raw += number + ".json"
		}
	default:
		if strings.HasSuffix(raw, "/") {
			raw += number + ".json"
		}
	}
	return raw
}

// Level returns the numeric level encoded in the last character of a dynamic-trait URI
// (.../{tokenId}/{level})
func Level(uri string) (uint64, bool) {
	if uri == "" {
		return 0, false
	}
	level, err := strconv.ParseUint(uri[len(uri)-1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return level, true
}

// WithLevel replaces the level character at the end of a dynamic-trait URI
func WithLevel(uri string, level uint64) string {
	if uri == "" {
		return uri
	}
	return uri[:len(uri)-1] + strconv.FormatUint(level, 10)
}
