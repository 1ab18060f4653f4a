package uri

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/feral-file/ff-marketplace-subgraph/internal/adapter"
)

const (
	ipfsScheme = "ipfs://"
	ipfsPath   = "/ipfs/"
	dataScheme = "data:"
	jsonData   = dataScheme + "application/json"
)

// ContentPath extracts the IPFS content path (hash plus optional file path) from an
// ipfs:// URI or from any HTTP(S) gateway URL carrying /ipfs/
func ContentPath(uri string) (string, bool) {
	if after, ok := strings.CutPrefix(uri, ipfsScheme); ok {
		return strings.TrimPrefix(after, "ipfs/"), after != ""
	}
	if !strings.HasPrefix(uri, "https://") && !strings.HasPrefix(uri, "http://") {
		return "", false
	}
	_, after, ok := strings.Cut(uri, ipfsPath)
	if !ok || after == "" {
		return "", false
	}
	return after, true
}

// ToIPFS rewrites a gateway-hosted URL to its canonical ipfs:// form.
// Other URIs are returned unchanged.
func ToIPFS(uri string) string {
	if strings.HasPrefix(uri, ipfsScheme) {
		return uri
	}
	if path, ok := ContentPath(uri); ok {
		return ipfsScheme + path
	}
	return uri
}

// GatewayURL returns the URL of an IPFS content path on gateway host
func GatewayURL(gateway, path string) string {
	return fmt.Sprintf("https://%s%s%s", gateway, ipfsPath, path)
}

// IsFetchable reports whether a metadata URI points at fetchable content:
// an https URL or an inline JSON document
func IsFetchable(uri string) bool {
	return strings.HasPrefix(uri, "https://") || strings.HasPrefix(uri, jsonData)
}

// parseDataURI decodes the payload of a data URI.
// data:application/json;base64,<encoded data> or data:application/json,<json data>
func parseDataURI(b64 adapter.Base64, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, dataScheme) {
		return nil, fmt.Errorf("invalid data URI")
	}

	dataType, data, ok := strings.Cut(uri[len(dataScheme):], ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI format")
	}

	if strings.HasSuffix(dataType, ";base64") {
		decoded, err := b64.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return decoded, nil
	}

	unescaped, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unescape data: %w", err)
	}
	return []byte(unescaped), nil
}
