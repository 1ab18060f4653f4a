package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress returns the lowercase 0x-prefixed hex form of an address
func NormalizeAddress(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// TokenIDHex returns the minimal 0x-prefixed hex form of a token id
func TokenIDHex(tokenID *big.Int) string {
	if tokenID == nil {
		return "0x0"
	}
	return "0x" + tokenID.Text(16)
}

// TokenID returns the Token entity id for (collection, tokenId)
func TokenID(collection common.Address, tokenID *big.Int) string {
	return fmt.Sprintf("%s-%s", NormalizeAddress(collection), TokenIDHex(tokenID))
}

// ListingID returns the Listing / UserToken id for (user, collection, tokenId)
func ListingID(user common.Address, collection common.Address, tokenID *big.Int) string {
	return fmt.Sprintf("%s-%s-%s", NormalizeAddress(user), NormalizeAddress(collection), TokenIDHex(tokenID))
}

// AttributeID returns the Attribute entity id. Name and value are lowercased so lookups are case-insensitive.
func AttributeID(collection common.Address, name, value string) string {
	return fmt.Sprintf("%s-%s-%s", NormalizeAddress(collection), strings.ToLower(name), strings.ToLower(value))
}

// MetadataAttributeID returns the join row id for (metadata, attribute)
func MetadataAttributeID(metadataID, attributeID string) string {
	return fmt.Sprintf("%s-%s", metadataID, attributeID)
}

// SoldListingID returns the archival id of a sale of listingID in the given transaction
func SoldListingID(listingID string, txRef string) string {
	return fmt.Sprintf("%s-%s", listingID, txRef)
}

// CollectionOwnerID returns the holder row id for (collection, user)
func CollectionOwnerID(collection common.Address, user common.Address) string {
	return fmt.Sprintf("%s-%s", NormalizeAddress(collection), NormalizeAddress(user))
}

// IsZeroAddress reports whether address is the mint/burn address
func IsZeroAddress(address common.Address) bool {
	return address == (common.Address{})
}

// SeedAttributeID returns the id of a per-token trait seeded at mint (IQ, Plates)
func SeedAttributeID(collection common.Address, name string, tokenID *big.Int) string {
	return fmt.Sprintf("%s-%s-%s", NormalizeAddress(collection), strings.ToLower(name), TokenIDHex(tokenID))
}
