package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// Creator defaults
	DEFAULT_CREATOR_FEE = 2.5

	// Trait names with special handling
	TRAIT_IQ         = "IQ"
	TRAIT_HEAD_SIZE  = "Head Size"
	TRAIT_SWOL_SIZE  = "Swol Size"
	TRAIT_PLATES     = "Plates"
	ZERO_TRAIT_VALUE = "0"

	// RARITY_CHUNK_SIZE bounds the number of token rows a single rarity pass persists
	RARITY_CHUNK_SIZE = 2000

	// Price formatting
	PRICE_DECIMALS = 18
)

// ExclusiveTraits are traits a token can carry at most one value of
var ExclusiveTraits = map[string]bool{
	TRAIT_HEAD_SIZE: true,
	TRAIT_SWOL_SIZE: true,
}

// RarityExcludedTraits do not contribute to the rarity score
var RarityExcludedTraits = map[string]bool{
	TRAIT_IQ:        true,
	TRAIT_HEAD_SIZE: true,
}
