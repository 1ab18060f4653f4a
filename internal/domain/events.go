package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventContext is the on-chain context every decoded event carries
type EventContext struct {
	Address        common.Address
	BlockNumber    uint64
	BlockTimestamp uint64
	TxHash         common.Hash
	TxFrom         common.Address
	// TxSelector is the 4-byte call selector of the enclosing transaction, lowercase 0x-hex
	TxSelector string
	LogIndex   uint
}

// Context returns the event context
func (c EventContext) Context() EventContext {
	return c
}

// Event is a decoded chain event delivered to the mapping handlers
type Event interface {
	Context() EventContext
	Name() string
}

// TransferEvent is an ERC-721 Transfer
type TransferEvent struct {
	EventContext
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

func (TransferEvent) Name() string { return "Transfer" }

// TransferSingleEvent is an ERC-1155 TransferSingle
type TransferSingleEvent struct {
	EventContext
	Operator common.Address
	From     common.Address
	To       common.Address
	TokenID  *big.Int
	Value    *big.Int
}

func (TransferSingleEvent) Name() string { return "TransferSingle" }

// TransferBatchEvent is an ERC-1155 TransferBatch
type TransferBatchEvent struct {
	EventContext
	Operator common.Address
	From     common.Address
	To       common.Address
	TokenIDs []*big.Int
	Values   []*big.Int
}

func (TransferBatchEvent) Name() string { return "TransferBatch" }

// URIEvent is an ERC-1155 URI update
type URIEvent struct {
	EventContext
	Value   string
	TokenID *big.Int
}

func (URIEvent) Name() string { return "URI" }

// ItemListedEvent is emitted by the marketplace when a seller lists units of a token
type ItemListedEvent struct {
	EventContext
	Seller         common.Address
	NFTAddress     common.Address
	TokenID        *big.Int
	Quantity       *big.Int
	PricePerItem   *big.Int
	ExpirationTime *big.Int
}

func (ItemListedEvent) Name() string { return "ItemListed" }

// ItemUpdatedEvent is emitted when a seller changes an existing listing
type ItemUpdatedEvent struct {
	EventContext
	Seller         common.Address
	NFTAddress     common.Address
	TokenID        *big.Int
	Quantity       *big.Int
	PricePerItem   *big.Int
	ExpirationTime *big.Int
}

func (ItemUpdatedEvent) Name() string { return "ItemUpdated" }

// ItemCanceledEvent is emitted when a seller withdraws a listing
type ItemCanceledEvent struct {
	EventContext
	Seller     common.Address
	NFTAddress common.Address
	TokenID    *big.Int
}

func (ItemCanceledEvent) Name() string { return "ItemCanceled" }

// ItemSoldEvent is emitted when a buyer fills a listing, fully or partially
type ItemSoldEvent struct {
	EventContext
	Seller       common.Address
	Buyer        common.Address
	NFTAddress   common.Address
	TokenID      *big.Int
	Quantity     *big.Int
	PricePerItem *big.Int
}

func (ItemSoldEvent) Name() string { return "ItemSold" }

// JoinSchoolEvent is emitted when a Smol Brain is enrolled in school
type JoinSchoolEvent struct {
	EventContext
	TokenID *big.Int
}

func (JoinSchoolEvent) Name() string { return "JoinSchool" }

// DropSchoolEvent is emitted when a Smol Brain leaves school
type DropSchoolEvent struct {
	EventContext
	TokenID *big.Int
}

func (DropSchoolEvent) Name() string { return "DropSchool" }

// JoinGymEvent is emitted when a Smol Body enters the gym
type JoinGymEvent struct {
	EventContext
	TokenID *big.Int
}

func (JoinGymEvent) Name() string { return "JoinGym" }

// DropGymEvent is emitted when a Smol Body leaves the gym with its accumulated plates
type DropGymEvent struct {
	EventContext
	TokenID *big.Int
	Plates  *big.Int
	Level   *big.Int
}

func (DropGymEvent) Name() string { return "DropGym" }

// CollectionMintEvent is a collection-specific mint carrying the initial token URI
// (SmolBodiesMint, SmolCarMint)
type CollectionMintEvent struct {
	EventContext
	Event    string
	To       common.Address
	TokenID  *big.Int
	TokenURI string
}

func (e CollectionMintEvent) Name() string { return e.Event }
