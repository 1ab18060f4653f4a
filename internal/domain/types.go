package domain

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// Kind names an entity table
type Kind string

const (
	KindCollection        Kind = "Collection"
	KindToken             Kind = "Token"
	KindMetadata          Kind = "Metadata"
	KindAttribute         Kind = "Attribute"
	KindMetadataAttribute Kind = "MetadataAttribute"
	KindListing           Kind = "Listing"
	KindUserToken         Kind = "UserToken"
	KindUser              Kind = "User"
	KindCreator           Kind = "Creator"
	KindStudent           Kind = "Student"
	KindExerciser         Kind = "Exerciser"
	KindStaker            Kind = "Staker"
	KindTokenOwner        Kind = "TokenOwner"
	KindCollectionOwner   Kind = "CollectionOwner"
)

// StakingMarkerKinds lists every kind whose presence marks a listing id as staked
var StakingMarkerKinds = []Kind{KindStudent, KindExerciser, KindStaker}

// Entity is a row of the entity graph
type Entity interface {
	Kind() Kind
	EntityID() string
}

// Standard is the token standard of a collection
type Standard string

const (
	StandardERC721  Standard = "ERC721"
	StandardERC1155 Standard = "ERC1155"
)

// ListingStatus is the lifecycle state of a listing
type ListingStatus string

const (
	ListingStatusActive ListingStatus = "Active"
	ListingStatusHidden ListingStatus = "Hidden"
	ListingStatusSold   ListingStatus = "Sold"
)

// Collection aggregates a contract's tokens, listings and attributes
type Collection struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Address            string             `json:"address"`
	Standard           Standard           `json:"standard"`
	Creator            string             `json:"creator"`
	FloorPrice         uint256.Int        `json:"floorPrice"`
	TotalListings      int64              `json:"totalListings"`
	TotalSales         int64              `json:"totalSales"`
	TotalItems         int64              `json:"totalItems"`
	TotalOwners        int64              `json:"totalOwners"`
	TotalVolume        uint256.Int        `json:"totalVolume"`
	TokenIDs           OrderedSet[string] `json:"tokenIds"`
	ListingIDs         OrderedSet[string] `json:"listingIds"`
	AttributeIDs       OrderedSet[string] `json:"attributeIds"`
	MissingMetadataIDs OrderedSet[string] `json:"missingMetadataIds"`
	FloorTokenIDs      OrderedSet[string] `json:"floorTokenIds"`
	RarityActivated    bool               `json:"rarityActivated"`
	RarityPending      bool               `json:"rarityPending"`
}

func NewCollection(id string) *Collection {
	return &Collection{ID: id, Address: id, Standard: StandardERC721}
}

func (c *Collection) Kind() Kind       { return KindCollection }
func (c *Collection) EntityID() string { return c.ID }

// Token is a single NFT id within a collection
type Token struct {
	ID          string             `json:"id"`
	TokenID     string             `json:"tokenId"`
	Collection  string             `json:"collection"`
	Name        string             `json:"name"`
	Owner       string             `json:"owner,omitempty"`
	MetadataURI string             `json:"metadataUri,omitempty"`
	Metadata    string             `json:"metadata,omitempty"`
	Filters     Filters            `json:"filters"`
	Owners      OrderedSet[string] `json:"owners"`
	TotalOwners int64              `json:"totalOwners"`
	TotalItems  int64              `json:"totalItems"`
	FloorPrice  uint256.Int        `json:"floorPrice"`
	Rarity      float64            `json:"rarity"`
	Rank        int64              `json:"rank"`
}

func NewToken(id string) *Token {
	return &Token{ID: id}
}

func (t *Token) Kind() Kind       { return KindToken }
func (t *Token) EntityID() string { return t.ID }

// Number returns the numeric token id
func (t *Token) Number() *big.Int {
	n, ok := new(big.Int).SetString(t.TokenID, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// Metadata is the decoded off-chain document of a token. It shares the token's id.
type Metadata struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Name        string `json:"name"`
	Token       string `json:"token"`
}

func NewMetadata(id string) *Metadata {
	return &Metadata{ID: id, Token: id}
}

func (m *Metadata) Kind() Kind       { return KindMetadata }
func (m *Metadata) EntityID() string { return m.ID }

// Attribute is a (trait, value) pair of a collection with its token membership
type Attribute struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Value      string             `json:"value"`
	Collection string             `json:"collection"`
	TokenIDs   OrderedSet[string] `json:"tokenIds"`
	Percentage float64            `json:"percentage"`
}

func NewAttribute(id string) *Attribute {
	return &Attribute{ID: id}
}

func (a *Attribute) Kind() Kind       { return KindAttribute }
func (a *Attribute) EntityID() string { return a.ID }

// MetadataAttribute joins a Metadata row to an Attribute row
type MetadataAttribute struct {
	ID        string `json:"id"`
	Metadata  string `json:"metadata"`
	Attribute string `json:"attribute"`
}

func NewMetadataAttribute(id string) *MetadataAttribute {
	return &MetadataAttribute{ID: id}
}

func (m *MetadataAttribute) Kind() Kind       { return KindMetadataAttribute }
func (m *MetadataAttribute) EntityID() string { return m.ID }

// Listing is a seller's offer of units of a token, or the archive of a sale
type Listing struct {
	ID              string        `json:"id"`
	User            string        `json:"user"`
	Buyer           string        `json:"buyer,omitempty"`
	Token           string        `json:"token"`
	TokenName       string        `json:"tokenName"`
	Collection      string        `json:"collection"`
	CollectionName  string        `json:"collectionName"`
	PricePerItem    uint256.Int   `json:"pricePerItem"`
	Quantity        int64         `json:"quantity"`
	ListedQuantity  int64         `json:"listedQuantity"`
	StakedQuantity  int64         `json:"stakedQuantity"`
	Status          ListingStatus `json:"status"`
	Expires         uint256.Int   `json:"expires"`
	Filters         Filters       `json:"filters"`
	NicePrice       string        `json:"nicePrice,omitempty"`
	TotalPrice      string        `json:"totalPrice,omitempty"`
	BlockTimestamp  uint64        `json:"blockTimestamp,omitempty"`
	TransactionLink string        `json:"transactionLink,omitempty"`
}

func NewListing(id string) *Listing {
	return &Listing{ID: id, Status: ListingStatusActive}
}

func (l *Listing) Kind() Kind       { return KindListing }
func (l *Listing) EntityID() string { return l.ID }

// UserToken is a user's free (unlisted, unstaked) balance of a token
type UserToken struct {
	ID          string `json:"id"`
	User        string `json:"user"`
	Token       string `json:"token"`
	Quantity    int64  `json:"quantity"`
	BlockNumber uint64 `json:"blockNumber"`
}

func NewUserToken(id string) *UserToken {
	return &UserToken{ID: id}
}

func (u *UserToken) Kind() Kind       { return KindUserToken }
func (u *UserToken) EntityID() string { return u.ID }

type User struct {
	ID string `json:"id"`
}

func NewUser(id string) *User {
	return &User{ID: id}
}

func (u *User) Kind() Kind       { return KindUser }
func (u *User) EntityID() string { return u.ID }

// Creator is the named creator of collections with its royalty fee in percent
type Creator struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Fee  float64 `json:"fee"`
}

func NewCreator(id string) *Creator {
	return &Creator{ID: id, Name: id, Fee: DEFAULT_CREATOR_FEE}
}

func (c *Creator) Kind() Kind       { return KindCreator }
func (c *Creator) EntityID() string { return c.ID }

// StakingMarker records that the token behind a listing id is staked in a program.
// Its kind is the program: Student (school), Exerciser (gym) or Staker (staking contract).
type StakingMarker struct {
	ID      string `json:"id"`
	Program Kind   `json:"program"`
}

func NewStakingMarker(program Kind) func(id string) *StakingMarker {
	return func(id string) *StakingMarker {
		return &StakingMarker{ID: id, Program: program}
	}
}

func (s *StakingMarker) Kind() Kind       { return s.Program }
func (s *StakingMarker) EntityID() string { return s.ID }

// TokenOwner is the total number of units of a token a user holds, listed and staked units included
type TokenOwner struct {
	ID       string `json:"id"`
	User     string `json:"user"`
	Token    string `json:"token"`
	Quantity int64  `json:"quantity"`
}

func NewTokenOwner(id string) *TokenOwner {
	return &TokenOwner{ID: id}
}

func (t *TokenOwner) Kind() Kind       { return KindTokenOwner }
func (t *TokenOwner) EntityID() string { return t.ID }

// CollectionOwner is the total number of units of a collection a user holds
type CollectionOwner struct {
	ID         string `json:"id"`
	User       string `json:"user"`
	Collection string `json:"collection"`
	Quantity   int64  `json:"quantity"`
}

func NewCollectionOwner(id string) *CollectionOwner {
	return &CollectionOwner{ID: id}
}

func (c *CollectionOwner) Kind() Kind       { return KindCollectionOwner }
func (c *CollectionOwner) EntityID() string { return c.ID }

// Int64 converts an on-chain quantity to int64, saturating at math.MaxInt64
func Int64(v *big.Int) int64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if !v.IsInt64() {
		return math.MaxInt64
	}
	return v.Int64()
}

// Uint256 converts an on-chain amount to uint256, saturating on overflow
func Uint256(v *big.Int) uint256.Int {
	if v == nil || v.Sign() <= 0 {
		return uint256.Int{}
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return *new(uint256.Int).SetAllOne()
	}
	return *out
}
