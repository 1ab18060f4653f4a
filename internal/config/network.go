package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
)

const (
	NetworkArbitrumOne     = "arbitrum-one"
	NetworkArbitrumRinkeby = "arbitrum-rinkeby"

	DEFAULT_PINNED_GATEWAY = "treasure-marketplace.mypinata.cloud"

	// buyItem(address _nftAddress, uint256 _tokenId, address _owner, uint256 _quantity)
	marketplaceBuySignature = "buyItem(address,uint256,address,uint256)"
)

// Collections whose staking programs the indexer follows
const (
	CollectionSmolBrains = "Smol Brains" // school
	CollectionSmolBodies = "Smol Bodies" // gym
)

// Name rules decide how a token's display name is derived
const (
	NameRuleDefault     = ""                 // metadata name, then static table, then "{collection} #{id}"
	NameRuleDescription = "description-name" // "{description} {name}" from metadata
	NameRuleMetadata    = "metadata"         // metadata name, then "{collection} #{id}"
)

// defaultRarityThresholds are the collection sizes at which rarity becomes meaningful, by network and collection name
var defaultRarityThresholds = map[string]map[string]int64{
	NetworkArbitrumOne: {
		"Smol Bodies":      4054,
		"Smol Brains":      10665,
		"Smol Brains Land": 3983,
		"Smol Cars":        7872,
	},
	NetworkArbitrumRinkeby: {
		"Smol Bodies":      20,
		"Smol Brains":      241,
		"Smol Brains Land": 2,
		"Smol Cars":        120,
	},
}

// Rewrite is a literal substring replacement
type Rewrite struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// CollectionSettings describes one indexed collection as read from config
type CollectionSettings struct {
	Name                string   `mapstructure:"name"`
	Address             string   `mapstructure:"address"`
	Standard            string   `mapstructure:"standard"`
	Creator             string   `mapstructure:"creator"`
	CreatorFee          float64  `mapstructure:"creator_fee"`
	RarityThreshold     int64    `mapstructure:"rarity_threshold"`
	MintEvent           string   `mapstructure:"mint_event"` // SmolBodiesMint, SmolCarMint or empty
	NameRule            string   `mapstructure:"name_rule"`
	SeedTraits          []string `mapstructure:"seed_traits"`
	PlaceholderMetadata bool     `mapstructure:"placeholder_metadata"`
	Supersedes          string   `mapstructure:"supersedes"`
}

// NetworkSettings is the raw network section of the config file
type NetworkSettings struct {
	Name                   string               `mapstructure:"name"`
	Explorer               string               `mapstructure:"explorer"`
	MarketplaceAddress     string               `mapstructure:"marketplace_address"`
	MarketplaceBuySelector string               `mapstructure:"marketplace_buy_selector"`
	StakingAddress         string               `mapstructure:"staking_address"`
	SchoolAddress          string               `mapstructure:"school_address"`
	GymAddress             string               `mapstructure:"gym_address"`
	RarityActivationBlock  uint64               `mapstructure:"rarity_activation_block"`
	IPFSGateway            string               `mapstructure:"ipfs_gateway"`
	HeadSizeScaling        uint64               `mapstructure:"head_size_scaling"`
	HeadSizeMax            uint64               `mapstructure:"head_size_max"`
	GatewayRewrites        []Rewrite            `mapstructure:"gateway_rewrites"`
	LegacyHashes           []Rewrite            `mapstructure:"legacy_hashes"`
	Collections            []CollectionSettings `mapstructure:"collections"`
}

// CollectionProfile is the validated per-collection behavior
type CollectionProfile struct {
	Address             common.Address
	Name                string
	Standard            domain.Standard
	Creator             string
	CreatorFee          float64
	RarityThreshold     int64
	MintEvent           string
	NameRule            string
	SeedTraits          []string
	PlaceholderMetadata bool
	Supersedes          string
}

// RarityEnabled reports whether the collection has a rarity threshold
func (p CollectionProfile) RarityEnabled() bool {
	return p.RarityThreshold > 0
}

// NetworkConfig holds the environment-derived constants of one deployment.
// It is built once at startup and never mutated.
type NetworkConfig struct {
	name                  string
	explorer              string
	marketplace           common.Address
	buySelector           string
	staking               common.Address
	school                common.Address
	gym                   common.Address
	rarityActivationBlock uint64
	ipfsGateway           string
	headSizeScaling       uint64
	headSizeMax           uint64
	gatewayRewrites       []Rewrite
	legacyHashes          []Rewrite
	profiles              map[common.Address]CollectionProfile
	order                 []common.Address
}

// BuildNetwork validates the raw settings and produces the immutable network configuration
func BuildNetwork(s NetworkSettings) (*NetworkConfig, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("%w: network.name is required", domain.ErrInvalidNetwork)
	}

	n := &NetworkConfig{
		name:                  s.Name,
		explorer:              s.Explorer,
		rarityActivationBlock: s.RarityActivationBlock,
		ipfsGateway:           s.IPFSGateway,
		headSizeScaling:       s.HeadSizeScaling,
		headSizeMax:           s.HeadSizeMax,
		gatewayRewrites:       append([]Rewrite(nil), s.GatewayRewrites...),
		legacyHashes:          append([]Rewrite(nil), s.LegacyHashes...),
		profiles:              make(map[common.Address]CollectionProfile, len(s.Collections)),
	}
	if n.explorer == "" {
		n.explorer = "arbiscan.io"
	}
	if n.ipfsGateway == "" {
		n.ipfsGateway = DEFAULT_PINNED_GATEWAY
	}
	if n.headSizeScaling == 0 {
		n.headSizeScaling = 50
	}
	if n.headSizeMax == 0 {
		n.headSizeMax = 5
	}

	var err error
	if n.marketplace, err = parseAddress("network.marketplace_address", s.MarketplaceAddress); err != nil {
		return nil, err
	}
	if n.staking, err = parseAddress("network.staking_address", s.StakingAddress); err != nil {
		return nil, err
	}
	if n.school, err = parseAddress("network.school_address", s.SchoolAddress); err != nil {
		return nil, err
	}
	if n.gym, err = parseAddress("network.gym_address", s.GymAddress); err != nil {
		return nil, err
	}

	n.buySelector, err = parseSelector(s.MarketplaceBuySelector)
	if err != nil {
		return nil, err
	}

	for _, c := range s.Collections {
		profile, err := buildProfile(s.Name, c)
		if err != nil {
			return nil, err
		}
		if _, ok := n.profiles[profile.Address]; ok {
			return nil, fmt.Errorf("%w: duplicate collection %s", domain.ErrInvalidNetwork, c.Address)
		}
		n.profiles[profile.Address] = profile
		n.order = append(n.order, profile.Address)
	}

	return n, nil
}

func buildProfile(network string, c CollectionSettings) (CollectionProfile, error) {
	if c.Name == "" {
		return CollectionProfile{}, fmt.Errorf("%w: collection %s has no name", domain.ErrInvalidNetwork, c.Address)
	}
	address, err := parseAddress("collection address", c.Address)
	if err != nil {
		return CollectionProfile{}, err
	}
	if address == (common.Address{}) {
		return CollectionProfile{}, fmt.Errorf("%w: collection %s has no address", domain.ErrInvalidNetwork, c.Name)
	}

	standard := domain.StandardERC721
	switch strings.ToUpper(c.Standard) {
	case "", string(domain.StandardERC721):
	case string(domain.StandardERC1155):
		standard = domain.StandardERC1155
	default:
		return CollectionProfile{}, fmt.Errorf("%w: collection %s has unknown standard %q", domain.ErrInvalidNetwork, c.Name, c.Standard)
	}

	threshold := c.RarityThreshold
	if threshold == 0 {
		threshold = defaultRarityThresholds[network][c.Name]
	}

	fee := c.CreatorFee
	if fee == 0 {
		fee = domain.DEFAULT_CREATOR_FEE
	}

	supersedes := ""
	if c.Supersedes != "" {
		old, err := parseAddress("collection supersedes", c.Supersedes)
		if err != nil {
			return CollectionProfile{}, err
		}
		supersedes = domain.NormalizeAddress(old)
	}

	return CollectionProfile{
		Address:             address,
		Name:                c.Name,
		Standard:            standard,
		Creator:             c.Creator,
		CreatorFee:          fee,
		RarityThreshold:     threshold,
		MintEvent:           c.MintEvent,
		NameRule:            c.NameRule,
		SeedTraits:          append([]string(nil), c.SeedTraits...),
		PlaceholderMetadata: c.PlaceholderMetadata,
		Supersedes:          supersedes,
	}, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address: %q", domain.ErrInvalidNetwork, field, value)
	}
	return common.HexToAddress(value), nil
}

func parseSelector(value string) (string, error) {
	if value == "" {
		return "0x" + hex.EncodeToString(crypto.Keccak256([]byte(marketplaceBuySignature))[:4]), nil
	}
	raw := strings.TrimPrefix(strings.ToLower(value), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != 4 {
		return "", fmt.Errorf("%w: network.marketplace_buy_selector must be 4 bytes: %q", domain.ErrInvalidNetwork, value)
	}
	return "0x" + raw, nil
}

func (n *NetworkConfig) Name() string { return n.name }
func (n *NetworkConfig) Marketplace() common.Address { return n.marketplace }
func (n *NetworkConfig) Staking() common.Address { return n.staking }
func (n *NetworkConfig) School() common.Address { return n.school }
func (n *NetworkConfig) Gym() common.Address { return n.gym }
func (n *NetworkConfig) RarityActivationBlock() uint64 { return n.rarityActivationBlock }
func (n *NetworkConfig) IPFSGateway() string { return n.ipfsGateway }
func (n *NetworkConfig) HeadSizeScaling() uint64 { return n.headSizeScaling }
func (n *NetworkConfig) HeadSizeMax() uint64 { return n.headSizeMax }
func (n *NetworkConfig) GatewayRewrites() []Rewrite { return append([]Rewrite(nil), n.gatewayRewrites...) }
func (n *NetworkConfig) LegacyHashes() []Rewrite { return append([]Rewrite(nil), n.legacyHashes...) }
func (n *NetworkConfig) BuySelector() string { return n.buySelector }

// IsStaking reports whether address is the staking pseudo-address
func (n *NetworkConfig) IsStaking(address common.Address) bool {
	return n.staking != (common.Address{}) && address == n.staking
}

// IsMarketplaceBuy reports whether a transaction's call selector is the marketplace buy call
func (n *NetworkConfig) IsMarketplaceBuy(selector string) bool {
	return strings.EqualFold(selector, n.buySelector)
}

// TransactionLink returns the explorer link of a transaction
func (n *NetworkConfig) TransactionLink(txHash common.Hash) string {
	return fmt.Sprintf("https://%s/tx/%s", n.explorer, txHash.Hex())
}

// Profile returns the profile of a collection
func (n *NetworkConfig) Profile(address common.Address) (CollectionProfile, bool) {
	p, ok := n.profiles[address]
	return p, ok
}

// ProfileByName returns the first profile with the given collection name
func (n *NetworkConfig) ProfileByName(name string) (CollectionProfile, bool) {
	for _, address := range n.order {
		if n.profiles[address].Name == name {
			return n.profiles[address], true
		}
	}
	return CollectionProfile{}, false
}

// Profiles returns every collection profile in configuration order
func (n *NetworkConfig) Profiles() []CollectionProfile {
	out := make([]CollectionProfile, 0, len(n.order))
	for _, address := range n.order {
		out = append(out, n.profiles[address])
	}
	return out
}

// WatchedAddresses returns every contract whose logs the indexer consumes
func (n *NetworkConfig) WatchedAddresses() []common.Address {
	out := append([]common.Address(nil), n.order...)
	for _, a := range []common.Address{n.marketplace, n.school, n.gym} {
		if a != (common.Address{}) {
			out = append(out, a)
		}
	}
	return out
}

// NewTestNetwork builds a network configuration from settings and panics on error.
// Intended for tests and fixtures.
func NewTestNetwork(s NetworkSettings) *NetworkConfig {
	n, err := BuildNetwork(s)
	if err != nil {
		panic(err)
	}
	return n
}
