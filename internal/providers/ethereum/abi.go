package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures
var (
	// ERC721 Transfer(address indexed from, address indexed to, uint256 indexed tokenId)
	// The same signature with 3 topics is an ERC20 transfer and is skipped.
	transferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	// ERC1155 TransferSingle(address indexed operator, address indexed from, address indexed to, uint256 id, uint256 value)
	transferSingleEventSignature = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))

	// ERC1155 TransferBatch(address indexed operator, address indexed from, address indexed to, uint256[] ids, uint256[] values)
	transferBatchEventSignature = crypto.Keccak256Hash([]byte("TransferBatch(address,address,address,uint256[],uint256[])"))

	// ERC1155 URI(string _value, uint256 indexed _id)
	uriEventSignature = crypto.Keccak256Hash([]byte("URI(string,uint256)"))

	itemListedEventSignature   = crypto.Keccak256Hash([]byte("ItemListed(address,address,uint256,uint256,uint256,uint256)"))
	itemUpdatedEventSignature  = crypto.Keccak256Hash([]byte("ItemUpdated(address,address,uint256,uint256,uint256,uint256)"))
	itemCanceledEventSignature = crypto.Keccak256Hash([]byte("ItemCanceled(address,address,uint256)"))
	itemSoldEventSignature     = crypto.Keccak256Hash([]byte("ItemSold(address,address,address,uint256,uint256,uint256)"))

	joinSchoolEventSignature = crypto.Keccak256Hash([]byte("JoinSchool(uint256)"))
	dropSchoolEventSignature = crypto.Keccak256Hash([]byte("DropSchool(uint256)"))
	joinGymEventSignature    = crypto.Keccak256Hash([]byte("JoinGym(uint256)"))
	dropGymEventSignature    = crypto.Keccak256Hash([]byte("DropGym(uint256,uint256,uint256)"))

	smolBodiesMintEventSignature = crypto.Keccak256Hash([]byte("SmolBodiesMint(address,uint256,string)"))
	smolCarMintEventSignature    = crypto.Keccak256Hash([]byte("SmolCarMint(address,uint256,string)"))
)

// eventsABI declares every event decoded from log data
const eventsABI = `[
	{"anonymous":false,"type":"event","name":"TransferBatch","inputs":[
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"ids","type":"uint256[]"},
		{"indexed":false,"name":"values","type":"uint256[]"}]},
	{"anonymous":false,"type":"event","name":"URI","inputs":[
		{"indexed":false,"name":"value","type":"string"},
		{"indexed":true,"name":"id","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ItemListed","inputs":[
		{"indexed":false,"name":"seller","type":"address"},
		{"indexed":false,"name":"nftAddress","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"quantity","type":"uint256"},
		{"indexed":false,"name":"pricePerItem","type":"uint256"},
		{"indexed":false,"name":"expirationTime","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ItemUpdated","inputs":[
		{"indexed":false,"name":"seller","type":"address"},
		{"indexed":false,"name":"nftAddress","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"quantity","type":"uint256"},
		{"indexed":false,"name":"pricePerItem","type":"uint256"},
		{"indexed":false,"name":"expirationTime","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ItemCanceled","inputs":[
		{"indexed":true,"name":"seller","type":"address"},
		{"indexed":true,"name":"nftAddress","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ItemSold","inputs":[
		{"indexed":false,"name":"seller","type":"address"},
		{"indexed":false,"name":"buyer","type":"address"},
		{"indexed":false,"name":"nftAddress","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"quantity","type":"uint256"},
		{"indexed":false,"name":"pricePerItem","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"JoinSchool","inputs":[
		{"indexed":false,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"DropSchool","inputs":[
		{"indexed":false,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"JoinGym","inputs":[
		{"indexed":false,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"DropGym","inputs":[
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"plates","type":"uint256"},
		{"indexed":false,"name":"level","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"SmolBodiesMint","inputs":[
		{"indexed":false,"name":"to","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"tokenURI","type":"string"}]},
	{"anonymous":false,"type":"event","name":"SmolCarMint","inputs":[
		{"indexed":false,"name":"to","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"tokenURI","type":"string"}]}
]`

// callsABI declares the read-only calls made against collection contracts
const callsABI = `[
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"id","type":"uint256"}],"name":"uri","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"brainz","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

var (
	eventsContractABI = mustParseABI(eventsABI)
	callsContractABI  = mustParseABI(callsABI)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// topicSignatures lists every event signature the indexer consumes
func topicSignatures() []common.Hash {
	return []common.Hash{
		transferEventSignature,
		transferSingleEventSignature,
		transferBatchEventSignature,
		uriEventSignature,
		itemListedEventSignature,
		itemUpdatedEventSignature,
		itemCanceledEventSignature,
		itemSoldEventSignature,
		joinSchoolEventSignature,
		dropSchoolEventSignature,
		joinGymEventSignature,
		dropGymEventSignature,
		smolBodiesMintEventSignature,
		smolCarMintEventSignature,
	}
}
