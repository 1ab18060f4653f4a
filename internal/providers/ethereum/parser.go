package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
)

// ParseEventLog decodes a raw log into a typed domain event.
// It returns (nil, nil) for logs that share a signature with an event of no interest (ERC20 transfers).
func ParseEventLog(vLog types.Log, ec domain.EventContext) (domain.Event, error) {
	if len(vLog.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", domain.ErrMalformedEvent)
	}

	switch vLog.Topics[0] {
	case transferEventSignature:
		// This signature is shared by ERC20 and ERC721
		// ERC20 has 3 topics (signature, from, to) with value in data
		// ERC721 has 4 topics (signature, from, to, tokenId) with no data
		if len(vLog.Topics) == 3 {
			logger.Debug("Skipping ERC20 transfer event",
				zap.String("contract", vLog.Address.Hex()),
				zap.String("txHash", vLog.TxHash.Hex()))
			return nil, nil
		}
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("%w: Transfer expected 3 or 4 topics, got %d", domain.ErrMalformedEvent, len(vLog.Topics))
		}

		return domain.TransferEvent{
			EventContext: ec,
			From:         common.BytesToAddress(vLog.Topics[1].Bytes()),
			To:           common.BytesToAddress(vLog.Topics[2].Bytes()),
			TokenID:      new(big.Int).SetBytes(vLog.Topics[3].Bytes()),
		}, nil

	case transferSingleEventSignature:
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("%w: TransferSingle expected 4 topics, got %d", domain.ErrMalformedEvent, len(vLog.Topics))
		}
		if len(vLog.Data) < 64 {
			return nil, fmt.Errorf("%w: TransferSingle has insufficient data", domain.ErrMalformedEvent)
		}

		// Data: first 32 bytes = token ID, next 32 bytes = value
		return domain.TransferSingleEvent{
			EventContext: ec,
			Operator:     common.BytesToAddress(vLog.Topics[1].Bytes()),
			From:         common.BytesToAddress(vLog.Topics[2].Bytes()),
			To:           common.BytesToAddress(vLog.Topics[3].Bytes()),
			TokenID:      new(big.Int).SetBytes(vLog.Data[0:32]),
			Value:        new(big.Int).SetBytes(vLog.Data[32:64]),
		}, nil

	case transferBatchEventSignature:
		args, err := unpackEvent("TransferBatch", vLog)
		if err != nil {
			return nil, err
		}
		ids, idsOK := args["ids"].([]*big.Int)
		values, valuesOK := args["values"].([]*big.Int)
		if !idsOK || !valuesOK {
			return nil, fmt.Errorf("%w: TransferBatch ids/values", domain.ErrMalformedEvent)
		}
		e := domain.TransferBatchEvent{EventContext: ec, TokenIDs: ids, Values: values}
		if e.Operator, err = addressArg(args, "operator"); err != nil {
			return nil, err
		}
		if e.From, err = addressArg(args, "from"); err != nil {
			return nil, err
		}
		if e.To, err = addressArg(args, "to"); err != nil {
			return nil, err
		}
		return e, nil

	case uriEventSignature:
		args, err := unpackEvent("URI", vLog)
		if err != nil {
			return nil, err
		}
		e := domain.URIEvent{EventContext: ec}
		if e.Value, err = stringArg(args, "value"); err != nil {
			return nil, err
		}
		if e.TokenID, err = bigArg(args, "id"); err != nil {
			return nil, err
		}
		return e, nil

	case itemListedEventSignature, itemUpdatedEventSignature:
		name := "ItemListed"
		if vLog.Topics[0] == itemUpdatedEventSignature {
			name = "ItemUpdated"
		}
		args, err := unpackEvent(name, vLog)
		if err != nil {
			return nil, err
		}
		var l domain.ItemListedEvent
		l.EventContext = ec
		if l.Seller, err = addressArg(args, "seller"); err != nil {
			return nil, err
		}
		if l.NFTAddress, err = addressArg(args, "nftAddress"); err != nil {
			return nil, err
		}
		if l.TokenID, err = bigArg(args, "tokenId"); err != nil {
			return nil, err
		}
		if l.Quantity, err = bigArg(args, "quantity"); err != nil {
			return nil, err
		}
		if l.PricePerItem, err = bigArg(args, "pricePerItem"); err != nil {
			return nil, err
		}
		if l.ExpirationTime, err = bigArg(args, "expirationTime"); err != nil {
			return nil, err
		}
		if name == "ItemUpdated" {
			return domain.ItemUpdatedEvent(l), nil
		}
		return l, nil

	case itemCanceledEventSignature:
		args, err := unpackEvent("ItemCanceled", vLog)
		if err != nil {
			return nil, err
		}
		e := domain.ItemCanceledEvent{EventContext: ec}
		if e.Seller, err = addressArg(args, "seller"); err != nil {
			return nil, err
		}
		if e.NFTAddress, err = addressArg(args, "nftAddress"); err != nil {
			return nil, err
		}
		if e.TokenID, err = bigArg(args, "tokenId"); err != nil {
			return nil, err
		}
		return e, nil

	case itemSoldEventSignature:
		args, err := unpackEvent("ItemSold", vLog)
		if err != nil {
			return nil, err
		}
		e := domain.ItemSoldEvent{EventContext: ec}
		if e.Seller, err = addressArg(args, "seller"); err != nil {
			return nil, err
		}
		if e.Buyer, err = addressArg(args, "buyer"); err != nil {
			return nil, err
		}
		if e.NFTAddress, err = addressArg(args, "nftAddress"); err != nil {
			return nil, err
		}
		if e.TokenID, err = bigArg(args, "tokenId"); err != nil {
			return nil, err
		}
		if e.Quantity, err = bigArg(args, "quantity"); err != nil {
			return nil, err
		}
		if e.PricePerItem, err = bigArg(args, "pricePerItem"); err != nil {
			return nil, err
		}
		return e, nil

	case joinSchoolEventSignature, dropSchoolEventSignature, joinGymEventSignature:
		name := stakingEventName(vLog.Topics[0])
		args, err := unpackEvent(name, vLog)
		if err != nil {
			return nil, err
		}
		tokenID, err := bigArg(args, "tokenId")
		if err != nil {
			return nil, err
		}
		switch name {
		case "JoinSchool":
			return domain.JoinSchoolEvent{EventContext: ec, TokenID: tokenID}, nil
		case "DropSchool":
			return domain.DropSchoolEvent{EventContext: ec, TokenID: tokenID}, nil
		default:
			return domain.JoinGymEvent{EventContext: ec, TokenID: tokenID}, nil
		}

	case dropGymEventSignature:
		args, err := unpackEvent("DropGym", vLog)
		if err != nil {
			return nil, err
		}
		e := domain.DropGymEvent{EventContext: ec}
		if e.TokenID, err = bigArg(args, "tokenId"); err != nil {
			return nil, err
		}
		if e.Plates, err = bigArg(args, "plates"); err != nil {
			return nil, err
		}
		if e.Level, err = bigArg(args, "level"); err != nil {
			return nil, err
		}
		return e, nil

	case smolBodiesMintEventSignature, smolCarMintEventSignature:
		name := "SmolBodiesMint"
		if vLog.Topics[0] == smolCarMintEventSignature {
			name = "SmolCarMint"
		}
		args, err := unpackEvent(name, vLog)
		if err != nil {
			return nil, err
		}
		e := domain.CollectionMintEvent{EventContext: ec, Event: name}
		if e.To, err = addressArg(args, "to"); err != nil {
			return nil, err
		}
		if e.TokenID, err = bigArg(args, "tokenId"); err != nil {
			return nil, err
		}
		if e.TokenURI, err = stringArg(args, "tokenURI"); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, vLog.Topics[0].Hex())
	}
}

func stakingEventName(topic common.Hash) string {
	switch topic {
	case joinSchoolEventSignature:
		return "JoinSchool"
	case dropSchoolEventSignature:
		return "DropSchool"
	default:
		return "JoinGym"
	}
}

// unpackEvent decodes both the data and the indexed topics of a log into a map keyed by argument name
func unpackEvent(name string, vLog types.Log) (map[string]interface{}, error) {
	event, ok := eventsContractABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, name)
	}

	args := make(map[string]interface{})
	if len(vLog.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(args, vLog.Data); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", domain.ErrMalformedEvent, name, err)
		}
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(vLog.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("%w: %s expected %d topics, got %d", domain.ErrMalformedEvent, name, len(indexed)+1, len(vLog.Topics))
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, indexed, vLog.Topics[1:]); err != nil {
			return nil, fmt.Errorf("%w: %s topics: %v", domain.ErrMalformedEvent, name, err)
		}
	}

	return args, nil
}

func bigArg(args map[string]interface{}, name string) (*big.Int, error) {
	v, ok := args[name].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: argument %s is not a uint256", domain.ErrMalformedEvent, name)
	}
	return v, nil
}

func addressArg(args map[string]interface{}, name string) (common.Address, error) {
	v, ok := args[name].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: argument %s is not an address", domain.ErrMalformedEvent, name)
	}
	return v, nil
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %s is not a string", domain.ErrMalformedEvent, name)
	}
	return v, nil
}
