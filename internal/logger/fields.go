package logger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Field helpers for the identifiers that show up in most handler logs

func Collection(address string) zap.Field {
	return zap.String("collection", address)
}

func Token(id string) zap.Field {
	return zap.String("token", id)
}

func TokenNumber(tokenID *big.Int) zap.Field {
	return zap.Stringer("tokenId", tokenID)
}

func Listing(id string) zap.Field {
	return zap.String("listing", id)
}

func User(address common.Address) zap.Field {
	return zap.String("user", address.Hex())
}

func Block(number uint64) zap.Field {
	return zap.Uint64("block", number)
}

func Tx(hash common.Hash) zap.Field {
	return zap.String("tx", hash.Hex())
}

func Trait(name, value string) zap.Field {
	return zap.Strings("trait", []string{name, value})
}
