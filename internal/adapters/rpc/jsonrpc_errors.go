package rpc

import (
	"errors"

	"lumen-chat/go-client/internal/domains/contracts"
)

var errInvalidParams = errors.New("invalid params")

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

// rpcServiceError folds the error category into the code so clients can
// distinguish a rejected request from a failed network round trip.
func rpcServiceError(baseCode int, err error) *rpcError {
	code := baseCode
	switch contracts.ErrorCategory(err) {
	case contracts.ErrorCategoryValidation:
		code = baseCode - 1
	case contracts.ErrorCategoryNetwork:
		code = baseCode - 2
	case contracts.ErrorCategoryStorage:
		code = baseCode - 3
	}
	return &rpcError{Code: code, Message: err.Error()}
}
