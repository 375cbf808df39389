package api

import (
	"encoding/json"
	"fmt"
)

// Query error codes. Values are explicit so removing one never renumbers the rest.
const (
	CodeAddressLimitExceeded   = 0
	CodeIncorrectAddressFormat = 1
	CodeUntilBlockNotFound     = 2
	CodePageStartNotFound      = 3
)

func addressLimitExceeded(limit, found int) *QueryError {
	return &QueryError{
		Code:   CodeAddressLimitExceeded,
		Reason: fmt.Sprintf("Exceeded request address limit. Limit of %d, found %d", limit, found),
	}
}

func incorrectAddressFormat(addresses []string) *QueryError {
	list, _ := json.Marshal(addresses) //nolint:errchkjson
	return &QueryError{
		Code:   CodeIncorrectAddressFormat,
		Reason: "Incorrectly formatted addresses found. " + string(list),
	}
}

func untilBlockNotFound(hash string) *QueryError {
	return &QueryError{
		Code:   CodeUntilBlockNotFound,
		Reason: "Until block not found. Searched block hash: " + hash,
	}
}

func pageStartNotFound(block, tx string) *QueryError {
	return &QueryError{
		Code:   CodePageStartNotFound,
		Reason: fmt.Sprintf("After block and/or transaction not found. Searched block hash %s and tx hash %s", block, tx),
	}
}
