package dex

import "fmt"

// ParseError reports a transaction whose pool or request datum did not have the
// expected shape. It only affects that transaction.
type ParseError struct {
	Protocol PoolType
	TxID     int64
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s event in tx %d: %v", e.Protocol, e.TxID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
