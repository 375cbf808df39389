package db

import (
	"database/sql"
	"fmt"
	"strconv"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Default = meddler.SQLite
	meddler.Register("hash", HashMeddler{})
	meddler.Register("amount", AmountMeddler{})
}

// HashMeddler stores a 32 byte blake2b hash as a BLOB column.
type HashMeddler struct{}

func (h HashMeddler) PreRead(fieldAddr any) (scanTarget any, err error) {
	return new([]byte), nil
}

func (h HashMeddler) PostRead(fieldAddr, scanTarget any) error {
	raw, ok := scanTarget.(*[]byte)
	if !ok {
		return fmt.Errorf("expected *[]byte, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*lcommon.Blake2b256)
	if !ok {
		return fmt.Errorf("expected *common.Blake2b256, got %T", fieldAddr)
	}

	if len(*raw) != lcommon.Blake2b256Size {
		return fmt.Errorf("hash column holds %d bytes, want %d", len(*raw), lcommon.Blake2b256Size)
	}
	*ptr = lcommon.NewBlake2b256(*raw)
	return nil
}

func (h HashMeddler) PreWrite(field any) (saveValue any, err error) {
	switch v := field.(type) {
	case lcommon.Blake2b256:
		return HashValue(v), nil
	case *lcommon.Blake2b256:
		if v == nil {
			return nil, nil
		}
		return HashValue(*v), nil
	default:
		return nil, fmt.Errorf("expected common.Blake2b256, got %T", field)
	}
}

// HashValue is the column value of a hash, used by hand written batch statements.
func HashValue(h lcommon.Blake2b256) []byte {
	return h.Bytes()
}

// AmountMeddler stores an unsigned 64 bit amount as decimal TEXT.
// SQLite integers are signed, large native asset quantities would overflow them.
type AmountMeddler struct{}

func (a AmountMeddler) PreRead(fieldAddr any) (scanTarget any, err error) {
	return new(sql.NullString), nil
}

func (a AmountMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*uint64)
	if !ok {
		return fmt.Errorf("expected *uint64, got %T", fieldAddr)
	}

	if !ns.Valid {
		*ptr = 0
		return nil
	}

	v, err := ParseAmount(ns.String)
	if err != nil {
		return err
	}
	*ptr = v
	return nil
}

func (a AmountMeddler) PreWrite(field any) (saveValue any, err error) {
	v, ok := field.(uint64)
	if !ok {
		return nil, fmt.Errorf("expected uint64, got %T", field)
	}
	return AmountValue(v), nil
}

// AmountValue is the column value of an amount, used by hand written batch statements.
func AmountValue(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ParseAmount parses an amount column value.
func ParseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
