package dex

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/blinklabs-io/plutigo/data"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

var errDatumShape = errors.New("unexpected datum shape")

// Datum walks a positional datum tree. A failed step is carried along the chain
// and reported, with the path that failed, by the accessor that ends the chain.
type Datum struct {
	node data.PlutusData
	path string
	err  error
}

// NewDatum starts a walk at the root of d.
func NewDatum(d data.PlutusData) Datum {
	return Datum{node: d, path: "$"}
}

func (d Datum) fail(format string, args ...any) Datum {
	d.err = fmt.Errorf("%w at %s: %s", errDatumShape, d.path, fmt.Sprintf(format, args...))
	return d
}

func (d Datum) constr() (*data.Constr, Datum) {
	if d.err != nil {
		return nil, d
	}
	c, ok := d.node.(*data.Constr)
	if !ok {
		return nil, d.fail("expected constructor, got %T", d.node)
	}
	return c, d
}

// Field descends into the i-th field of a constructor.
func (d Datum) Field(i int) Datum {
	c, d := d.constr()
	if d.err != nil {
		return d
	}
	d.path += ".fields[" + strconv.Itoa(i) + "]"
	if i < 0 || i >= len(c.Fields) {
		return d.fail("constructor has %d fields", len(c.Fields))
	}
	d.node = c.Fields[i]
	return d
}

// Constructor returns the constructor tag.
func (d Datum) Constructor() (uint, error) {
	c, d := d.constr()
	if d.err != nil {
		return 0, d.err
	}
	return c.Tag, nil
}

// Bytes returns the value of a byte string.
func (d Datum) Bytes() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	b, ok := d.node.(*data.ByteString)
	if !ok {
		return nil, d.fail("expected bytes, got %T", d.node).err
	}
	return b.Inner, nil
}

// Uint64 returns the value of an integer that fits an unsigned 64 bit amount.
func (d Datum) Uint64() (uint64, error) {
	if d.err != nil {
		return 0, d.err
	}
	n, ok := d.node.(*data.Integer)
	if !ok {
		return 0, d.fail("expected int, got %T", d.node).err
	}
	if n.Inner == nil || n.Inner.Sign() < 0 || !n.Inner.IsUint64() {
		return 0, d.fail("int %v out of range", n.Inner).err
	}
	return n.Inner.Uint64(), nil
}

// Asset reads a [policy id, asset name] constructor.
func (d Datum) Asset() (ledger.AssetID, error) {
	policyID, err := d.Field(0).Bytes()
	if err != nil {
		return ledger.AssetID{}, err
	}
	name, err := d.Field(1).Bytes()
	if err != nil {
		return ledger.AssetID{}, err
	}
	return buildAsset(policyID, name), nil
}

// AssetPair reads the two assets of a pool from a constructor holding two asset constructors.
func (d Datum) AssetPair() (ledger.AssetID, ledger.AssetID, error) {
	asset1, err := d.Field(0).Asset()
	if err != nil {
		return ledger.AssetID{}, ledger.AssetID{}, err
	}
	asset2, err := d.Field(1).Asset()
	if err != nil {
		return ledger.AssetID{}, ledger.AssetID{}, err
	}
	return asset1, asset2, nil
}
