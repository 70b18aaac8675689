// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes cache values for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

const (
	CodecCBOR    = "cbor"
	CodecMsgpack = "msgpack"
)

// NewCodec creates the codec with the given name.
func NewCodec[V any](name string) (Codec[V], error) {
	switch name {
	case CodecCBOR:
		return NewCBOR[V](true)
	case CodecMsgpack:
		return Msgpack[V]{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q, supported are %q and %q", name, CodecCBOR, CodecMsgpack)
}

// CBOR encodes values using CBOR. Deterministic codecs use the core
// deterministic encoding, producing identical bytes for equal values.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR creates a CBOR codec.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	options := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		options = cbor.CoreDetEncOptions()
	}
	enc, err := options.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: enc, dec: dec}, nil
}

func (c CBOR[V]) Encode(value V) ([]byte, error) {
	return c.enc.Marshal(value)
}

func (c CBOR[V]) Decode(data []byte) (V, error) {
	var value V
	err := c.dec.Unmarshal(data, &value)
	return value, err
}

// Msgpack encodes values using msgpack. The zero value is ready to use.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(value V) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (Msgpack[V]) Decode(data []byte) (V, error) {
	var value V
	err := msgpack.Unmarshal(data, &value)
	return value, err
}
