/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package term encodes the structured payloads carried by SendTerm and
// OutputTerm replies.
//
// A term is an atom, an integer, a binary, a port reference or a tuple of
// terms. Terms are represented as protobuf struct values with a single
// tagged field and travel on the wire in their protobuf binary encoding.
package term

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	gerrors "github.com/tochemey/dthread/errors"
)

const (
	atomKey   = "atom"
	intKey    = "int"
	binaryKey = "binary"
	portKey   = "port"
	tupleKey  = "tuple"
)

// Kind is the type of a term
type Kind int

const (
	KindInvalid Kind = iota
	KindAtom
	KindInt
	KindBinary
	KindPort
	KindTuple
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindAtom:
		return atomKey
	case KindInt:
		return intKey
	case KindBinary:
		return binaryKey
	case KindPort:
		return portKey
	case KindTuple:
		return tupleKey
	default:
		return "invalid"
	}
}

// Term is a structured value
type Term = *structpb.Value

// Atom returns a named constant
func Atom(name string) Term {
	return tagged(atomKey, structpb.NewStringValue(name))
}

// Int returns an integer term. The value is kept as text to stay exact
// beyond the float precision of struct values.
func Int(v int64) Term {
	return tagged(intKey, structpb.NewStringValue(strconv.FormatInt(v, 10)))
}

// Binary returns a term holding a copy of b
func Binary(b []byte) Term {
	return tagged(binaryKey, structpb.NewStringValue(base64.StdEncoding.EncodeToString(b)))
}

// Port returns a reference to the port identified by id
func Port(id string) Term {
	return tagged(portKey, structpb.NewStringValue(id))
}

// Tuple returns a fixed-size sequence of terms
func Tuple(elems ...Term) Term {
	return tagged(tupleKey, structpb.NewListValue(&structpb.ListValue{Values: elems}))
}

// PortData returns {Port, {data, Bytes}}, the term a port emits when it
// outputs raw bytes
func PortData(port string, data []byte) Term {
	return Tuple(Port(port), Tuple(Atom("data"), Binary(data)))
}

// Encode returns the wire form of t
func Encode(t Term) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	return proto.Marshal(t)
}

// Decode parses the wire form of a term
func Decode(b []byte) (Term, error) {
	t := new(structpb.Value)
	if err := proto.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("%w: %w", gerrors.ErrInvalidTerm, err)
	}
	if err := validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Equal reports whether two terms are identical
func Equal(a, b Term) bool {
	return proto.Equal(a, b)
}

// KindOf returns the kind of t
func KindOf(t Term) Kind {
	key, _, ok := unwrap(t)
	if !ok {
		return KindInvalid
	}

	switch key {
	case atomKey:
		return KindAtom
	case intKey:
		return KindInt
	case binaryKey:
		return KindBinary
	case portKey:
		return KindPort
	case tupleKey:
		return KindTuple
	default:
		return KindInvalid
	}
}

// AsAtom returns the name of an atom
func AsAtom(t Term) (string, bool) {
	return stringOf(t, atomKey)
}

// AsPort returns the identity of a port reference
func AsPort(t Term) (string, bool) {
	return stringOf(t, portKey)
}

// AsInt returns the value of an integer term
func AsInt(t Term) (int64, bool) {
	s, ok := stringOf(t, intKey)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// AsBinary returns the bytes of a binary term
func AsBinary(t Term) ([]byte, bool) {
	s, ok := stringOf(t, binaryKey)
	if !ok {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	return b, err == nil
}

// AsTuple returns the elements of a tuple
func AsTuple(t Term) ([]Term, bool) {
	key, inner, ok := unwrap(t)
	if !ok || key != tupleKey {
		return nil, false
	}
	list := inner.GetListValue()
	if list == nil {
		return nil, false
	}
	return list.GetValues(), true
}

// Format renders t in a compact textual form, e.g. {x,y,z}
func Format(t Term) string {
	var sb strings.Builder
	format(&sb, t)
	return sb.String()
}

func format(sb *strings.Builder, t Term) {
	switch KindOf(t) {
	case KindAtom:
		name, _ := AsAtom(t)
		sb.WriteString(name)
	case KindInt:
		v, _ := AsInt(t)
		sb.WriteString(strconv.FormatInt(v, 10))
	case KindPort:
		id, _ := AsPort(t)
		sb.WriteString("#Port<")
		sb.WriteString(id)
		sb.WriteString(">")
	case KindBinary:
		b, _ := AsBinary(t)
		formatBinary(sb, b)
	case KindTuple:
		elems, _ := AsTuple(t)
		sb.WriteByte('{')
		for i, elem := range elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			format(sb, elem)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("?")
	}
}

func formatBinary(sb *strings.Builder, b []byte) {
	sb.WriteString("<<")
	printable := len(b) > 0
	for _, c := range b {
		if c > unicode.MaxASCII || !unicode.IsPrint(rune(c)) {
			printable = false
			break
		}
	}

	if printable {
		sb.WriteString(strconv.Quote(string(b)))
	} else {
		for i, c := range b {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(int(c)))
		}
	}
	sb.WriteString(">>")
}

func tagged(key string, v *structpb.Value) Term {
	return structpb.NewStructValue(&structpb.Struct{
		Fields: map[string]*structpb.Value{key: v},
	})
}

func unwrap(t Term) (string, *structpb.Value, bool) {
	fields := t.GetStructValue().GetFields()
	if len(fields) != 1 {
		return "", nil, false
	}
	for key, v := range fields {
		return key, v, true
	}
	return "", nil, false
}

func stringOf(t Term, want string) (string, bool) {
	key, inner, ok := unwrap(t)
	if !ok || key != want {
		return "", false
	}
	s, ok := inner.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

func validate(t Term) error {
	kind := KindOf(t)
	valid := true
	switch kind {
	case KindAtom:
		_, valid = AsAtom(t)
	case KindPort:
		_, valid = AsPort(t)
	case KindInt:
		_, valid = AsInt(t)
	case KindBinary:
		_, valid = AsBinary(t)
	case KindTuple:
		elems, ok := AsTuple(t)
		if !ok {
			valid = false
			break
		}
		for _, elem := range elems {
			if err := validate(elem); err != nil {
				return err
			}
		}
	default:
		valid = false
	}

	if !valid {
		return fmt.Errorf("%w: malformed %s", gerrors.ErrInvalidTerm, kind)
	}
	return nil
}
