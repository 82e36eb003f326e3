package object

import (
	"hash/fnv"

	"github.com/valp-lang/valp/pkg/value"
)

// String is an immutable, interned UTF-8 byte sequence. Canonical
// instances are produced by Heap.Intern so that string-equality reduces
// to pointer identity; NewString builds an uninterned instance outside
// the heap and the intern table.
type String struct {
	header
	bytes []byte
	hash  uint32
}

func NewString(s string) *String {
	return &String{header: header{kind: value.ObjString}, bytes: []byte(s), hash: HashString(s)}
}

// HashString is the FNV-1a 32-bit hash used to key the intern table.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (s *String) Bytes() []byte { return s.bytes }
func (s *String) Hash() uint32  { return s.hash }
func (s *String) Go() string    { return string(s.bytes) }
func (s *String) Len() int      { return len(s.bytes) }

func (s *String) String() string { return string(s.bytes) }

// Equal is reference identity: once interned, two Strings with equal
// content are the same pointer.
func (s *String) Equal(other value.Obj) bool {
	o, ok := other.(*String)
	return ok && o == s
}
