package columnar

import "math/bits"

// Bitmap is a growable LSB-first bit vector laid out like an Arrow validity
// buffer: bit i lives in byte i/8 at position i%8.
type Bitmap struct {
	bytes []byte
	n     int
}

// NewBitmap returns an empty bitmap with room for capacity bits.
func NewBitmap(capacity int) *Bitmap {
	return &Bitmap{bytes: make([]byte, 0, (capacity+7)/8)}
}

// Append adds one bit.
func (b *Bitmap) Append(v bool) {
	if b.n%8 == 0 {
		b.bytes = append(b.bytes, 0)
	}
	if v {
		b.bytes[b.n/8] |= 1 << (b.n % 8)
	}
	b.n++
}

// AppendN adds n copies of v.
func (b *Bitmap) AppendN(v bool, n int) {
	for i := 0; i < n; i++ {
		b.Append(v)
	}
}

// Get returns bit i.
func (b *Bitmap) Get(i int) bool {
	return b.bytes[i/8]&(1<<(i%8)) != 0
}

// Len returns the number of bits.
func (b *Bitmap) Len() int {
	return b.n
}

// CountSet returns the number of set bits.
func (b *Bitmap) CountSet() int {
	count := 0
	for _, x := range b.bytes {
		count += bits.OnesCount8(x)
	}
	return count
}

// Bytes returns the backing bytes, exactly (Len+7)/8 long. Bits past Len
// are zero.
func (b *Bitmap) Bytes() []byte {
	return b.bytes[:len(b.bytes):len(b.bytes)]
}

// Reset empties the bitmap and keeps its storage.
func (b *Bitmap) Reset() {
	b.bytes = b.bytes[:0]
	b.n = 0
}
