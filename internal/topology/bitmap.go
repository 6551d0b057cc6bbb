// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const wordBits = 64

// Bitmap is a fixed-width set of logical CPUs packed into 64-bit words.
// Bit i of word i/64 represents CPU i.
type Bitmap struct {
	width int
	words []uint64
}

// NewBitmap returns an empty bitmap covering width logical CPUs.
func NewBitmap(width int) Bitmap {
	if width < 0 {
		width = 0
	}
	return Bitmap{width: width, words: make([]uint64, (width+wordBits-1)/wordBits)}
}

// FullBitmap returns a bitmap with every CPU below width set.
func FullBitmap(width int) Bitmap {
	b := NewBitmap(width)
	for cpu := 0; cpu < width; cpu++ {
		b.words[cpu/wordBits] |= 1 << (cpu % wordBits)
	}
	return b
}

// BitmapOf returns a bitmap of the given width with the listed CPUs set.
func BitmapOf(width int, cpus ...int) (Bitmap, error) {
	b := NewBitmap(width)
	for _, cpu := range cpus {
		if err := b.Set(cpu); err != nil {
			return Bitmap{}, err
		}
	}
	return b, nil
}

// ParseCPUList parses the kernel cpulist format ("0-3,8,10-11") into a
// bitmap of the given width.
func ParseCPUList(list string, width int) (Bitmap, error) {
	b := NewBitmap(width)
	list = strings.TrimSpace(list)
	if list == "" {
		return b, nil
	}
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		lo, hi, isRange := strings.Cut(field, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return Bitmap{}, fmt.Errorf("%w: cpu list %q: %v", ErrInvalidArgument, list, err)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(hi); err != nil {
				return Bitmap{}, fmt.Errorf("%w: cpu list %q: %v", ErrInvalidArgument, list, err)
			}
		}
		if end < start {
			return Bitmap{}, fmt.Errorf("%w: cpu list %q: descending range", ErrInvalidArgument, list)
		}
		for cpu := start; cpu <= end; cpu++ {
			if err := b.Set(cpu); err != nil {
				return Bitmap{}, err
			}
		}
	}
	return b, nil
}

// Width returns the number of logical CPUs the bitmap covers.
func (b Bitmap) Width() int {
	return b.width
}

// Set adds cpu to the bitmap.
func (b *Bitmap) Set(cpu int) error {
	if cpu < 0 || cpu >= b.width {
		return fmt.Errorf("%w: cpu %d outside bitmap width %d", ErrInvalidArgument, cpu, b.width)
	}
	b.words[cpu/wordBits] |= 1 << (cpu % wordBits)
	return nil
}

// Has reports whether cpu is in the bitmap.
func (b Bitmap) Has(cpu int) bool {
	if cpu < 0 || cpu >= b.width {
		return false
	}
	return b.words[cpu/wordBits]&(1<<(cpu%wordBits)) != 0
}

// Count returns the number of CPUs set.
func (b Bitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether no CPU is set.
func (b Bitmap) IsEmpty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// CPUs returns the set CPUs in ascending order.
func (b Bitmap) CPUs() []int {
	cpus := make([]int, 0, b.Count())
	for i, w := range b.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			cpus = append(cpus, i*wordBits+bit)
			w &^= 1 << bit
		}
	}
	return cpus
}

// Clone returns a copy that shares no storage with b.
func (b Bitmap) Clone() Bitmap {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return Bitmap{width: b.width, words: words}
}

// Union returns the CPUs present in b or o. Both bitmaps must have the same width.
func (b Bitmap) Union(o Bitmap) (Bitmap, error) {
	if b.width != o.width {
		return Bitmap{}, fmt.Errorf("%w: bitmap width %d does not match %d", ErrInvalidArgument, o.width, b.width)
	}
	u := b.Clone()
	for i := range u.words {
		u.words[i] |= o.words[i]
	}
	return u, nil
}

// Equal reports whether both bitmaps have the same width and CPUs.
func (b Bitmap) Equal(o Bitmap) bool {
	if b.width != o.width {
		return false
	}
	for i := range b.words {
		if b.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Words32 returns the bitmap as 32-bit words, most significant word first.
// With 80 CPUs word 0 holds CPUs 79-64 in its low bits and word 2 holds CPUs 31-0.
func (b Bitmap) Words32() []uint32 {
	n := (b.width + 31) / 32
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		lowCPU := (n - 1 - i) * 32
		w := b.words[lowCPU/wordBits]
		out[i] = uint32(w >> (lowCPU % wordBits))
	}
	return out
}

// String renders the bitmap in cpulist format.
func (b Bitmap) String() string {
	cpus := b.CPUs()
	var sb strings.Builder
	for i := 0; i < len(cpus); {
		j := i
		for j+1 < len(cpus) && cpus[j+1] == cpus[j]+1 {
			j++
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(cpus[i]))
		if j > i {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(cpus[j]))
		}
		i = j + 1
	}
	return sb.String()
}
