package segment

import "sort"

// OffsetTable maps character offsets to chunk indexes and back.
type OffsetTable struct {
	chunks []Chunk
}

// NewOffsetTable builds a table over chunks, which must be ordered and
// contiguous as returned by Segment.
func NewOffsetTable(chunks []Chunk) OffsetTable {
	return OffsetTable{chunks: chunks}
}

// Len returns the number of chunks.
func (t OffsetTable) Len() int {
	return len(t.chunks)
}

// Total returns the length in bytes of the text the table covers.
func (t OffsetTable) Total() int {
	if len(t.chunks) == 0 {
		return 0
	}
	return t.chunks[len(t.chunks)-1].End
}

// Range returns the [start, end) range of chunk i.
func (t OffsetTable) Range(i int) (start, end int) {
	if i < 0 || i >= len(t.chunks) {
		return 0, 0
	}
	c := t.chunks[i]
	return c.Start, c.End
}

// Chunk returns chunk i.
func (t OffsetTable) Chunk(i int) (Chunk, bool) {
	if i < 0 || i >= len(t.chunks) {
		return Chunk{}, false
	}
	return t.chunks[i], true
}

// ChunkAt returns the index of the chunk whose range contains char.
// Negative offsets map to the first chunk, offsets at or past the end map
// to the last one. An empty table returns 0.
func (t OffsetTable) ChunkAt(char int) int {
	n := len(t.chunks)
	if n == 0 || char <= 0 {
		return 0
	}
	if char >= t.Total() {
		return n - 1
	}
	return sort.Search(n, func(i int) bool {
		return t.chunks[i].End > char
	})
}
