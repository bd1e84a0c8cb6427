package tlsf

// chunkIndex addresses a chunk record in a chunkStore. The zero value is the nil link.
type chunkIndex int32

const nilChunk chunkIndex = 0

// chunk describes one contiguous range of the arena. Every chunk is linked to its physical
// neighbours; free chunks are additionally linked into the free list of their size class.
type chunk struct {
	offset uint32
	size   uint32

	prevPhysical chunkIndex
	nextPhysical chunkIndex

	prevFree chunkIndex
	nextFree chunkIndex

	free bool
}

// chunkStore is a slot arena of chunk records. Released slots are reused before the backing
// slice grows. Pointers returned by at are invalidated by the next call to allocate.
type chunkStore struct {
	records []chunk
	vacant  []chunkIndex
}

func newChunkStore(capacity int) chunkStore {
	records := make([]chunk, 1, capacity+1)
	return chunkStore{records: records}
}

func (s *chunkStore) allocate() chunkIndex {
	if len(s.vacant) > 0 {
		index := s.vacant[len(s.vacant)-1]
		s.vacant = s.vacant[:len(s.vacant)-1]
		return index
	}

	s.records = append(s.records, chunk{})
	return chunkIndex(len(s.records) - 1)
}

func (s *chunkStore) release(index chunkIndex) {
	s.records[index] = chunk{}
	s.vacant = append(s.vacant, index)
}

func (s *chunkStore) at(index chunkIndex) *chunk {
	if index == nilChunk {
		panic("attempted to dereference the nil chunk")
	}
	return &s.records[index]
}

// live returns the number of chunk records currently in use
func (s *chunkStore) live() int {
	return len(s.records) - 1 - len(s.vacant)
}

// insertFree marks a chunk free and pushes it to the head of the free list for its floor class
func (p *Pool) insertFree(index chunkIndex) {
	c := p.chunks.at(index)
	if c.free {
		panic("chunk is already free")
	}

	class := classForChunk(c.size)
	if !class.valid() {
		panic("chunk is smaller than the minimum allocation size")
	}

	head := p.freeLists[class.first][class.second]
	c.free = true
	c.prevFree = nilChunk
	c.nextFree = head
	p.freeLists[class.first][class.second] = index

	if head != nilChunk {
		p.chunks.at(head).prevFree = index
	} else {
		p.bitmap.set(class)
	}

	p.freeCount++
	p.freeSize += c.size
}

// removeFree unlinks a free chunk from the free list for its floor class and marks it taken
func (p *Pool) removeFree(index chunkIndex) {
	c := p.chunks.at(index)
	if !c.free {
		panic("provided chunk is not free")
	}

	if c.nextFree != nilChunk {
		p.chunks.at(c.nextFree).prevFree = c.prevFree
	}

	if c.prevFree != nilChunk {
		p.chunks.at(c.prevFree).nextFree = c.nextFree
	} else {
		class := classForChunk(c.size)
		if p.freeLists[class.first][class.second] != index {
			panic("chunk was not in the free list at the expected location")
		}

		p.freeLists[class.first][class.second] = c.nextFree
		if c.nextFree == nilChunk {
			p.bitmap.unset(class)
		}
	}

	c.free = false
	c.prevFree = nilChunk
	c.nextFree = nilChunk
	p.freeCount--
	p.freeSize -= c.size
}

// popFree removes and returns the head of a class's free list, which must be non-empty
func (p *Pool) popFree(class sizeClass) chunkIndex {
	index := p.freeLists[class.first][class.second]
	if index == nilChunk {
		panic("free list was listed as having free chunks, but no chunks were in the free list")
	}

	p.removeFree(index)
	return index
}

// splitAt cuts the chunk at index so that it is exactly size bytes long and returns a new,
// taken chunk covering the rest of its range. The new chunk is spliced into the physical
// chain directly after index.
func (p *Pool) splitAt(index chunkIndex, size uint32) chunkIndex {
	rest := p.chunks.allocate()

	c := p.chunks.at(index)
	r := p.chunks.at(rest)
	r.offset = c.offset + size
	r.size = c.size - size
	r.prevPhysical = index
	r.nextPhysical = c.nextPhysical

	if r.nextPhysical != nilChunk {
		p.chunks.at(r.nextPhysical).prevPhysical = rest
	} else {
		p.tail = rest
	}

	c.nextPhysical = rest
	c.size = size

	return rest
}

// trim shrinks a taken chunk to size and returns the remainder to the free lists, as long
// as the remainder is large enough to be tracked. Smaller remainders stay in the chunk as slack.
func (p *Pool) trim(index chunkIndex, size uint32) {
	if p.chunks.at(index).size-size < MinimumAllocationSize {
		return
	}

	rest := p.splitAt(index, size)
	p.release(rest)
}

// absorbNext merges the physical successor of index into it and releases the successor's
// record. Neither chunk may be in a free list.
func (p *Pool) absorbNext(index chunkIndex) {
	c := p.chunks.at(index)
	nextIndex := c.nextPhysical
	next := p.chunks.at(nextIndex)
	if next.free || c.free {
		panic("cannot merge a chunk that belongs to the free list")
	}

	c.size += next.size
	c.nextPhysical = next.nextPhysical
	if c.nextPhysical != nilChunk {
		p.chunks.at(c.nextPhysical).prevPhysical = index
	} else {
		p.tail = index
	}

	p.chunks.release(nextIndex)
}

// release returns a taken chunk to the free lists, merging it with free physical neighbours
// first. It returns the index of the free chunk that now contains the released range.
func (p *Pool) release(index chunkIndex) chunkIndex {
	prev := p.chunks.at(index).prevPhysical
	if prev != nilChunk && p.chunks.at(prev).free {
		p.removeFree(prev)
		p.absorbNext(prev)
		index = prev
	}

	next := p.chunks.at(index).nextPhysical
	if next != nilChunk && p.chunks.at(next).free {
		p.removeFree(next)
		p.absorbNext(index)
	}

	p.insertFree(index)
	return index
}

// carve takes a taken range [offset, offset+size) back out of the free chunk at index, which
// must contain it. Any free space before or after the range is split off and returned to the
// free lists.
func (p *Pool) carve(index chunkIndex, offset, size uint32) chunkIndex {
	p.removeFree(index)

	if lead := offset - p.chunks.at(index).offset; lead > 0 {
		rest := p.splitAt(index, lead)
		p.insertFree(index)
		index = rest
	}

	if p.chunks.at(index).size > size {
		rest := p.splitAt(index, size)
		p.insertFree(rest)
	}

	return index
}
