package world

type ChunkKey struct {
	CX int
	CZ int
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*16 + y*256
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	c.Blocks[c.index(x, y, z)] = b
}

type WorldGen struct {
	Seed      int64
	Height    int
	BoundaryR int // blocks

	// Palette ids for the terrain blocks.
	Air     uint16
	Bedrock uint16
	Stone   uint16
	Dirt    uint16
	Grass   uint16
	Sand    uint16
	IronOre uint16
}

type ChunkStore struct {
	gen WorldGen
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) InBounds(pos [3]int) bool {
	if pos[1] < 0 || pos[1] >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if pos[0] < -s.gen.BoundaryR || pos[0] > s.gen.BoundaryR || pos[2] < -s.gen.BoundaryR || pos[2] > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunks() int { return len(s.chunks) }

func (s *ChunkStore) GetBlock(pos [3]int) uint16 {
	if !s.InBounds(pos) {
		return s.gen.Air
	}
	cx := floorDiv(pos[0], 16)
	cz := floorDiv(pos[2], 16)
	ch := s.getOrGenChunk(cx, cz)
	return ch.Get(mod(pos[0], 16), pos[1], mod(pos[2], 16))
}

func (s *ChunkStore) SetBlock(pos [3]int, b uint16) {
	if !s.InBounds(pos) {
		return
	}
	cx := floorDiv(pos[0], 16)
	cz := floorDiv(pos[2], 16)
	ch := s.getOrGenChunk(cx, cz)
	ch.Set(mod(pos[0], 16), pos[1], mod(pos[2], 16), b)
}

func (s *ChunkStore) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.gen.Height,
		Blocks: make([]uint16, 16*16*s.gen.Height),
	}
	s.generateChunk(ch)
	s.chunks[k] = ch
	return ch
}

// generateChunk fills flat, layered terrain: bedrock floor, stone body
// with an ore sprinkle, soil, surface, air above. Sand patches replace
// the soil and surface layers where the column noise says so.
func (s *ChunkStore) generateChunk(ch *Chunk) {
	h := s.gen.Height
	surface := h - 2
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			wx := ch.CX*16 + x
			wz := ch.CZ*16 + z
			sandy := hash2(s.gen.Seed, wx, wz)%5 == 0
			for y := 0; y < h; y++ {
				var b uint16
				switch {
				case y == 0:
					b = s.gen.Bedrock
				case y < surface-1:
					b = s.gen.Stone
					if hash3(s.gen.Seed, wx, y, wz)%1000 < 40 {
						b = s.gen.IronOre
					}
				case y == surface-1:
					if sandy {
						b = s.gen.Sand
					} else {
						b = s.gen.Dirt
					}
				case y == surface:
					if sandy {
						b = s.gen.Sand
					} else {
						b = s.gen.Grass
					}
				default:
					b = s.gen.Air
				}
				ch.Blocks[ch.index(x, y, z)] = b
			}
		}
	}
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
