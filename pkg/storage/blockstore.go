package storage

import (
	"sync"

	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

// InMemoryBlockStore keeps the chain for an ephemeral node. Nothing survives
// a restart.
type InMemoryBlockStore struct {
	mu        sync.Mutex
	blocks    map[consensus.Hash]consensus.Block
	byHeight  map[consensus.Height]consensus.Hash
	committed *consensus.Hash
}

func NewInMemoryBlockStore() *InMemoryBlockStore {
	return &InMemoryBlockStore{
		blocks:   make(map[consensus.Hash]consensus.Block),
		byHeight: make(map[consensus.Height]consensus.Hash),
	}
}

func (s *InMemoryBlockStore) SaveBlock(b consensus.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := consensus.HashOfBlock(b)
	s.blocks[h] = b
	s.byHeight[b.Height] = h
	return nil
}

func (s *InMemoryBlockStore) GetBlock(h consensus.Hash) (consensus.Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[h]
	return b, ok, nil
}

func (s *InMemoryBlockStore) BlockAt(height consensus.Height) (consensus.Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byHeight[height]
	if !ok {
		return consensus.Block{}, false, nil
	}
	return s.blocks[h], true, nil
}

func (s *InMemoryBlockStore) SetCommitted(h consensus.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = &h
	return nil
}

func (s *InMemoryBlockStore) GetCommitted() (consensus.Hash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed == nil {
		return consensus.Hash{}, false, nil
	}
	return *s.committed, true, nil
}

var _ consensus.BlockStore = (*InMemoryBlockStore)(nil)
