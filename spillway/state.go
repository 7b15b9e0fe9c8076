package spillway

import "sync"

// pairState is the durable per-(sender, recipient) counters spec §4.8
// requires: the next sequence number this party will allocate when
// sending to the peer, and the highest sequence number received from the
// peer.
type pairState struct {
	sendSeq uint64
	recvSeq uint64
}

// State persists per-pair send/recv sequence counters. MemoryState is the
// in-process reference implementation; a durable implementation would
// back it with local disk storage, per the "persistent on the sender
// side" / "persistent on the recipient side" language in spec §4.8.
type State interface {
	NextSendSeq(self, peer string) (uint64, error)
	RecvSeq(self, peer string) (uint64, error)
	SetRecvSeq(self, peer string, seq uint64) error
}

// MemoryState is a mutex-protected in-memory State.
type MemoryState struct {
	mu    sync.Mutex
	pairs map[string]*pairState
}

// NewMemoryState creates an empty MemoryState.
func NewMemoryState() *MemoryState {
	return &MemoryState{pairs: make(map[string]*pairState)}
}

func pairKey(a, b string) string { return a + "\x00" + b }

func (s *MemoryState) pair(self, peer string) *pairState {
	key := pairKey(self, peer)
	p, ok := s.pairs[key]
	if !ok {
		p = &pairState{}
		s.pairs[key] = p
	}
	return p
}

// NextSendSeq atomically allocates and returns the next send sequence
// number for (self -> peer), strictly monotonic starting at 1.
func (s *MemoryState) NextSendSeq(self, peer string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pair(self, peer)
	p.sendSeq++
	return p.sendSeq, nil
}

// RecvSeq returns the highest sequence number received from peer.
func (s *MemoryState) RecvSeq(self, peer string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair(peer, self).recvSeq, nil
}

// SetRecvSeq advances recv_seq(peer->self) to seq if seq is larger than
// the current value (recv_seq is enforced non-decreasing, per spec
// §4.8.3).
func (s *MemoryState) SetRecvSeq(self, peer string, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pair(peer, self)
	if seq > p.recvSeq {
		p.recvSeq = seq
	}
	return nil
}
