// Package auth implements wallet login: the server hands out a one-time
// challenge, the client signs it with EIP-191, and a verified signature is
// exchanged for a short-lived JWT whose subject is the wallet address.
package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/batchauction/internal/crypto"
	"github.com/alanyoungcy/batchauction/internal/domain"
)

// Challenge is an outstanding login challenge.
type Challenge struct {
	Address   common.Address
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

// Challenges keeps at most one pending challenge per address. Each challenge
// is consumed by the first login attempt, successful or not.
type Challenges struct {
	pending map[common.Address]Challenge
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// NewChallenges creates a store whose challenges expire after ttl.
func NewChallenges(ttl time.Duration) *Challenges {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Challenges{
		pending: make(map[common.Address]Challenge),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue creates a fresh challenge for addr, replacing any previous one.
func (c *Challenges) Issue(addr common.Address) Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	ch := Challenge{
		Address:   addr,
		Nonce:     uuid.NewString(),
		ExpiresAt: now.Add(c.ttl),
	}
	ch.Message = challengeMessage(ch)
	c.pending[addr] = ch
	c.cleanupLocked(now)
	return ch
}

// Verify consumes addr's challenge and checks sig against it.
func (c *Challenges) Verify(addr common.Address, sig string) error {
	c.mu.Lock()
	ch, ok := c.pending[addr]
	delete(c.pending, addr)
	now := c.now()
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("auth: no pending challenge for %s: %w", addr.Hex(), domain.ErrUnauthorized)
	}
	if !now.Before(ch.ExpiresAt) {
		return fmt.Errorf("auth: challenge expired: %w", domain.ErrUnauthorized)
	}
	if err := crypto.VerifyText([]byte(ch.Message), sig, addr); err != nil {
		return fmt.Errorf("auth: %v: %w", err, domain.ErrUnauthorized)
	}
	return nil
}

// Len reports the number of pending challenges.
func (c *Challenges) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Challenges) cleanupLocked(now time.Time) {
	for addr, ch := range c.pending {
		if !now.Before(ch.ExpiresAt) {
			delete(c.pending, addr)
		}
	}
}

func challengeMessage(ch Challenge) string {
	var b strings.Builder
	b.WriteString("Sign in to batchauction\n")
	fmt.Fprintf(&b, "address: %s\n", ch.Address.Hex())
	fmt.Fprintf(&b, "nonce: %s\n", ch.Nonce)
	fmt.Fprintf(&b, "expires: %s", ch.ExpiresAt.Format(time.RFC3339))
	return b.String()
}
