package domain

import "github.com/ethereum/go-ethereum/common"

// User maps a participant address to its compact registry id.
type User struct {
	ID      uint64
	Address common.Address
}
