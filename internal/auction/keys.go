package auction

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key layout. Every record lives in one ordered keyspace:
//
//	m<name>                               counters and global fee state
//	a<auction>                            auction header
//	o<auction><order>                     order
//	i<auction><price><order>              live order price index, value = sell amount
//	c<auction>                            clearing cursor
//	u<address> / U<user>                  user registry, both directions
//	s<asset>                              registered asset
//	b<asset><holder>                      balance
//	l<asset><owner><spender>              allowance
const (
	prefixMeta      byte = 'm'
	prefixAuction   byte = 'a'
	prefixOrder     byte = 'o'
	prefixIndex     byte = 'i'
	prefixCursor    byte = 'c'
	prefixUser      byte = 'u'
	prefixUserID    byte = 'U'
	prefixAsset     byte = 's'
	prefixBalance   byte = 'b'
	prefixAllowance byte = 'l'
)

var (
	keyAuctionSeq = []byte{prefixMeta, 'a', 'u', 'c', 't', 'i', 'o', 'n', 's'}
	keyUserSeq    = []byte{prefixMeta, 'u', 's', 'e', 'r', 's'}
	keyFees       = []byte{prefixMeta, 'f', 'e', 'e', 's'}
)

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func key(prefix byte, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	k := make([]byte, 0, n)
	k = append(k, prefix)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func auctionKey(id uint64) []byte { return key(prefixAuction, be64(id)) }

func auctionPrefix() []byte { return []byte{prefixAuction} }

func orderKey(auctionID, orderID uint64) []byte {
	return key(prefixOrder, be64(auctionID), be64(orderID))
}

func orderPrefix(auctionID uint64) []byte { return key(prefixOrder, be64(auctionID)) }

func indexKey(auctionID uint64, price []byte, orderID uint64) []byte {
	return key(prefixIndex, be64(auctionID), price, be64(orderID))
}

func indexPrefix(auctionID uint64) []byte { return key(prefixIndex, be64(auctionID)) }

// orderIDFromIndex reads the trailing order id of an index key.
func orderIDFromIndex(k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(k)-8:])
}

func cursorKey(auctionID uint64) []byte { return key(prefixCursor, be64(auctionID)) }

func userKey(addr common.Address) []byte { return key(prefixUser, addr.Bytes()) }

func userIDKey(id uint64) []byte { return key(prefixUserID, be64(id)) }

func assetKey(asset common.Address) []byte { return key(prefixAsset, asset.Bytes()) }

func balanceKey(asset, holder common.Address) []byte {
	return key(prefixBalance, asset.Bytes(), holder.Bytes())
}

func allowanceKey(asset, owner, spender common.Address) []byte {
	return key(prefixAllowance, asset.Bytes(), owner.Bytes(), spender.Bytes())
}
