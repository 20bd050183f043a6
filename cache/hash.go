package cache

import (
	"strconv"

	"github.com/minio/highwayhash"
)

// HashAlgorithm names the digest reported alongside content hashes.
const HashAlgorithm = "highwayhash64"

var key = []byte("0123456789ABCDEF0123456789ABCDEF")

// Hash creates a hash for the input data
func Hash(data []byte) (uint64, error) {
	h, err := highwayhash.New64(key)
	if err != nil {
		return 0, err
	}
	_, err = h.Write(data)
	if err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// HashString returns the hex form of Hash, empty on error
func HashString(data []byte) string {
	h, err := Hash(data)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(h, 16)
}
