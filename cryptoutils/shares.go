package cryptoutils

import (
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

// SplitMasterSeed splits a master seed into Shamir shares so that no single
// operator holds it. Any threshold of the shares recover the seed.
func SplitMasterSeed(seed []byte, shares, threshold int) ([][]byte, error) {
	if len(seed) < 32 {
		return nil, errors.New("master seed must be at least 32 bytes")
	}
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	if shares < threshold {
		return nil, errors.New("total shares must be at least equal to threshold")
	}

	parts, err := shamir.Split(seed, shares, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split master seed: %w", err)
	}
	return parts, nil
}

// CombineMasterSeed recovers a seed from shares. Input shares are wiped.
func CombineMasterSeed(shares [][]byte) ([]byte, error) {
	if len(shares) < 2 {
		return nil, errors.New("at least two shares are required")
	}

	seed, err := shamir.Combine(shares)
	for _, share := range shares {
		wipeBytes(share)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct master seed: %w", err)
	}
	return seed, nil
}

func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
