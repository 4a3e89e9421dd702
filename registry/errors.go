package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/geodata-registry/interfaces"
)

var (
	// ErrNoTransactOpts is returned when a mutation is attempted for a caller with no registered signer.
	ErrNoTransactOpts = errors.New("no authorized transactor available")

	// ErrTransactionReverted is returned when a mined transaction has a failed status.
	ErrTransactionReverted = errors.New("transaction reverted")
)

// revertReasons maps contract revert strings to the store's error taxonomy.
// Matching is by case-insensitive substring.
var revertReasons = []struct {
	substr string
	err    error
}{
	{"already exists", interfaces.ErrDuplicateID},
	{"data not found", interfaces.ErrRecordNotFound},
	{"does not exist", interfaces.ErrRecordNotFound},
	{"not authorized", interfaces.ErrUnauthorized},
	{"only owner", interfaces.ErrUnauthorized},
	{"only the owner", interfaces.ErrUnauthorized},
}

// RevertReason extracts the Error(string) reason from an RPC error.
// When the error carries no decodable revert data the error text is returned.
func RevertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

// classifyContractError rewrites a contract error into one of the store's
// sentinel errors when the revert reason is recognized.
func classifyContractError(err error) error {
	if err == nil {
		return nil
	}

	reason := RevertReason(err)
	lower := strings.ToLower(reason)
	for _, r := range revertReasons {
		if strings.Contains(lower, r.substr) {
			return fmt.Errorf("%w: %s", r.err, reason)
		}
	}
	return err
}
