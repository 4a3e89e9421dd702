package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/geodata-registry/interfaces"
	"github.com/ruteri/geodata-registry/recordstore"
)

var blockTime = time.Unix(1710000000, 0)

// fakeChain is a contract backend that executes GeoDataStorage calls
// against an in-memory record store. It mines every transaction into its
// own block as soon as it is sent.
type fakeChain struct {
	mu       sync.Mutex
	abi      abi.ABI
	contract common.Address
	chainID  *big.Int
	store    *recordstore.MemoryStore
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	block    int64

	// skipEstimateChecks makes gas estimation succeed unconditionally so
	// that failing calls revert when mined instead.
	skipEstimateChecks bool
}

func newFakeChain(contract common.Address, chainID *big.Int) *fakeChain {
	parsed, err := ParsedABI()
	if err != nil {
		panic(err)
	}
	return &fakeChain{
		abi:      parsed,
		contract: contract,
		chainID:  chainID,
		store:    recordstore.NewMemoryStore().WithClock(func() time.Time { return blockTime }),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// revertError mimics the JSON-RPC error geth returns for a reverted call.
type revertError struct {
	reason string
}

func (e *revertError) Error() string  { return "execution reverted: " + e.reason }
func (e *revertError) ErrorCode() int { return 3 }
func (e *revertError) ErrorData() interface{} {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(e.reason)
	// Error(string) selector
	data := append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)
	return hexutil.Encode(data)
}

func toRevert(err error) error {
	switch {
	case errors.Is(err, interfaces.ErrDuplicateID):
		return &revertError{"Data ID already exists"}
	case errors.Is(err, interfaces.ErrRecordNotFound):
		return &revertError{"Data not found"}
	case errors.Is(err, interfaces.ErrUnauthorized):
		return &revertError{"Not authorized: caller does not have access"}
	default:
		return err
	}
}

func (f *fakeChain) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("short calldata")
	}
	method, err := f.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (f *fakeChain) view(ctx context.Context, from interfaces.Identity, method *abi.Method, args []interface{}) ([]byte, error) {
	switch method.Name {
	case methodRetrieveData:
		rec, err := f.store.Retrieve(ctx, from, args[0].(string))
		if err != nil {
			return nil, toRevert(err)
		}
		return method.Outputs.Pack(rec.CipherHash, rec.MetadataHash, big.NewInt(rec.Timestamp), rec.Owner.Address())
	case methodCheckAccess:
		ok, err := f.store.CheckAccess(ctx, args[0].(string), interfaces.Identity(args[1].(common.Address)))
		if err != nil {
			return nil, toRevert(err)
		}
		return method.Outputs.Pack(ok)
	case methodGetAllDataIds:
		ids, _ := f.store.ListAllIDs(ctx)
		return method.Outputs.Pack(ids)
	case methodGetMyDataIds:
		ids, _ := f.store.ListMyIDs(ctx, from)
		return method.Outputs.Pack(ids)
	default:
		return nil, fmt.Errorf("%s is not a view method", method.Name)
	}
}

// precheck reports the error a mutation would revert with, without applying it.
func (f *fakeChain) precheck(ctx context.Context, from interfaces.Identity, method *abi.Method, args []interface{}) error {
	id := args[0].(string)
	if method.Name == methodStoreData {
		if _, err := f.store.CheckAccess(ctx, id, from); err == nil {
			return interfaces.ErrDuplicateID
		}
		return nil
	}

	rec, err := f.store.Retrieve(ctx, from, id)
	if err != nil {
		return err
	}
	if rec.Owner != from {
		return interfaces.ErrUnauthorized
	}
	return nil
}

func (f *fakeChain) apply(ctx context.Context, from interfaces.Identity, method *abi.Method, args []interface{}) error {
	id := args[0].(string)
	switch method.Name {
	case methodStoreData:
		return f.store.Store(ctx, from, id, args[1].(string), args[2].(string))
	case methodUpdateData:
		return f.store.UpdateData(ctx, from, id, args[1].(string), args[2].(string))
	case methodGrantAccess:
		return f.store.GrantAccess(ctx, from, id, interfaces.Identity(args[1].(common.Address)))
	case methodRevokeAccess:
		return f.store.RevokeAccess(ctx, from, id, interfaces.Identity(args[1].(common.Address)))
	default:
		return fmt.Errorf("%s is not a mutating method", method.Name)
	}
}

func (f *fakeChain) code(addr common.Address) []byte {
	if addr == f.contract {
		return []byte{0x60, 0x80}
	}
	return nil
}

func (f *fakeChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return f.code(contract), nil
}

func (f *fakeChain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return f.code(account), nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method, args, err := f.decode(call.Data)
	if err != nil {
		return nil, err
	}
	if !method.IsConstant() {
		if err := f.precheck(ctx, interfaces.Identity(call.From), method, args); err != nil {
			return nil, toRevert(err)
		}
		return nil, nil
	}
	return f.view(ctx, interfaces.Identity(call.From), method, args)
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &types.Header{
		Number:  big.NewInt(f.block),
		Time:    uint64(blockTime.Unix()),
		BaseFee: big.NewInt(1_000_000_000),
	}, nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method, args, err := f.decode(call.Data)
	if err != nil {
		return 0, err
	}
	if !f.skipEstimateChecks {
		if err := f.precheck(ctx, interfaces.Identity(call.From), method, args); err != nil {
			return 0, toRevert(err)
		}
	}
	return 100_000, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != f.nonces[from] {
		return fmt.Errorf("nonce too low: have %d want %d", tx.Nonce(), f.nonces[from])
	}

	method, args, err := f.decode(tx.Data())
	if err != nil {
		return err
	}

	status := types.ReceiptStatusSuccessful
	if err := f.apply(ctx, interfaces.Identity(from), method, args); err != nil {
		status = types.ReceiptStatusFailed
	}

	f.nonces[from]++
	f.block++
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(f.block),
		GasUsed:     21_000,
	}
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeChain) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeChain) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}
