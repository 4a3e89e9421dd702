package registry

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/geodata-registry/interfaces"
)

// OnchainRecordStore implements interfaces.RecordStore on top of a deployed
// GeoDataStorage contract.
//
// Reads are eth_calls made from the caller's address. Mutations are signed by
// the transactor registered for the caller with AddSigner and are waited on
// until mined. Calls are serialized so transactions reach the chain in the
// order they were submitted.
type OnchainRecordStore struct {
	contract *bind.BoundContract
	abi      abi.ABI
	caller   bind.ContractCaller
	backend  bind.DeployBackend
	address  common.Address
	log      *slog.Logger

	mutex   sync.Mutex
	signers map[interfaces.Identity]*bind.TransactOpts
}

// NewOnchainRecordStore creates a client for the GeoDataStorage contract at address.
// The ContractBackend serves calls and transactions, the DeployBackend serves receipts.
func NewOnchainRecordStore(client bind.ContractBackend, backend bind.DeployBackend, address common.Address, log *slog.Logger) (*OnchainRecordStore, error) {
	contract, parsed, err := bindGeoDataStorage(address, client)
	if err != nil {
		return nil, err
	}

	return &OnchainRecordStore{
		contract: contract,
		abi:      parsed,
		caller:   client,
		backend:  backend,
		address:  address,
		log:      log,
		signers:  make(map[interfaces.Identity]*bind.TransactOpts),
	}, nil
}

// NewSigner creates a keyed transactor for chainID.
func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// AddSigner registers the transactor used for mutations made by auth.From.
func (c *OnchainRecordStore) AddSigner(auth *bind.TransactOpts) interfaces.Identity {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	who := interfaces.Identity(auth.From)
	c.signers[who] = auth
	return who
}

// Address returns the contract address.
func (c *OnchainRecordStore) Address() common.Address {
	return c.address
}

func (c *OnchainRecordStore) Store(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	return c.transact(ctx, caller, methodStoreData, id, cipherHash, metadataHash)
}

func (c *OnchainRecordStore) Retrieve(ctx context.Context, caller interfaces.Identity, id string) (interfaces.Record, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var out []interface{}
	if err := c.call(ctx, caller, &out, methodRetrieveData, id); err != nil {
		return interfaces.Record{}, err
	}
	if len(out) != 4 {
		return interfaces.Record{}, fmt.Errorf("unexpected retrieveData output length %d", len(out))
	}

	timestamp := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	return interfaces.Record{
		ID:           id,
		CipherHash:   *abi.ConvertType(out[0], new(string)).(*string),
		MetadataHash: *abi.ConvertType(out[1], new(string)).(*string),
		Timestamp:    timestamp.Int64(),
		Owner:        interfaces.Identity(*abi.ConvertType(out[3], new(common.Address)).(*common.Address)),
	}, nil
}

func (c *OnchainRecordStore) UpdateData(ctx context.Context, caller interfaces.Identity, id string, cipherHash string, metadataHash string) error {
	return c.transact(ctx, caller, methodUpdateData, id, cipherHash, metadataHash)
}

func (c *OnchainRecordStore) GrantAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	return c.transact(ctx, caller, methodGrantAccess, id, grantee.Address())
}

func (c *OnchainRecordStore) RevokeAccess(ctx context.Context, caller interfaces.Identity, id string, grantee interfaces.Identity) error {
	return c.transact(ctx, caller, methodRevokeAccess, id, grantee.Address())
}

func (c *OnchainRecordStore) CheckAccess(ctx context.Context, id string, who interfaces.Identity) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var out []interface{}
	if err := c.call(ctx, interfaces.ZeroIdentity, &out, methodCheckAccess, id, who.Address()); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *OnchainRecordStore) ListAllIDs(ctx context.Context) ([]string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.callIDs(ctx, interfaces.ZeroIdentity, methodGetAllDataIds)
}

func (c *OnchainRecordStore) ListMyIDs(ctx context.Context, caller interfaces.Identity) ([]string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.callIDs(ctx, caller, methodGetMyDataIds)
}

func (c *OnchainRecordStore) callIDs(ctx context.Context, caller interfaces.Identity, method string) ([]string, error) {
	var out []interface{}
	if err := c.call(ctx, caller, &out, method); err != nil {
		return nil, err
	}
	ids := *abi.ConvertType(out[0], new([]string)).(*[]string)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (c *OnchainRecordStore) call(ctx context.Context, caller interfaces.Identity, out *[]interface{}, method string, params ...interface{}) error {
	opts := &bind.CallOpts{Context: ctx, From: caller.Address()}
	if err := c.contract.Call(opts, out, method, params...); err != nil {
		return classifyContractError(err)
	}
	return nil
}

// transact sends a state-changing call signed for caller and waits for it to be mined.
func (c *OnchainRecordStore) transact(ctx context.Context, caller interfaces.Identity, method string, params ...interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	signer, ok := c.signers[caller]
	if !ok {
		return ErrNoTransactOpts
	}

	opts := *signer
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		return classifyContractError(err)
	}

	c.log.Debug("transaction sent", "method", method, "tx", tx.Hash().Hex(), "from", caller.String())

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		c.log.Warn("transaction reverted", "method", method, "tx", tx.Hash().Hex())
		if cause := c.revertCause(ctx, opts.From, tx, receipt); cause != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrTransactionReverted, method, tx.Hash().Hex(), cause)
		}
		return fmt.Errorf("%w: %s %s", ErrTransactionReverted, method, tx.Hash().Hex())
	}
	return nil
}

// revertCause replays a reverted transaction as a call against the state of
// the block it was mined in and returns the matching store error, if any.
// A transaction can pass gas estimation and still revert when another one
// lands first, for example two writers storing the same id.
func (c *OnchainRecordStore) revertCause(ctx context.Context, from common.Address, tx *types.Transaction, receipt *types.Receipt) error {
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := c.caller.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return nil
	}

	classified := classifyContractError(err)
	for _, sentinel := range []error{interfaces.ErrDuplicateID, interfaces.ErrRecordNotFound, interfaces.ErrUnauthorized} {
		if errors.Is(classified, sentinel) {
			return classified
		}
	}
	c.log.Debug("could not classify revert", "tx", tx.Hash().Hex(), "err", err)
	return nil
}
