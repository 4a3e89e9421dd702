package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// GeoDataStorageABI is the ABI of the GeoDataStorage contract.
const GeoDataStorageABI = `[
	{"type":"function","name":"storeData","stateMutability":"nonpayable",
	 "inputs":[{"name":"dataId","type":"string"},{"name":"cipherHash","type":"string"},{"name":"metadataHash","type":"string"}],
	 "outputs":[]},
	{"type":"function","name":"retrieveData","stateMutability":"view",
	 "inputs":[{"name":"dataId","type":"string"}],
	 "outputs":[{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"uint256"},{"name":"","type":"address"}]},
	{"type":"function","name":"updateData","stateMutability":"nonpayable",
	 "inputs":[{"name":"dataId","type":"string"},{"name":"newCipherHash","type":"string"},{"name":"newMetadataHash","type":"string"}],
	 "outputs":[]},
	{"type":"function","name":"grantAccess","stateMutability":"nonpayable",
	 "inputs":[{"name":"dataId","type":"string"},{"name":"grantee","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"revokeAccess","stateMutability":"nonpayable",
	 "inputs":[{"name":"dataId","type":"string"},{"name":"revokee","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"checkAccess","stateMutability":"view",
	 "inputs":[{"name":"dataId","type":"string"},{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getAllDataIds","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"string[]"}]},
	{"type":"function","name":"getMyDataIds","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"string[]"}]}
]`

// Contract method names.
const (
	methodStoreData     = "storeData"
	methodRetrieveData  = "retrieveData"
	methodUpdateData    = "updateData"
	methodGrantAccess   = "grantAccess"
	methodRevokeAccess  = "revokeAccess"
	methodCheckAccess   = "checkAccess"
	methodGetAllDataIds = "getAllDataIds"
	methodGetMyDataIds  = "getMyDataIds"
)

// ParsedABI returns the parsed GeoDataStorage ABI.
func ParsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(GeoDataStorageABI))
}

func bindGeoDataStorage(address common.Address, backend bind.ContractBackend) (*bind.BoundContract, abi.ABI, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, abi.ABI{}, err
	}
	return bind.NewBoundContract(address, parsed, backend, backend, backend), parsed, nil
}
