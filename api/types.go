package api

import (
	"github.com/ruteri/geodata-registry/geodata"
	"github.com/ruteri/geodata-registry/interfaces"
)

// CallerHeader carries the hex address of the acting identity. The server
// trusts it as authentic; authentication happens in front of the service.
const CallerHeader = "X-Caller-Address"

// StoreRequest creates a record. Hashes may be given directly or derived
// from workspace files. DataID is generated when empty.
type StoreRequest struct {
	DataID        string `json:"data_id,omitempty"`
	CipherHash    string `json:"cipher_hash,omitempty"`
	MetadataHash  string `json:"metadata_hash,omitempty"`
	EncryptedFile string `json:"encrypted_file,omitempty"`
	OriginalFile  string `json:"original_file,omitempty"`
	MetadataFile  string `json:"metadata_file,omitempty"`
}

type StoreResponse struct {
	Message      string `json:"message"`
	DataID       string `json:"data_id"`
	CipherHash   string `json:"cipher_hash"`
	MetadataHash string `json:"metadata_hash"`
}

type UpdateRequest struct {
	DataID        string `json:"data_id"`
	CipherHash    string `json:"cipher_hash,omitempty"`
	MetadataHash  string `json:"metadata_hash,omitempty"`
	EncryptedFile string `json:"encrypted_file,omitempty"`
	OriginalFile  string `json:"original_file,omitempty"`
	MetadataFile  string `json:"metadata_file,omitempty"`
}

type AccessRequest struct {
	DataID  string `json:"data_id"`
	Address string `json:"address"`
}

type MessageResponse struct {
	Message string `json:"message"`
	DataID  string `json:"data_id,omitempty"`
	Address string `json:"address,omitempty"`
}

type RetrieveResponse struct {
	DataID       string              `json:"data_id"`
	CipherHash   string              `json:"cipher_hash"`
	MetadataHash string              `json:"metadata_hash"`
	Timestamp    int64               `json:"timestamp"`
	Owner        interfaces.Identity `json:"owner"`
}

type CheckAccessResponse struct {
	DataID    string `json:"data_id"`
	Address   string `json:"address"`
	HasAccess bool   `json:"has_access"`
}

type DataIDsResponse struct {
	DataIDs []string `json:"data_ids"`
	Count   int      `json:"count"`
}

type EncryptRequest struct {
	File   string `json:"file"`
	UseRSA bool   `json:"use_rsa"`
}

type FilesResponse struct {
	Files []geodata.FileInfo `json:"files"`
}
