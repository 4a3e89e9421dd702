package geodata

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ruteri/geodata-registry/cryptoutils"
	"github.com/ruteri/geodata-registry/interfaces"
)

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrInvalidContent      = errors.New("invalid file content")
	ErrRSAUnavailable      = errors.New("rsa key sealing is not configured")
)

var allowedExtensions = map[string]bool{
	"csv":  true,
	"json": true,
	"xlsx": true,
}

const (
	encryptedSuffix = ".enc"
	metadataSuffix  = ".meta"
	keySuffix       = ".key"
)

// Config wires the service. Sealer is required, RSASealer and Storage are optional.
type Config struct {
	Workspace string
	Sealer    cryptoutils.KeySealer
	RSASealer cryptoutils.KeySealer
	Storage   interfaces.StorageBackend
}

type Service struct {
	dir       string
	sealer    cryptoutils.KeySealer
	rsaSealer cryptoutils.KeySealer
	storage   interfaces.StorageBackend
	log       *slog.Logger
	now       func() time.Time
}

type UploadResult struct {
	Message       string   `json:"message"`
	OriginalFile  string   `json:"original_file"`
	ProcessedFile string   `json:"processed_file"`
	Rows          int      `json:"rows,omitempty"`
	Columns       []string `json:"columns,omitempty"`
	Size          int64    `json:"size"`
}

type EncryptResult struct {
	Message       string `json:"message"`
	OriginalFile  string `json:"original_file"`
	EncryptedFile string `json:"encrypted_file"`
	KeyFile       string `json:"key_file"`
	MetadataFile  string `json:"metadata_file"`
	CipherHash    string `json:"cipher_hash"`
	MetadataHash  string `json:"metadata_hash"`
	Method        string `json:"encryption_method"`
}

type FileInfo struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Type     string  `json:"type"`
	Modified float64 `json:"modified"`
}

// EncryptionMetadata is written next to every encrypted file.
type EncryptionMetadata struct {
	OriginalFilename    string `json:"original_filename"`
	EncryptedFilename   string `json:"encrypted_filename"`
	EncryptionTimestamp string `json:"encryption_timestamp"`
	DataHash            string `json:"data_hash"`
	EncryptionMethod    string `json:"encryption_method"`
}

// SealedKey is the content of a .key file.
type SealedKey struct {
	Method string `json:"method"`
	Key    []byte `json:"sealed_key"`
}

func NewService(cfg Config, log *slog.Logger) (*Service, error) {
	if cfg.Sealer == nil {
		return nil, errors.New("key sealer is required")
	}
	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Service{
		dir:       cfg.Workspace,
		sealer:    cfg.Sealer,
		rsaSealer: cfg.RSASealer,
		storage:   cfg.Storage,
		log:       log,
		now:       time.Now,
	}, nil
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client supplied name to a safe base name.
// It returns "" when nothing usable is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	return name
}

func extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Upload stores an uploaded file in the workspace. CSV files are cleaned and
// converted to <base>.json, JSON files are validated.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	filename := SanitizeFilename(name)
	ext := extension(filename)
	if filename == "" || !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, name)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	if ext == "json" && !json.Valid(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidContent)
	}

	var dataset *Dataset
	if ext == "csv" {
		if dataset, err = CleanCSV(bytes.NewReader(data), s.now()); err != nil {
			return nil, err
		}
	}

	if err := s.writeFile(filename, data); err != nil {
		return nil, err
	}

	result := &UploadResult{
		OriginalFile:  filename,
		ProcessedFile: filename,
		Size:          int64(len(data)),
	}

	switch ext {
	case "csv":
		processed := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".json"
		encoded, err := json.MarshalIndent(dataset, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode dataset: %w", err)
		}
		if err := s.writeFile(processed, encoded); err != nil {
			return nil, err
		}
		result.Message = "File processed successfully"
		result.ProcessedFile = processed
		result.Rows = dataset.Metadata.Count
		result.Columns = dataset.Metadata.Columns
		result.Size = int64(len(encoded))
	case "json":
		result.Message = "JSON file uploaded successfully"
	default:
		result.Message = "File uploaded successfully"
	}

	s.log.Info("Stored upload", "file", filename, "processed", result.ProcessedFile, "rows", result.Rows)
	return result, nil
}

// Encrypt encrypts a workspace file and writes <file>.enc, <file>.enc.meta
// and <file>.enc.key. The three artifacts are replicated to storage when
// one is configured.
func (s *Service) Encrypt(ctx context.Context, file string, useRSA bool) (*EncryptResult, error) {
	sealer := s.sealer
	if useRSA {
		if s.rsaSealer == nil {
			return nil, ErrRSAUnavailable
		}
		sealer = s.rsaSealer
	}

	original, err := s.readFile(file)
	if err != nil {
		return nil, err
	}

	dataKey, err := cryptoutils.GenerateDataKey()
	if err != nil {
		return nil, err
	}

	envelope, err := cryptoutils.EncryptEnvelope(dataKey, original)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt %s: %w", file, err)
	}
	encrypted, err := envelope.Marshal()
	if err != nil {
		return nil, err
	}

	sealed, err := sealer.SealKey(dataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal data key: %w", err)
	}
	keyDoc, err := json.MarshalIndent(SealedKey{Method: sealer.Method(), Key: sealed}, "", "  ")
	if err != nil {
		return nil, err
	}

	encryptedFile := file + encryptedSuffix
	metadataFile := encryptedFile + metadataSuffix
	keyFile := encryptedFile + keySuffix

	dataHash := sha256.Sum256(original)
	metadata, err := json.MarshalIndent(EncryptionMetadata{
		OriginalFilename:    file,
		EncryptedFilename:   encryptedFile,
		EncryptionTimestamp: s.now().UTC().Format(time.RFC3339),
		DataHash:            hex.EncodeToString(dataHash[:]),
		EncryptionMethod:    sealer.Method(),
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	artifacts := []struct {
		name        string
		data        []byte
		contentType interfaces.ContentType
	}{
		{encryptedFile, encrypted, interfaces.EncryptedType},
		{metadataFile, metadata, interfaces.MetadataType},
		{keyFile, keyDoc, interfaces.KeyType},
	}

	for _, a := range artifacts {
		if err := s.writeFile(a.name, a.data); err != nil {
			return nil, err
		}
	}

	if s.storage != nil {
		for _, a := range artifacts {
			id, err := s.storage.Store(ctx, a.data, a.contentType)
			if err != nil {
				return nil, fmt.Errorf("failed to replicate %s: %w", a.name, err)
			}
			s.log.Debug("Replicated artifact", "file", a.name, "content_id", id.String(), "backend", s.storage.Name())
		}
	}

	s.log.Info("Encrypted file", "file", file, "method", sealer.Method())

	return &EncryptResult{
		Message:       "Data encrypted successfully",
		OriginalFile:  file,
		EncryptedFile: encryptedFile,
		KeyFile:       keyFile,
		MetadataFile:  metadataFile,
		CipherHash:    interfaces.ComputeID(encrypted).String(),
		MetadataHash:  interfaces.ComputeID(metadata).String(),
		Method:        sealer.Method(),
	}, nil
}

// Decrypt reverses Encrypt using the key file next to encryptedFile.
// The sealer that produced the key must be able to open it.
func (s *Service) Decrypt(ctx context.Context, encryptedFile string) ([]byte, error) {
	raw, err := s.readFile(encryptedFile)
	if err != nil {
		return nil, err
	}
	envelope, err := cryptoutils.ParseEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	keyRaw, err := s.readFile(encryptedFile + keySuffix)
	if err != nil {
		return nil, err
	}
	var sealedKey SealedKey
	if err := json.Unmarshal(keyRaw, &sealedKey); err != nil {
		return nil, fmt.Errorf("%w: key file: %v", ErrInvalidContent, err)
	}

	var sealer cryptoutils.KeySealer
	switch {
	case s.sealer.Method() == sealedKey.Method:
		sealer = s.sealer
	case s.rsaSealer != nil && s.rsaSealer.Method() == sealedKey.Method:
		sealer = s.rsaSealer
	default:
		return nil, fmt.Errorf("no sealer for method %q", sealedKey.Method)
	}

	dataKey, err := sealer.OpenKey(sealedKey.Key)
	if err != nil {
		return nil, err
	}
	return cryptoutils.DecryptEnvelope(dataKey, envelope)
}

// Hashes returns the hashes a record refers to. The cipher hash is the
// SHA-256 of the encrypted file. The metadata hash is the SHA-256 of the
// metadata file when one is given and present, otherwise of a synthesized
// document naming the files.
func (s *Service) Hashes(encryptedFile, metadataFile, originalFile string) (cipherHash, metadataHash string, err error) {
	encrypted, err := s.readFile(encryptedFile)
	if err != nil {
		return "", "", err
	}
	cipherHash = interfaces.ComputeID(encrypted).String()

	if metadataFile != "" {
		metadata, err := s.readFile(metadataFile)
		if err == nil {
			return cipherHash, interfaces.ComputeID(metadata).String(), nil
		}
		if !errors.Is(err, ErrFileNotFound) {
			return "", "", err
		}
	}

	if originalFile == "" {
		originalFile = "unknown"
	}
	synthesized, err := json.Marshal(map[string]any{
		"encrypted_file": encryptedFile,
		"original_file":  originalFile,
		"timestamp":      s.now().Unix(),
	})
	if err != nil {
		return "", "", err
	}
	return cipherHash, interfaces.ComputeID(synthesized).String(), nil
}

// GenerateDataID derives a record id from a file name and a unix timestamp:
// the first 32 hex characters of SHA-256("<filename>_<ts>").
func GenerateDataID(filename string, ts int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", filename, ts)))
	return hex.EncodeToString(sum[:])[:32]
}

// GenerateDataID derives an id for filename at the current time.
func (s *Service) GenerateDataID(filename string) string {
	return GenerateDataID(filename, s.now().Unix())
}

// Files lists the workspace, sorted by name.
func (s *Service) Files() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Type:     extension(entry.Name()),
			Modified: float64(info.ModTime().UnixNano()) / 1e9,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// resolve maps a workspace file name to its path. Names that are not plain
// base names are treated as missing.
func (s *Service) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Service) readFile(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (s *Service) writeFile(name string, data []byte) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}
