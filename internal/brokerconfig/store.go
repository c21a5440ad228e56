package brokerconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/swartninja/provisioner/internal/logging"
	"github.com/swartninja/provisioner/internal/storage"
)

const (
	// DefaultPath is the record location on the volume
	DefaultPath = "/config.json"

	// MaxRecordSize is the size ceiling of the stored record. Larger files
	// are treated as corrupt.
	MaxRecordSize = 1024
)

// record mirrors the persisted schema. Pointers distinguish a missing key
// from an empty value.
type record struct {
	Server   *string `json:"mqtt_server"`
	Port     *string `json:"mqtt_port"`
	Username *string `json:"mqtt_username"`
	Password *string `json:"mqtt_password"`
}

// Store loads and saves the ConnectionConfig record on a storage volume.
// Operations are read/write-once per boot and are never retried.
type Store struct {
	volume storage.Volume
	path   string
}

// NewStore creates a store for the record at path on volume. An empty path
// selects DefaultPath.
func NewStore(volume storage.Volume, path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{volume: volume, path: path}
}

// Path returns the record location on the volume
func (s *Store) Path() string {
	return s.path
}

// Load reads the record. Errors are *ConfigError of type NotMounted,
// NotFound, TooLarge or Malformed; no partially populated config is ever
// returned.
func (s *Store) Load() (ConnectionConfig, error) {
	data, err := s.read()
	if err != nil {
		logging.LogStoreOp("load", s.path, 0, err)
		return ConnectionConfig{}, err
	}

	cfg, err := decode(data)
	if err != nil {
		err = newError(ErrTypeMalformed, s.path, "failed to decode record", err)
		logging.LogStoreOp("load", s.path, len(data), err)
		return ConnectionConfig{}, err
	}

	logging.LogStoreOp("load", s.path, len(data), nil)
	return cfg, nil
}

func (s *Store) read() ([]byte, error) {
	if err := s.volume.Mount(); err != nil {
		return nil, newError(ErrTypeNotMounted, s.path, "failed to mount file system", err)
	}

	h, err := s.volume.Open(s.path, storage.ModeRead)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(ErrTypeNotFound, s.path, "no config record", err)
		}
		return nil, newError(ErrTypeNotFound, s.path, "failed to open config record", err)
	}
	defer func() { _ = h.Close() }()

	size, err := h.Size()
	if err != nil {
		return nil, newError(ErrTypeMalformed, s.path, "failed to stat config record", err)
	}
	if size > MaxRecordSize {
		return nil, newError(ErrTypeTooLarge, s.path,
			fmt.Sprintf("config record is %d bytes (max %d)", size, MaxRecordSize), nil)
	}

	data, err := h.ReadAll()
	if err != nil {
		return nil, newError(ErrTypeMalformed, s.path, "failed to read config record", err)
	}
	// The file may have grown between Size and ReadAll
	if len(data) > MaxRecordSize {
		return nil, newError(ErrTypeTooLarge, s.path,
			fmt.Sprintf("config record is %d bytes (max %d)", len(data), MaxRecordSize), nil)
	}
	return data, nil
}

func decode(data []byte) (ConnectionConfig, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return ConnectionConfig{}, err
	}

	missing := []string{}
	if rec.Server == nil {
		missing = append(missing, KeyServer)
	}
	if rec.Port == nil {
		missing = append(missing, KeyPort)
	}
	if rec.Username == nil {
		missing = append(missing, KeyUsername)
	}
	if rec.Password == nil {
		missing = append(missing, KeyPassword)
	}
	if len(missing) > 0 {
		return ConnectionConfig{}, fmt.Errorf("missing required keys %v", missing)
	}

	cfg := ConnectionConfig{
		BrokerAddress: *rec.Server,
		BrokerPort:    *rec.Port,
		Username:      *rec.Username,
		Password:      *rec.Password,
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return ConnectionConfig{}, errs[0]
	}
	return cfg, nil
}

// Encode serializes cfg in the persisted schema.
func Encode(cfg ConnectionConfig) ([]byte, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	if len(data) > MaxRecordSize {
		return nil, NewValidationError(fmt.Sprintf("encoded record is %d bytes (max %d)", len(data), MaxRecordSize))
	}
	return data, nil
}

// Save writes cfg to the record path with a single truncate-and-write.
// A crash mid-write may leave this one file partially written; Load then
// reports it as malformed and the device falls back to defaults.
func (s *Store) Save(cfg ConnectionConfig) error {
	data, err := Encode(cfg)
	if err != nil {
		err = newError(ErrTypeWriteFailed, s.path, "failed to encode record", err)
		logging.LogStoreOp("save", s.path, 0, err)
		return err
	}

	if err := s.write(data); err != nil {
		logging.LogStoreOp("save", s.path, 0, err)
		return err
	}

	logging.LogStoreOp("save", s.path, len(data), nil)
	return nil
}

func (s *Store) write(data []byte) error {
	if err := s.volume.Mount(); err != nil {
		return newError(ErrTypeNotMounted, s.path, "failed to mount file system", err)
	}

	h, err := s.volume.Open(s.path, storage.ModeWrite)
	if err != nil {
		return newError(ErrTypeWriteFailed, s.path, "failed to open config record for writing", err)
	}

	if err := h.WriteAll(data); err != nil {
		_ = h.Close()
		return newError(ErrTypeWriteFailed, s.path, "failed to write config record", err)
	}
	if err := h.Close(); err != nil {
		return newError(ErrTypeWriteFailed, s.path, "failed to close config record", err)
	}
	return nil
}

// remover is implemented by volumes that can delete files.
type remover interface {
	Remove(name string) error
}

// Remove deletes the stored record so the next boot starts from defaults.
func (s *Store) Remove() error {
	if err := s.volume.Mount(); err != nil {
		return newError(ErrTypeNotMounted, s.path, "failed to mount file system", err)
	}
	r, ok := s.volume.(remover)
	if !ok {
		return newError(ErrTypeWriteFailed, s.path, "volume does not support removal", nil)
	}
	if err := r.Remove(s.path); err != nil {
		return newError(ErrTypeWriteFailed, s.path, "failed to remove config record", err)
	}
	logging.LogStoreOp("remove", s.path, 0, nil)
	return nil
}
