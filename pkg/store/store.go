// Package store persists extracted label records as a single JSON array that
// doubles as the resume checkpoint.
//
// The file is only ever grown by Append. In ModeInPlace the closing bracket is
// overwritten with ",<record>]" so an append costs O(record); trailing
// whitespace after the bracket is dropped. In ModeAtomic the
// whole array is rewritten to a temporary file which then replaces the store,
// so a crash mid-append can never leave a truncated array behind.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"labelscraper/pkg/logger"
	"labelscraper/pkg/models"
)

// Mode selects the append strategy
type Mode int

const (
	ModeInPlace Mode = iota
	ModeAtomic
)

func (m Mode) String() string {
	if m == ModeAtomic {
		return "atomic"
	}
	return "in_place"
}

// ErrCorrupt is returned by Append when the store does not end in a JSON array
var ErrCorrupt = errors.New("store file is not a JSON array")

var emptyArray = []byte("[]")

// Store is a single-writer append-only JSON array file
type Store struct {
	path   string
	mode   Mode
	logger logger.Logger
}

// New creates a store backed by path. The file is created lazily on first Append.
func New(path string, mode Mode, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		path:   path,
		mode:   mode,
		logger: log,
	}
}

// ReadAll returns every stored record in insertion order. A missing, unreadable
// or unparsable file yields an empty slice.
func (s *Store) ReadAll() []models.ExtractedRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.DebugWithFields("Store file does not exist yet", map[string]interface{}{
				"path": s.path,
			})
		} else {
			s.logger.WithError(err).WithField("path", s.path).Error("Error reading processed data")
		}
		return []models.ExtractedRecord{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.ExtractedRecord{}
	}

	var records []models.ExtractedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.WithError(err).WithField("path", s.path).Error("Error parsing processed data")
		return []models.ExtractedRecord{}
	}
	if records == nil {
		records = []models.ExtractedRecord{}
	}
	return records
}

// Cursor returns the identifier of the last stored record, or 0 for an empty store
func (s *Store) Cursor() int {
	return LastID(s.ReadAll())
}

// LastID returns the identifier of the last record, or 0 when there is none
func LastID(records []models.ExtractedRecord) int {
	if len(records) == 0 {
		return 0
	}
	return records[len(records)-1].ID
}

// Append adds record to the end of the array
func (s *Store) Append(record models.ExtractedRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", record.ID, err)
	}

	if s.mode == ModeAtomic {
		err = s.appendAtomic(data)
	} else {
		err = s.appendInPlace(data)
	}
	if err != nil {
		return fmt.Errorf("failed to append record %d: %w", record.ID, err)
	}

	s.logger.DebugWithFields("Result appended to file", map[string]interface{}{
		"path":     s.path,
		"label_id": record.ID,
		"mode":     s.mode.String(),
	})
	return nil
}

// appendInPlace overwrites the closing ']' with the new element and a fresh ']'.
// Whitespace around the brackets, as left by editors or jq, is tolerated.
func (s *Store) appendInPlace(data []byte) (err error) {
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open store file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close store file: %w", closeErr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat store file: %w", err)
	}

	closePos, closing, err := lastNonSpace(file, info.Size())
	if err != nil {
		return fmt.Errorf("failed to read store tail: %w", err)
	}
	if closePos < 0 {
		if _, err := file.WriteAt(emptyArray, 0); err != nil {
			return fmt.Errorf("failed to initialise store file: %w", err)
		}
		closePos, closing = 1, ']'
	}
	if closing != ']' {
		return ErrCorrupt
	}

	prevPos, prev, err := lastNonSpace(file, closePos)
	if err != nil {
		return fmt.Errorf("failed to read store tail: %w", err)
	}
	if prevPos < 0 {
		return ErrCorrupt
	}

	var buf bytes.Buffer
	if prev != '[' {
		buf.WriteByte(',')
	}
	buf.Write(data)
	buf.WriteByte(']')

	if _, err := file.WriteAt(buf.Bytes(), closePos); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := file.Truncate(closePos + int64(buf.Len())); err != nil {
		return fmt.Errorf("failed to truncate store file: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync store file: %w", err)
	}
	return nil
}

const tailChunk = 512

// lastNonSpace returns the offset and value of the last non-whitespace byte
// before end, or -1 when there is none.
func lastNonSpace(r io.ReaderAt, end int64) (int64, byte, error) {
	buf := make([]byte, tailChunk)
	for end > 0 {
		start := end - tailChunk
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := r.ReadAt(chunk, start); err != nil && err != io.EOF {
			return -1, 0, err
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			switch chunk[i] {
			case ' ', '\t', '\n', '\r':
			default:
				return start + int64(i), chunk[i], nil
			}
		}
		end = start
	}
	return -1, 0, nil
}

// appendAtomic rewrites the array into a temporary file and renames it over the store
func (s *Store) appendAtomic(data []byte) error {
	existing, err := s.readRaw()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, raw := range existing {
		buf.Write(raw)
		buf.WriteByte(',')
	}
	buf.Write(data)
	buf.WriteByte(']')

	return WriteFileAtomic(s.path, buf.Bytes(), 0644)
}

// readRaw returns the existing elements byte-for-byte. Unlike ReadAll it fails
// on a corrupt file so that a rewrite never discards earlier records.
func (s *Store) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var existing []json.RawMessage
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return existing, nil
}
