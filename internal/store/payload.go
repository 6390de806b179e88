package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// Payload encodings stored in drafts.encoding.
const (
	encodingRaw  = ""
	encodingZstd = "zstd"
)

// EncodeAll and DecodeAll are safe for concurrent use on shared coders.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodePayload compresses payloads at or above the store's threshold.
func (s *Store) encodePayload(payload []byte) ([]byte, string) {
	if s.compressThreshold <= 0 || len(payload) < s.compressThreshold {
		return payload, encodingRaw
	}
	return zstdEncoder.EncodeAll(payload, make([]byte, 0, len(payload)/2)), encodingZstd
}

func decodePayload(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case encodingRaw:
		return data, nil
	case encodingZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPayloadCorrupted, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", errors.ErrPayloadCorrupted, encoding)
	}
}

const recordColumns = "id, user_id, title, payload, encoding, state, version, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*draft.Record, error) {
	var (
		rec        draft.Record
		payload    []byte
		encoding   string
		state      string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Title,
		&payload,
		&encoding,
		&state,
		&rec.Version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	decoded, err := decodePayload(payload, encoding)
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", rec.ID, err)
	}
	rec.Payload = decoded
	rec.State = draft.RecordState(state)
	if t, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
