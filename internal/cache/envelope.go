package cache

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// envelope wraps a stored payload with the metadata freshness decisions need
// at read time. The TTL recorded at write time is authoritative: tier-level
// expiry (bigcache's life window, redis EXPIRE) is only an eviction hint.
type envelope struct {
	Data      []byte         `json:"data" msgpack:"data"`
	WrittenAt time.Time      `json:"writtenAt" msgpack:"writtenAt"`
	Strategy  types.Strategy `json:"strategy" msgpack:"strategy"`
	Version   string         `json:"version" msgpack:"version"`
	TTL       time.Duration  `json:"ttl" msgpack:"ttl"`
}

// age reports how long ago the envelope was written.
func (e *envelope) age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// expired reports whether the envelope has outlived its TTL.
func (e *envelope) expired(now time.Time) bool {
	return e.age(now) >= e.TTL
}

// fresh reports whether the envelope is still inside the freshness window.
// At exactly fraction*TTL the entry counts as stale.
func (e *envelope) fresh(now time.Time, fraction float64) bool {
	return e.age(now) < time.Duration(float64(e.TTL)*fraction)
}

// envelopeCodec encodes envelopes through the configured serializer and
// compresses large ones. Realtime entries stay raw so hot reads skip the
// inflate step.
type envelopeCodec struct {
	serializer types.Serializer
	threshold  int
	compress   bool
}

func newEnvelopeCodec(serializer types.Serializer, threshold int, compress bool) *envelopeCodec {
	if threshold <= 0 {
		threshold = 1024
	}
	return &envelopeCodec{
		serializer: serializer,
		threshold:  threshold,
		compress:   compress,
	}
}

func (c *envelopeCodec) encode(env *envelope) ([]byte, error) {
	raw, err := c.serializer.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerializationFailed, err)
	}

	if !c.compress || len(raw) <= c.threshold || !env.Strategy.Compressible() {
		return raw, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, fmt.Errorf("%w: compress: %v", types.ErrSerializationFailed, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: compress: %v", types.ErrSerializationFailed, err)
	}

	return buf.Bytes(), nil
}

// decode sniffs the gzip magic bytes so uncompressed entries written before
// compression was enabled still decode.
func (c *envelopeCodec) decode(blob []byte) (*envelope, error) {
	raw := blob
	if len(blob) >= 2 && blob[0] == 0x1f && blob[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("%w: inflate: %v", types.ErrSerializationFailed, err)
		}
		raw, err = io.ReadAll(zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("%w: inflate: %v", types.ErrSerializationFailed, err)
		}
	}

	var env envelope
	if err := c.serializer.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerializationFailed, err)
	}
	return &env, nil
}
