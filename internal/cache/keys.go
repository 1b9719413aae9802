package cache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// BuildKey derives the storage key for one entry:
//
//	dataset:identifier[:versionTag][:paramHash]
//
// The version tag comes from the strategy and exists so schema or algorithm
// revisions orphan old entries instead of decoding them wrongly. The param
// hash folds query parameters into the key so the same dataset/identifier
// pair can hold one entry per parameter combination.
func BuildKey(dataset, identifier string, strategy types.Strategy, params map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString(dataset)
	b.WriteByte(':')
	b.WriteString(identifier)

	if tag := strategy.VersionTag(); tag != "" {
		b.WriteByte(':')
		b.WriteString(tag)
	}

	if len(params) > 0 {
		digest, err := hashParams(params)
		if err != nil {
			return "", err
		}
		b.WriteByte(':')
		b.WriteString(digest)
	}

	return b.String(), nil
}

// hashParams collapses the parameter map into a 16-hex-digit digest.
// encoding/json sorts map keys at every nesting level, so the digest is
// stable regardless of map insertion order.
func hashParams(params map[string]any) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("%w: params not serializable: %v", types.ErrInvalidKey, err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(payload)), nil
}

// invalidationPattern builds the glob used to purge entries. An empty
// identifier widens the purge to the whole dataset. A strategy with a
// version tag narrows it to that tag's keyspace; untagged strategies share
// the bare dataset:identifier prefix and are purged together.
func invalidationPattern(dataset, identifier string, strategy types.Strategy) string {
	if identifier == "" {
		return dataset + ":*"
	}
	if tag := strategy.VersionTag(); tag != "" {
		return dataset + ":" + identifier + ":" + tag + "*"
	}
	return dataset + ":" + identifier + "*"
}
