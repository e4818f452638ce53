// Package fingerprint computes content hashes of agent configuration
// documents. Two documents that differ only in key order or on-disk
// formatting hash identically; any leaf-value change produces a new hash.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrMalformedDocument indicates a document that cannot be canonically
// serialized. Validated documents never trigger this; hitting it means a
// caller handed the fingerprinter something that did not come from a parsed
// manifest config.
var ErrMalformedDocument = errors.New("malformed document")

// Compute returns the hex SHA-256 digest of the document's canonical form.
func Compute(doc map[string]any) (string, error) {
	payload, err := Canonical(doc)
	if err != nil {
		return "", err
	}
	return SumBytes(payload), nil
}

// Canonical serializes a document to its canonical JSON form: object keys
// sorted recursively, no insignificant whitespace, integral floats rendered
// as integers so YAML and JSON parses of the same document agree.
func Canonical(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SumBytes returns the hex SHA-256 digest of a canonical payload.
func SumBytes(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		enc, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		buf.Write(enc)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		writeFloat(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
			}
			buf.Write(enc)
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrMalformedDocument, v)
	}
	return nil
}

// writeFloat renders a float canonically. Integral values within the safe
// int64 range render without a fractional part, so a JSON parse producing
// float64(2) and a YAML parse producing int(2) fingerprint identically.
func writeFloat(buf *bytes.Buffer, f float64) {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}
