package envelope

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/s3tool/s3tool/internal/s3err"
)

// Wrapping is one (key name, wrapped key) entry as stored in object
// metadata. Multiple wrappings on one object must all decrypt to the
// identical symmetric key (spec.md §4.2).
type Wrapping struct {
	KeyName string
	Wrapped string // base64 RSA ciphertext
}

// EncodeWrappings renders wrappings as the comma-separated
// s3tool-key-name / s3tool-symmetric-key metadata pair, order
// preserved (spec.md §9 Open Question 2: the conservative choice).
func EncodeWrappings(wrappings []Wrapping) (keyNames, symmetricKeys string) {
	names := make([]string, len(wrappings))
	keys := make([]string, len(wrappings))
	for i, w := range wrappings {
		names[i] = w.KeyName
		keys[i] = w.Wrapped
	}
	return strings.Join(names, ","), strings.Join(keys, ",")
}

// DecodeWrappings parses the comma-separated metadata pair back into
// an ordered list of wrappings.
func DecodeWrappings(keyNames, symmetricKeys string) ([]Wrapping, error) {
	if keyNames == "" || symmetricKeys == "" {
		return nil, nil
	}
	names := strings.Split(keyNames, ",")
	keys := strings.Split(symmetricKeys, ",")
	if len(names) != len(keys) {
		return nil, s3err.New(s3err.Crypto, "decode key wrappings", fmt.Errorf("%d key names but %d wrapped keys", len(names), len(keys)))
	}
	wrappings := make([]Wrapping, len(names))
	for i := range names {
		wrappings[i] = Wrapping{KeyName: names[i], Wrapped: keys[i]}
	}
	return wrappings, nil
}

// AddWrapping appends a new wrapping of the same symmetricKey under
// newPub/newKeyName to an existing wrapping list.
func AddWrapping(existing []Wrapping, newKeyName string, newPub *rsa.PublicKey, symmetricKey []byte) ([]Wrapping, error) {
	for _, w := range existing {
		if w.KeyName == newKeyName {
			return nil, s3err.New(s3err.Usage, "add encrypted key", fmt.Errorf("key %q is already wrapped on this object", newKeyName))
		}
	}
	wrapped, err := Wrap(newPub, symmetricKey)
	if err != nil {
		return nil, err
	}
	return append(append([]Wrapping{}, existing...), Wrapping{KeyName: newKeyName, Wrapped: wrapped}), nil
}

// RemoveWrapping removes the wrapping named keyName from existing. It
// fails with s3err.LastKeyRemoval if that would remove the only
// remaining wrapping, and with s3err.MissingKey if no such wrapping
// exists.
func RemoveWrapping(existing []Wrapping, keyName string) ([]Wrapping, error) {
	if len(existing) <= 1 {
		return nil, s3err.New(s3err.LastKeyRemoval, "remove encrypted key", fmt.Errorf("cannot remove the last remaining key wrapping"))
	}
	out := make([]Wrapping, 0, len(existing)-1)
	found := false
	for _, w := range existing {
		if w.KeyName == keyName {
			found = true
			continue
		}
		out = append(out, w)
	}
	if !found {
		return nil, s3err.New(s3err.MissingKey, "remove encrypted key", fmt.Errorf("key %q is not wrapped on this object", keyName))
	}
	return out, nil
}
