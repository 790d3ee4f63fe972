// Package metadata defines the object metadata contract this library
// stamps on and reads from every object it writes, plus serialisation
// to and from the string-keyed map the SDK Adapter deals in.
//
// Grounded on the teacher's metadata-field conventions in
// internal/cloud/providers/s3/streaming_concurrent.go (which stores
// "iv", "streamingformat", "partsize" as S3 object metadata strings),
// generalised to the field names and multi-wrapping format this
// library's metadata contract requires (spec.md §6).
package metadata

import (
	"strconv"

	"github.com/s3tool/s3tool/internal/envelope"
	"github.com/s3tool/s3tool/internal/s3err"
)

// CurrentVersion is the format version stamped on every object this
// library writes.
const CurrentVersion = "1"

// Field names, verbatim per spec.md §6.
const (
	FieldVersion      = "s3tool-version"
	FieldKeyName      = "s3tool-key-name"
	FieldSymmetricKey = "s3tool-symmetric-key"
	FieldChunkSize    = "s3tool-chunk-size"
	FieldFileLength   = "s3tool-file-length"
)

// Metadata is the parsed, typed view of an object's s3tool metadata
// fields, plus any pass-through fields the caller attached.
type Metadata struct {
	Version    string
	Wrappings  []envelope.Wrapping // empty if the object is not encrypted
	ChunkSize  int64
	FileLength int64
	PassThrough map[string]string
}

// Encrypted reports whether this object carries an envelope-encrypted
// symmetric key.
func (m Metadata) Encrypted() bool {
	return len(m.Wrappings) > 0
}

// Encode renders m as the string-keyed map the SDK adapter attaches
// to InitiateMultipart and UpdateMetadata calls.
func Encode(m Metadata) map[string]string {
	out := make(map[string]string, len(m.PassThrough)+5)
	for k, v := range m.PassThrough {
		out[k] = v
	}
	out[FieldVersion] = m.Version
	out[FieldChunkSize] = strconv.FormatInt(m.ChunkSize, 10)
	out[FieldFileLength] = strconv.FormatInt(m.FileLength, 10)
	if m.Encrypted() {
		keyNames, symmetricKeys := envelope.EncodeWrappings(m.Wrappings)
		out[FieldKeyName] = keyNames
		out[FieldSymmetricKey] = symmetricKeys
	}
	return out
}

// Decode parses the string-keyed metadata map the SDK adapter returns
// from HeadObject into a typed Metadata. wroteByUs reports
// whether FieldVersion was present at all — when it is absent, the
// object was not written by this library and the orchestrator treats
// it as a plain, unencrypted object (spec.md §4.4 Phase 1 / Download).
func Decode(raw map[string]string) (m Metadata, wroteByUs bool, err error) {
	version, ok := raw[FieldVersion]
	if !ok {
		return Metadata{}, false, nil
	}
	wroteByUs = true
	m.Version = version
	m.PassThrough = make(map[string]string, len(raw))
	for k, v := range raw {
		switch k {
		case FieldVersion, FieldKeyName, FieldSymmetricKey, FieldChunkSize, FieldFileLength:
			// consumed below, not passed through
		default:
			m.PassThrough[k] = v
		}
	}

	if cs, ok := raw[FieldChunkSize]; ok {
		n, perr := strconv.ParseInt(cs, 10, 64)
		if perr != nil {
			return Metadata{}, true, s3err.New(s3err.Crypto, "parse "+FieldChunkSize, perr)
		}
		m.ChunkSize = n
	}
	if fl, ok := raw[FieldFileLength]; ok {
		n, perr := strconv.ParseInt(fl, 10, 64)
		if perr != nil {
			return Metadata{}, true, s3err.New(s3err.Crypto, "parse "+FieldFileLength, perr)
		}
		m.FileLength = n
	}

	if keyNames, ok := raw[FieldKeyName]; ok {
		wrappings, derr := envelope.DecodeWrappings(keyNames, raw[FieldSymmetricKey])
		if derr != nil {
			return Metadata{}, true, derr
		}
		m.Wrappings = wrappings
	}

	return m, true, nil
}

// CheckVersion validates that m.Version matches CurrentVersion,
// returning an UnsupportedVersion error otherwise.
func CheckVersion(m Metadata) error {
	if m.Version != CurrentVersion {
		return s3err.New(s3err.UnsupportedVersion, "check object version", errVersionMismatch{got: m.Version, want: CurrentVersion})
	}
	return nil
}

type errVersionMismatch struct{ got, want string }

func (e errVersionMismatch) Error() string {
	return "object s3tool-version " + e.got + " does not match supported version " + e.want
}
