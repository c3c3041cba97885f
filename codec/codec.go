// Package codec serializes translation records into versioned, checksummed
// blobs for storage.
//
// Layout:
//
//	magic "TLC1" | crc32 (IEEE, big endian) of payload | JSON payload
//
// The payload carries the source text the record belongs to, so a blob
// copied onto the wrong row is detected on read.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"unicode/utf8"

	"github.com/ZaguanLabs/tlcache"
)

var magic = []byte("TLC1")

const headerLen = 8

type payload struct {
	Key          string            `json:"key"`
	Translations map[string]string `json:"translations"`
}

// Encode serializes a record for sourceText. Every string must be valid
// UTF-8; JSON would otherwise replace the invalid bytes and the blob would
// no longer match its row.
func Encode(sourceText string, record tlcache.Record) ([]byte, error) {
	if !utf8.ValidString(sourceText) {
		return nil, &tlcache.CodecError{Message: "source text is not valid UTF-8"}
	}
	for lang, text := range record {
		if !utf8.ValidString(lang) || !utf8.ValidString(text) {
			return nil, &tlcache.CodecError{Message: fmt.Sprintf("translation %q is not valid UTF-8", lang)}
		}
	}

	translations := map[string]string(record)
	if translations == nil {
		translations = map[string]string{}
	}

	body, err := json.Marshal(payload{Key: sourceText, Translations: translations})
	if err != nil {
		return nil, &tlcache.CodecError{Message: "marshal record", Cause: err}
	}

	out := make([]byte, headerLen, headerLen+len(body))
	copy(out, magic)
	binary.BigEndian.PutUint32(out[4:headerLen], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

// Decode parses a blob, returning the source text it was written for and
// its record.
func Decode(blob []byte) (string, tlcache.Record, error) {
	if len(blob) < headerLen {
		return "", nil, &tlcache.CodecError{Message: "blob truncated"}
	}
	if !bytes.Equal(blob[:4], magic) {
		return "", nil, &tlcache.CodecError{Message: "unknown blob format"}
	}

	body := blob[headerLen:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(blob[4:headerLen]) {
		return "", nil, &tlcache.CodecError{Message: "checksum mismatch"}
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", nil, &tlcache.CodecError{Message: "unmarshal record", Cause: err}
	}
	if p.Translations == nil {
		return "", nil, &tlcache.CodecError{Message: "record has no translations field"}
	}
	return p.Key, tlcache.Record(p.Translations), nil
}

// DecodeFor parses a blob and checks that it belongs to sourceText.
func DecodeFor(blob []byte, sourceText string) (tlcache.Record, error) {
	key, record, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	if key != sourceText {
		return nil, &tlcache.CodecError{Message: "record key does not match row"}
	}
	return record, nil
}
