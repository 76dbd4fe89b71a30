package abi

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
)

// HeaderRecord is the tagged {key, value} record spec §4.6 specifies for
// single-header reads/writes; EncodeHeaders/DecodeHeaders handle the
// length-prefixed vector form used for header-set-many.
type HeaderRecord struct {
	Key   string
	Value string
}

func EncodeHeader(h HeaderRecord) []byte {
	buf := make([]byte, 0, 4+len(h.Key)+4+len(h.Value))
	buf = appendLenPrefixed(buf, h.Key)
	buf = appendLenPrefixed(buf, h.Value)
	return buf
}

func DecodeHeader(b []byte) (HeaderRecord, error) {
	key, rest, err := readLenPrefixed(b)
	if err != nil {
		return HeaderRecord{}, err
	}
	value, _, err := readLenPrefixed(rest)
	if err != nil {
		return HeaderRecord{}, err
	}
	return HeaderRecord{Key: key, Value: value}, nil
}

// EncodeHeaders encodes a length-prefixed vector of HeaderRecord, used by
// READ_REQUEST_HEADERS/READ_RESPONSE_HEADERS replies.
func EncodeHeaders(records []HeaderRecord) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(records)))
	for _, r := range records {
		buf = append(buf, EncodeHeader(r)...)
	}
	return buf
}

func DecodeHeaders(b []byte) ([]HeaderRecord, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("abi: header vector too short")
	}
	count := binary.BigEndian.Uint32(b[:4])
	rest := b[4:]
	records := make([]HeaderRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		key, after1, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		value, after2, err := readLenPrefixed(after1)
		if err != nil {
			return nil, err
		}
		records = append(records, HeaderRecord{Key: key, Value: value})
		rest = after2
	}
	return records, nil
}

func appendLenPrefixed(buf []byte, s string) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(s)))
	buf = append(buf, lenBuf...)
	buf = append(buf, s...)
	return buf
}

func readLenPrefixed(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("abi: length prefix truncated")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, fmt.Errorf("abi: value truncated, want %d have %d", n, len(b))
	}
	return string(b[:n]), b[n:], nil
}

// EncodeStatus/DecodeStatus implement "status codes use 2 bytes big
// endian" (spec §4.6).
func EncodeStatus(status int) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(status))
	return buf
}

func DecodeStatus(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("abi: status payload too short")
	}
	return int(binary.BigEndian.Uint16(b[:2])), nil
}

// EncodeNumber/DecodeNumber implement "numbers returned by reads are
// ASCII decimal bytes" (spec §4.6).
func EncodeNumber(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func DecodeNumber(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

// EncodeJSON/DecodeJSON implement "params and static-payload retrieval
// use JSON" (spec §4.6).
func EncodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func DecodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

// EncodeBroadcast/DecodeBroadcast implement the `<room>\0<payload>`
// framing spec §4.6 mandates for WEBSOCKET_BROADCAST_ROOM_* payloads.
func EncodeBroadcast(room string, payload []byte) []byte {
	buf := make([]byte, 0, len(room)+1+len(payload))
	buf = append(buf, room...)
	buf = append(buf, 0)
	buf = append(buf, payload...)
	return buf
}

func DecodeBroadcast(b []byte) (room string, payload []byte, err error) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("abi: broadcast payload missing NUL room separator")
}

// EncodeCloseCode/DecodeCloseCode implement "close carries ... an ASCII
// close-code" for WEBSOCKET_CLOSE.
func EncodeCloseCode(code int) []byte {
	return []byte(strconv.Itoa(code))
}

func DecodeCloseCode(b []byte) (int, error) {
	if len(b) == 0 {
		return 1000, nil
	}
	return strconv.Atoi(string(b))
}
