// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameSize is the largest declared body length the receiver will
// accept. Frames at or above this size are rejected before any buffer for
// the body is allocated, so a malicious or corrupt length prefix can never
// trigger an oversized allocation.
const MaxFrameSize = 1 << 28 // 256 MiB

// Send encodes v as UTF-8 JSON and writes it to w as an 8-byte
// little-endian length prefix followed by the encoded body.
func Send[T any](w io.Writer, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// Receive reads one frame from r and JSON-decodes it into a T. It reads
// exactly 8 bytes for the length prefix, rejects any declared length at or
// above MaxFrameSize without allocating a body buffer, then reads exactly
// that many bytes and decodes them. A short read at any point is reported
// as an error (io.ErrUnexpectedEOF via io.ReadFull).
func Receive[T any](r io.Reader) (T, error) {
	var zero T

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return zero, fmt.Errorf("read frame header: %w", err)
	}

	size := binary.LittleEndian.Uint64(header[:])
	if size >= MaxFrameSize {
		return zero, fmt.Errorf("frame too large: %d bytes declared, limit %d", size, MaxFrameSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return zero, fmt.Errorf("read frame body: %w", err)
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return zero, fmt.Errorf("decode frame: %w", err)
	}
	return v, nil
}
