// Package frame implements the companion radio wire codec.
//
// A frame is a single code byte followed by a fixed-layout payload. Codes
// below 0x80 are commands (client to device) and responses (device to
// client); codes at or above 0x80 are unsolicited pushes. All multi-byte
// integers are little-endian, coordinates are signed 32-bit degrees scaled
// by 1e6, and strings are UTF-8, either zero-padded to a fixed width or
// consuming the remainder of the payload.
//
// Encoding validates field domains and never silently truncates; decoding
// rejects frames shorter than the minimum size of their type instead of
// reading out of bounds. The three frame classes decode into sealed sum
// types (Command, Response, Push) so downstream code never re-inspects raw
// bytes.
package frame
