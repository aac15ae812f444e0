// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

// Tag defines special tag for distinguishing inscription field type.
type Tag byte

const (
	// TagContentType defines content-type tag in the inscription protocol.
	// The value is the MIME type of the body.
	TagContentType Tag = 1
	// TagPointer defines pointer tag in the inscription protocol.
	// Points on the sat at the given position in the outputs for the inscription to be made.
	TagPointer Tag = 2
	// TagMetadata defines metadata tag in the inscription protocol.
	// Additional metadata in CBOR encoding, split into pushes of 520 bytes.
	TagMetadata Tag = 5
	// TagMetaprotocol defines meta-protocol tag in the inscription protocol.
	TagMetaprotocol Tag = 7
	// TagContentEncoding defines content-encoding tag in the inscription protocol.
	// The value is the encoding of the body.
	TagContentEncoding Tag = 9
	// TagRune defines Rune tag in the inscription protocol.
	// Holds the rune name commitment of the etching in the same transaction.
	TagRune Tag = 13
)

// push returns Tag as the single byte data push value.
func (t Tag) push() []byte {
	return []byte{byte(t)}
}
