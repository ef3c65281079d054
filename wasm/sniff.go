package wasm

import "encoding/binary"

// HeaderSize is the number of leading bytes needed by IsModule and IsComponent.
const HeaderSize = 8

// HasMagic reports whether data starts with the "\0asm" magic number.
func HasMagic(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == Magic
}

// IsModule reports whether data starts with a core module header.
func IsModule(data []byte) bool {
	return len(data) >= HeaderSize && HasMagic(data) &&
		binary.LittleEndian.Uint32(data[4:]) == Version
}

// IsComponent reports whether data starts with a Component Model header.
func IsComponent(data []byte) bool {
	return len(data) >= HeaderSize && HasMagic(data) &&
		binary.LittleEndian.Uint32(data[4:]) == ComponentVersion
}
