// Package handshake publishes and discovers the shared service through a
// fixed-layout record in named shared memory.
package handshake

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"lebinkproxy.dev/proxy/internal/core/domain"
)

// Byte layout of a v3 record. Fields before the pointer never move; new
// fields are inserted before the trailing pointer and Size grows, so readers
// that only know "the pointer is at Size-8" keep working.
const (
	offsetMagic     = 0x00
	offsetVersion   = 0x04
	offsetSize      = 0x08
	offsetBuildDate = 0x0C
	offsetBuildMode = 0x2C
	offsetPointer   = 0x34

	buildDateLen = 32
	buildModeLen = 8

	// PointerSize is the width of the trailing service pointer.
	PointerSize = 8
	// RecordSize is the size of the record this host publishes.
	RecordSize = offsetPointer + PointerSize
	// MinRecordSize is the smallest size a reader accepts.
	MinRecordSize = RecordSize
	// MaxRecordSize is the largest size a reader accepts.
	MaxRecordSize = 4096

	// MinAcceptedVersion and MaxAcceptedVersion bound the version a reader trusts.
	MinAcceptedVersion uint32 = 2
	MaxAcceptedVersion uint32 = 255
)

// Magic tags a valid record
var Magic = [4]byte{'S', 'P', 'I', 0}

// Record is the decoded form of the shared memory header
type Record struct {
	Magic          [4]byte
	Version        uint32
	Size           uint32
	BuildDate      string
	BuildMode      string
	ServicePointer uintptr
}

// NewRecord creates the record this host publishes
func NewRecord(buildDate, buildMode string, servicePointer uintptr) Record {
	return Record{
		Magic:          Magic,
		Version:        domain.ServiceVersion,
		Size:           RecordSize,
		BuildDate:      buildDate,
		BuildMode:      buildMode,
		ServicePointer: servicePointer,
	}
}

// Encode writes the record into dst, which must hold at least r.Size bytes
func (r Record) Encode(dst []byte) error {
	if r.Size < MinRecordSize || int(r.Size) > len(dst) {
		return fmt.Errorf("%w: record of %d bytes does not fit %d", domain.ErrBadSize, r.Size, len(dst))
	}

	copy(dst[offsetMagic:], r.Magic[:])
	binary.LittleEndian.PutUint32(dst[offsetVersion:], r.Version)
	binary.LittleEndian.PutUint32(dst[offsetSize:], r.Size)
	putFixedString(dst[offsetBuildDate:offsetBuildDate+buildDateLen], r.BuildDate)
	putFixedString(dst[offsetBuildMode:offsetBuildMode+buildModeLen], r.BuildMode)
	r.putPointer(dst)
	return nil
}

func (r Record) putPointer(dst []byte) {
	binary.LittleEndian.PutUint64(dst[r.Size-PointerSize:], uint64(r.ServicePointer))
}

// Decode reads a record from src without validating it.
// The pointer is taken from Size-8 when Size is within src.
func Decode(src []byte) (Record, error) {
	if len(src) < offsetPointer {
		return Record{}, fmt.Errorf("%w: %d bytes mapped", domain.ErrBadSize, len(src))
	}

	var r Record
	copy(r.Magic[:], src[offsetMagic:offsetMagic+4])
	r.Version = binary.LittleEndian.Uint32(src[offsetVersion:])
	r.Size = binary.LittleEndian.Uint32(src[offsetSize:])
	r.BuildDate = fixedString(src[offsetBuildDate : offsetBuildDate+buildDateLen])
	r.BuildMode = fixedString(src[offsetBuildMode : offsetBuildMode+buildModeLen])

	if r.Size >= PointerSize && int(r.Size) <= len(src) {
		r.ServicePointer = uintptr(binary.LittleEndian.Uint64(src[r.Size-PointerSize:]))
	}
	return r, nil
}

// Validate checks the record in the order a reader must: magic, version
// range, requested minimum, size range, pointer. Every failure is distinct.
func (r Record) Validate(minVersion uint32) error {
	return r.validate(minVersion, MaxRecordSize)
}

// ValidateView is Validate for a record decoded from a view of mapped
// bytes. A size that runs past the view is ErrBadSize.
func (r Record) ValidateView(minVersion uint32, mapped int) error {
	return r.validate(minVersion, mapped)
}

func (r Record) validate(minVersion uint32, mapped int) error {
	if r.Magic != Magic {
		return fmt.Errorf("%w: %q", domain.ErrBadMagic, r.Magic[:])
	}
	if r.Version < MinAcceptedVersion || r.Version > MaxAcceptedVersion {
		return fmt.Errorf("%w: %d not in [%d; %d]", domain.ErrBadVersion, r.Version, MinAcceptedVersion, MaxAcceptedVersion)
	}
	if r.Version < minVersion {
		return fmt.Errorf("%w: %d < %d", domain.ErrLowVersion, r.Version, minVersion)
	}
	if r.Size < MinRecordSize || r.Size > MaxRecordSize {
		return fmt.Errorf("%w: %d not in [%d; %d]", domain.ErrBadSize, r.Size, MinRecordSize, MaxRecordSize)
	}
	if int(r.Size) > mapped {
		return fmt.Errorf("%w: record of %d bytes exceeds the %d mapped", domain.ErrBadSize, r.Size, mapped)
	}
	if r.ServicePointer == 0 {
		return domain.ErrNullPointer
	}
	return nil
}

// MemoryName derives the shared memory name from the target and process id.
// Host and plugins compute it independently.
func MemoryName(game domain.Game, pid uint32) string {
	return fmt.Sprintf("LEBinkProxySPI_%d_%d", int(game), pid)
}

func putFixedString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	// Keep a terminating zero for native readers.
	copy(dst[:len(dst)-1], s)
}

func fixedString(src []byte) string {
	if idx := bytes.IndexByte(src, 0); idx >= 0 {
		src = src[:idx]
	}
	return string(src)
}
