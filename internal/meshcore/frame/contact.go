package frame

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ContactWireSize is the fixed on-wire size of a ContactRecord.
const ContactWireSize = 147

// ContactRecord is one entry of the device contact table as it travels in
// Contact responses and AddUpdateContact commands.
//
// Wire layout:
//
//	[0:32]    public key
//	[32]      type
//	[33]      flags
//	[34]      out path length, int8, -1 when no direct path is known
//	[35:99]   out path
//	[99:131]  name, zero padded
//	[131:135] last advert timestamp, u32 epoch seconds
//	[135:139] latitude, i32 degrees x 1e6
//	[139:143] longitude, i32 degrees x 1e6
//	[143:147] last modified timestamp, u32 epoch seconds
type ContactRecord struct {
	PublicKey    [PublicKeySize]byte
	Type         byte
	Flags        byte
	OutPathLen   int8
	OutPath      [OutPathSize]byte
	Name         string
	LastAdvert   uint32
	Lat          int32
	Lon          int32
	LastModified uint32
}

// Prefix returns the leading bytes of the public key used to address the
// contact in message commands.
func (c *ContactRecord) Prefix() [PrefixSize]byte {
	var p [PrefixSize]byte
	copy(p[:], c.PublicKey[:PrefixSize])
	return p
}

// HasDirectPath reports whether a usable out path is recorded for the
// contact. Without one, sends to it fall back to flood routing.
func (c *ContactRecord) HasDirectPath() bool {
	return c.OutPathLen >= 0
}

func (c *ContactRecord) validate() error {
	if len(c.Name) > NameSize {
		return fmt.Errorf("%w: contact name %d bytes exceeds %d", ErrInvalidField, len(c.Name), NameSize)
	}
	if c.OutPathLen < -1 || int(c.OutPathLen) > OutPathSize {
		return fmt.Errorf("%w: out path length %d", ErrInvalidField, c.OutPathLen)
	}
	return ValidateLatLon(c.Lat, c.Lon)
}

func appendContact(dst []byte, c *ContactRecord) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	dst = append(dst, c.PublicKey[:]...)
	dst = append(dst, c.Type, c.Flags, byte(c.OutPathLen))
	dst = append(dst, c.OutPath[:]...)
	dst = appendFixedName(dst, c.Name)
	dst = binary.LittleEndian.AppendUint32(dst, c.LastAdvert)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Lat))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Lon))
	dst = binary.LittleEndian.AppendUint32(dst, c.LastModified)
	return dst, nil
}

func parseContact(b []byte) (ContactRecord, error) {
	var c ContactRecord
	if len(b) < ContactWireSize {
		return c, fmt.Errorf("%w: contact record %d bytes, want %d", ErrTruncated, len(b), ContactWireSize)
	}
	copy(c.PublicKey[:], b[0:32])
	c.Type = b[32]
	c.Flags = b[33]
	c.OutPathLen = int8(b[34])
	copy(c.OutPath[:], b[35:99])
	c.Name = trimFixedName(b[99:131])
	c.LastAdvert = binary.LittleEndian.Uint32(b[131:135])
	c.Lat = int32(binary.LittleEndian.Uint32(b[135:139]))
	c.Lon = int32(binary.LittleEndian.Uint32(b[139:143]))
	c.LastModified = binary.LittleEndian.Uint32(b[143:147])
	return c, nil
}

// AdvertMinSize is the size of an advert block with an empty name.
const AdvertMinSize = 101

// AdvertBlock is a signed identity announcement, exchanged verbatim by
// ExportContact, ImportContact and the NewAdvert push.
//
// Wire layout:
//
//	[0:32]   public key
//	[32:36]  timestamp, u32 epoch seconds
//	[36:100] signature
//	[100]    flags
//	[101:]   name, remainder of the payload
type AdvertBlock struct {
	PublicKey [PublicKeySize]byte
	Timestamp uint32
	Signature [SignatureSize]byte
	Flags     byte
	Name      string
}

func appendAdvert(dst []byte, a *AdvertBlock) ([]byte, error) {
	if len(a.Name) > NameSize {
		return nil, fmt.Errorf("%w: advert name %d bytes exceeds %d", ErrInvalidField, len(a.Name), NameSize)
	}
	dst = append(dst, a.PublicKey[:]...)
	dst = binary.LittleEndian.AppendUint32(dst, a.Timestamp)
	dst = append(dst, a.Signature[:]...)
	dst = append(dst, a.Flags)
	dst = append(dst, a.Name...)
	return dst, nil
}

func parseAdvert(b []byte) (AdvertBlock, error) {
	var a AdvertBlock
	if len(b) < AdvertMinSize {
		return a, fmt.Errorf("%w: advert block %d bytes, want at least %d", ErrTruncated, len(b), AdvertMinSize)
	}
	copy(a.PublicKey[:], b[0:32])
	a.Timestamp = binary.LittleEndian.Uint32(b[32:36])
	copy(a.Signature[:], b[36:100])
	a.Flags = b[100]
	a.Name = string(b[101:])
	return a, nil
}

// MarshalBinary renders the advert in its wire layout. The result is what
// ImportContact expects and what ExportContact returns, so it doubles as
// the portable "contact card" form.
func (a *AdvertBlock) MarshalBinary() ([]byte, error) {
	return appendAdvert(nil, a)
}

// UnmarshalAdvert parses a wire-layout advert block.
func UnmarshalAdvert(b []byte) (AdvertBlock, error) {
	return parseAdvert(b)
}

// SigningPayload returns the bytes covered by the advert signature: the
// timestamp, flags and name signed by the advertised key.
func (a *AdvertBlock) SigningPayload() []byte {
	out := make([]byte, 0, 4+1+len(a.Name))
	out = binary.LittleEndian.AppendUint32(out, a.Timestamp)
	out = append(out, a.Flags)
	out = append(out, a.Name...)
	return out
}

// ValidateLatLon checks that a coordinate pair is inside the representable
// range of degrees x 1e6.
func ValidateLatLon(lat, lon int32) error {
	if lat < -MaxLatitudeE6 || lat > MaxLatitudeE6 {
		return fmt.Errorf("%w: latitude %d out of range", ErrInvalidField, lat)
	}
	if lon < -MaxLongitudeE6 || lon > MaxLongitudeE6 {
		return fmt.Errorf("%w: longitude %d out of range", ErrInvalidField, lon)
	}
	return nil
}

// ValidateRadioParams checks frequency, bandwidth, spreading factor and
// coding rate against the hardware limits.
func ValidateRadioParams(freqKHz, bwHz uint32, sf, cr byte) error {
	if freqKHz < MinFrequencyKHz || freqKHz > MaxFrequencyKHz {
		return fmt.Errorf("%w: frequency %d kHz out of range", ErrInvalidField, freqKHz)
	}
	if bwHz < MinBandwidthHz || bwHz > MaxBandwidthHz {
		return fmt.Errorf("%w: bandwidth %d Hz out of range", ErrInvalidField, bwHz)
	}
	if sf < MinSpreadingFactor || sf > MaxSpreadingFactor {
		return fmt.Errorf("%w: spreading factor %d out of range", ErrInvalidField, sf)
	}
	if cr < MinCodingRate || cr > MaxCodingRate {
		return fmt.Errorf("%w: coding rate %d out of range", ErrInvalidField, cr)
	}
	return nil
}

func appendFixedName(dst []byte, name string) []byte {
	var buf [NameSize]byte
	copy(buf[:], name)
	return append(dst, buf[:]...)
}

func trimFixedName(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
