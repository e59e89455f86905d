// Package models defines the store-facing types of the companion client.
package models

import (
	"encoding/hex"

	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// Contact is the local mirror of one device contact table row.
type Contact struct {
	PublicKey    []byte `json:"public_key"`
	Type         byte   `json:"type"`
	Flags        byte   `json:"flags"`
	OutPathLen   int8   `json:"out_path_len"`
	OutPath      []byte `json:"out_path"`
	Name         string `json:"name"`
	LastAdvert   uint32 `json:"last_advert"`
	Lat          int32  `json:"lat"`
	Lon          int32  `json:"lon"`
	LastModified uint32 `json:"last_modified"`
}

// ContactFromRecord converts a wire contact record into its store form.
func ContactFromRecord(rec frame.ContactRecord) *Contact {
	key := make([]byte, len(rec.PublicKey))
	copy(key, rec.PublicKey[:])
	path := make([]byte, 0)
	if rec.OutPathLen > 0 {
		path = append(path, rec.OutPath[:rec.OutPathLen]...)
	}
	return &Contact{
		PublicKey:    key,
		Type:         rec.Type,
		Flags:        rec.Flags,
		OutPathLen:   rec.OutPathLen,
		OutPath:      path,
		Name:         rec.Name,
		LastAdvert:   rec.LastAdvert,
		Lat:          rec.Lat,
		Lon:          rec.Lon,
		LastModified: rec.LastModified,
	}
}

// Record converts the contact back into its wire form.
func (c *Contact) Record() frame.ContactRecord {
	rec := frame.ContactRecord{
		Type:         c.Type,
		Flags:        c.Flags,
		OutPathLen:   c.OutPathLen,
		Name:         c.Name,
		LastAdvert:   c.LastAdvert,
		Lat:          c.Lat,
		Lon:          c.Lon,
		LastModified: c.LastModified,
	}
	copy(rec.PublicKey[:], c.PublicKey)
	copy(rec.OutPath[:], c.OutPath)
	return rec
}

// Key returns the full public key as lowercase hex.
func (c *Contact) Key() string {
	return hex.EncodeToString(c.PublicKey)
}

// ShortKey returns the address prefix of the public key as hex, the form
// shown in listings.
func (c *Contact) ShortKey() string {
	if len(c.PublicKey) < frame.PrefixSize {
		return hex.EncodeToString(c.PublicKey)
	}
	return hex.EncodeToString(c.PublicKey[:frame.PrefixSize])
}

// HasDirectPath reports whether a learned route is stored for the contact.
func (c *Contact) HasDirectPath() bool {
	return c.OutPathLen >= 0
}
