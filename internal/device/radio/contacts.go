package radio

import (
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// advertTypeMask is the low nibble of the advert flags, carrying the node
// type the same way contact records do.
const advertTypeMask = 0x0F

// contactSync builds the full response stream for one GetContacts: the
// start marker with the unfiltered table size, every record modified
// strictly after since, and the end marker with the new watermark.
func (n *Node) contactSync(v frame.GetContacts) []frame.Response {
	recs := make([]*frame.ContactRecord, 0, len(n.contacts))
	for _, c := range n.contacts {
		recs = append(recs, c)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].LastModified != recs[j].LastModified {
			return recs[i].LastModified < recs[j].LastModified
		}
		return recs[i].Name < recs[j].Name
	})

	out := []frame.Response{frame.ContactsStart{Total: uint32(len(recs))}}
	watermark := v.Since
	for _, c := range recs {
		if c.LastModified <= v.Since {
			continue
		}
		out = append(out, frame.Contact{Record: *c})
		if c.LastModified > watermark {
			watermark = c.LastModified
		}
	}
	n.logger.Debug("contact sync", "since", v.Since, "total", len(recs), "sent", len(out)-1)
	return append(out, frame.EndOfContacts{Watermark: watermark})
}

func (n *Node) addUpdateContact(v frame.AddUpdateContact) ([]frame.Response, byte) {
	c := v.Contact
	if c.PublicKey == ([frame.PublicKeySize]byte{}) {
		return nil, frame.ECodeIllegalArg
	}
	if _, known := n.contacts[c.PublicKey]; !known && len(n.contacts) >= n.maxContacts {
		return nil, frame.ECodeTableFull
	}
	c.LastModified = uint32(n.now().Unix())
	n.contacts[c.PublicKey] = &c
	return okResp(), 0
}

func (n *Node) removeContact(v frame.RemoveContact) ([]frame.Response, byte) {
	if _, known := n.contacts[v.PublicKey]; !known {
		return nil, frame.ECodeNotFound
	}
	delete(n.contacts, v.PublicKey)
	delete(n.adverts, v.PublicKey)
	return okResp(), 0
}

func (n *Node) resetPath(v frame.ResetPath) ([]frame.Response, byte) {
	c, known := n.contacts[v.PublicKey]
	if !known {
		return nil, frame.ECodeNotFound
	}
	c.OutPathLen = -1
	c.OutPath = [frame.OutPathSize]byte{}
	c.LastModified = uint32(n.now().Unix())
	return okResp(), 0
}

func (n *Node) shareContact(v frame.ShareContact) ([]frame.Response, byte) {
	if _, known := n.contacts[v.PublicKey]; !known {
		return nil, frame.ECodeNotFound
	}
	n.logger.Info("contact shared", "key_prefix", fmt.Sprintf("%x", v.PublicKey[:4]))
	return okResp(), 0
}

func (n *Node) exportContact(v frame.ExportContact) ([]frame.Response, byte) {
	if v.Self {
		adv := frame.AdvertBlock{
			PublicKey: n.publicKeyLocked(),
			Timestamp: uint32(n.now().Unix()),
			Flags:     frame.ContactTypeChat,
			Name:      n.name,
		}
		adv.Signature = n.sign(adv.SigningPayload())
		return []frame.Response{frame.ContactExport{Advert: adv}}, 0
	}
	c, known := n.contacts[v.PublicKey]
	if !known {
		return nil, frame.ECodeNotFound
	}
	if adv, ok := n.adverts[v.PublicKey]; ok {
		return []frame.Response{frame.ContactExport{Advert: adv}}, 0
	}
	// no advert on record for this contact, export an unsigned one built
	// from the table entry
	return []frame.Response{frame.ContactExport{Advert: frame.AdvertBlock{
		PublicKey: c.PublicKey,
		Timestamp: c.LastAdvert,
		Flags:     c.Type & advertTypeMask,
		Name:      c.Name,
	}}}, 0
}

func (n *Node) importContact(v frame.ImportContact) ([]frame.Response, byte) {
	adv := v.Advert
	if !ed25519.Verify(adv.PublicKey[:], adv.SigningPayload(), adv.Signature[:]) {
		return nil, frame.ECodeIllegalArg
	}
	if _, known := n.contacts[adv.PublicKey]; !known && len(n.contacts) >= n.maxContacts {
		return nil, frame.ECodeTableFull
	}
	n.contacts[adv.PublicKey] = &frame.ContactRecord{
		PublicKey:    adv.PublicKey,
		Type:         adv.Flags & advertTypeMask,
		OutPathLen:   -1,
		Name:         adv.Name,
		LastAdvert:   adv.Timestamp,
		LastModified: uint32(n.now().Unix()),
	}
	n.adverts[adv.PublicKey] = adv
	return okResp(), 0
}

// ReceiveAdvert feeds the node an advert as if heard over the air. Known
// contacts are refreshed and announced with an Advert push; unknown nodes
// are auto-added unless manual adding is on, which turns the advert into a
// NewAdvert push for the app to decide.
func (n *Node) ReceiveAdvert(adv frame.AdvertBlock) error {
	if !ed25519.Verify(adv.PublicKey[:], adv.SigningPayload(), adv.Signature[:]) {
		return fmt.Errorf("advert from %x: bad signature", adv.PublicKey[:4])
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if c, known := n.contacts[adv.PublicKey]; known {
		c.Name = adv.Name
		c.LastAdvert = adv.Timestamp
		c.LastModified = uint32(n.now().Unix())
		n.adverts[adv.PublicKey] = adv
		n.emitPush(frame.Advert{PublicKey: adv.PublicKey})
		return nil
	}

	if n.manualAdd {
		n.emitPush(frame.NewAdvert{Advert: adv})
		return nil
	}

	if len(n.contacts) >= n.maxContacts {
		n.logger.Warn("contact table full, advert dropped", "name", adv.Name)
		return nil
	}
	n.contacts[adv.PublicKey] = &frame.ContactRecord{
		PublicKey:    adv.PublicKey,
		Type:         adv.Flags & advertTypeMask,
		OutPathLen:   -1,
		Name:         adv.Name,
		LastAdvert:   adv.Timestamp,
		LastModified: uint32(n.now().Unix()),
	}
	n.adverts[adv.PublicKey] = adv
	n.emitPush(frame.Advert{PublicKey: adv.PublicKey})
	return nil
}

// UpdatePath records a learned route to a contact and announces it with a
// PathUpdated push.
func (n *Node) UpdatePath(key [frame.PublicKeySize]byte, path []byte) error {
	if len(path) > frame.OutPathSize {
		return fmt.Errorf("path of %d hops exceeds %d", len(path), frame.OutPathSize)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	c, known := n.contacts[key]
	if !known {
		return fmt.Errorf("no contact %x", key[:4])
	}
	c.OutPath = [frame.OutPathSize]byte{}
	copy(c.OutPath[:], path)
	c.OutPathLen = int8(len(path))
	c.LastModified = uint32(n.now().Unix())
	n.emitPush(frame.PathUpdated{PublicKey: key})
	return nil
}

// ContactCount reports the table size.
func (n *Node) ContactCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.contacts)
}

// Contact looks up one table entry by key.
func (n *Node) Contact(key [frame.PublicKeySize]byte) (frame.ContactRecord, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.contacts[key]
	if !ok {
		return frame.ContactRecord{}, false
	}
	return *c, true
}
