package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/contacts"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// ContactStream is the pull iterator a sync run consumes.
type ContactStream interface {
	Next(ctx context.Context) (frame.ContactRecord, bool, error)
	Total() uint32
	Watermark() uint32
	Close() error
}

// contactSyncer starts a device contact stream from a watermark.
type contactSyncer interface {
	SyncContacts(ctx context.Context, since uint32) (ContactStream, error)
}

// SyncResult summarizes one completed contact sync run.
type SyncResult struct {
	// Total is the device-side contact count, unfiltered by the watermark.
	Total uint32
	// Updated counts the records streamed and stored this run.
	Updated int
	// Watermark is where the next run resumes from.
	Watermark uint32
}

// ContactService mirrors the device contact table into the local store.
type ContactService struct {
	syncer   contactSyncer
	contacts contacts.Repository
	meta     metadata.Repository
	logger   logging.Logger
}

func NewContactService(syncer contactSyncer, contactRepo contacts.Repository, metaRepo metadata.Repository, logger logging.Logger) *ContactService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ContactService{syncer: syncer, contacts: contactRepo, meta: metaRepo, logger: logger}
}

// Sync pulls every contact changed since the stored watermark and upserts
// it locally. The watermark advances only when the run completes cleanly,
// so an interrupted run repeats records next time instead of losing them.
func (s *ContactService) Sync(ctx context.Context) (SyncResult, error) {
	since, err := s.meta.Watermark(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	stream, err := s.syncer.SyncContacts(ctx, since)
	if err != nil {
		return SyncResult{}, fmt.Errorf("contact sync: %w", err)
	}
	defer stream.Close()

	updated := 0
	for {
		rec, ok, err := stream.Next(ctx)
		if err != nil {
			return SyncResult{}, fmt.Errorf("contact sync after %d records: %w", updated, err)
		}
		if !ok {
			break
		}
		if err := s.contacts.Upsert(ctx, models.ContactFromRecord(rec)); err != nil {
			return SyncResult{}, err
		}
		updated++
	}

	res := SyncResult{Total: stream.Total(), Updated: updated, Watermark: stream.Watermark()}
	if err := s.meta.SetWatermark(ctx, res.Watermark); err != nil {
		return SyncResult{}, err
	}
	s.logger.Info("contact sync finished",
		"total", res.Total, "updated", res.Updated, "watermark", res.Watermark)
	return res, nil
}

// List returns the stored contacts ordered by name.
func (s *ContactService) List(ctx context.Context) ([]models.Contact, error) {
	return s.contacts.GetAll(ctx)
}

// Get returns one stored contact by full public key.
func (s *ContactService) Get(ctx context.Context, key []byte) (*models.Contact, error) {
	return s.contacts.GetByKey(ctx, key)
}

// FindByPrefix returns the stored contact whose key starts with prefix.
func (s *ContactService) FindByPrefix(ctx context.Context, prefix []byte) (*models.Contact, error) {
	return s.contacts.GetByPrefix(ctx, prefix)
}

// Resolve finds a contact by display name (case-insensitive) or by a hex
// prefix of its public key. Names win over hex to keep "beef" addressable
// as a name.
func (s *ContactService) Resolve(ctx context.Context, query string) (*models.Contact, error) {
	all, err := s.contacts.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, query) {
			return &all[i], nil
		}
	}
	if raw, err := hex.DecodeString(strings.ToLower(query)); err == nil && len(raw) > 0 {
		for i := range all {
			if bytes.HasPrefix(all[i].PublicKey, raw) {
				return &all[i], nil
			}
		}
	}
	return nil, fmt.Errorf("contact %q: %w", query, common.ErrorNotFound)
}
