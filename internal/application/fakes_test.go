package application

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

type memoryDraftRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*zone.Batch
	drafts  map[uuid.UUID]*zone.Draft
	updates int
}

func newMemoryDraftRepo() *memoryDraftRepo {
	return &memoryDraftRepo{
		batches: make(map[uuid.UUID]*zone.Batch),
		drafts:  make(map[uuid.UUID]*zone.Draft),
	}
}

func (r *memoryDraftRepo) SaveBatch(_ context.Context, batch *zone.Batch, drafts []*zone.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch
	for _, d := range drafts {
		r.drafts[d.ID()] = d
	}
	return nil
}

func (r *memoryDraftRepo) FindBatch(_ context.Context, batchID uuid.UUID) (*zone.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return nil, domain.NewNotFoundError("batch", batchID.String())
	}
	return b, nil
}

func (r *memoryDraftRepo) FindByID(_ context.Context, batchID, draftID uuid.UUID) (*zone.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[draftID]
	if !ok || d.BatchID() != batchID {
		return nil, domain.NewNotFoundError("draft", draftID.String())
	}
	return d, nil
}

func (r *memoryDraftRepo) ListByBatch(ctx context.Context, batchID uuid.UUID, page, limit int) ([]*zone.Draft, int64, error) {
	all, _ := r.ListAllByBatch(ctx, batchID)
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *memoryDraftRepo) ListAllByBatch(_ context.Context, batchID uuid.UUID) ([]*zone.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*zone.Draft
	for _, d := range r.drafts {
		if d.BatchID() == batchID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source().Index < out[j].Source().Index })
	return out, nil
}

func (r *memoryDraftRepo) Update(_ context.Context, d *zone.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[d.ID()]; !ok {
		return domain.NewNotFoundError("draft", d.ID().String())
	}
	r.drafts[d.ID()] = d
	r.updates++
	return nil
}

func (r *memoryDraftRepo) Delete(_ context.Context, batchID, draftID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[draftID]
	if !ok || d.BatchID() != batchID {
		return domain.NewNotFoundError("draft", draftID.String())
	}
	delete(r.drafts, draftID)
	return nil
}

func (r *memoryDraftRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

var errUpstreamDown = errors.New("upstream down")

type fakeZoneService struct {
	mu       sync.Mutex
	created  []zone.CreateInput
	failFor  map[string]bool
	zones    []zone.Zone
	updated  map[string]zone.Patch
	deleted  []string
	notFound bool
}

func (f *fakeZoneService) ListZones(_ context.Context, storeID string) ([]zone.Zone, error) {
	if f.notFound {
		return nil, errNotFound
	}
	var out []zone.Zone
	for _, z := range f.zones {
		if z.StoreID == storeID {
			out = append(out, z)
		}
	}
	return out, nil
}

func (f *fakeZoneService) CreateZone(_ context.Context, in zone.CreateInput) (*zone.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.failFor[in.ZoneName] {
		return nil, errUpstreamDown
	}
	return &zone.Zone{ID: "zone-" + in.ZoneName, StoreID: in.StoreID, ZoneName: in.ZoneName, Coordinates: in.Coordinates}, nil
}

func (f *fakeZoneService) UpdateZone(_ context.Context, zoneID string, patch zone.Patch) (*zone.Zone, error) {
	if f.notFound {
		return nil, errNotFound
	}
	if f.updated == nil {
		f.updated = make(map[string]zone.Patch)
	}
	f.updated[zoneID] = patch
	return &zone.Zone{ID: zoneID, StoreID: "s1"}, nil
}

func (f *fakeZoneService) DeleteZone(_ context.Context, zoneID string) error {
	if f.notFound {
		return errNotFound
	}
	f.deleted = append(f.deleted, zoneID)
	return nil
}

var errNotFound = errors.New("not found upstream")

type fakeDirectory struct {
	entries []store.Entry
	err     error
	calls   int
}

func (d *fakeDirectory) ListStores(context.Context) ([]store.Entry, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.entries, nil
}

type fakeSnapshotCache struct {
	entries     []store.Entry
	found       bool
	sets        int
	invalidated int
}

func (c *fakeSnapshotCache) Get(context.Context) ([]store.Entry, bool, error) {
	return c.entries, c.found, nil
}

func (c *fakeSnapshotCache) Set(_ context.Context, entries []store.Entry) error {
	c.entries, c.found = entries, true
	c.sets++
	return nil
}

func (c *fakeSnapshotCache) Invalidate(context.Context) error {
	c.entries, c.found = nil, false
	c.invalidated++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// snapshotRepo stores copies of drafts, like a database would, and refuses
// work on a cancelled context.
type snapshotRepo struct {
	*memoryDraftRepo
}

func copyDraft(d *zone.Draft) *zone.Draft {
	return zone.ReconstructDraft(d.ID(), d.BatchID(), d.Fields(), d.Source(), d.Status(),
		d.LastError(), d.ZoneID(), d.Version(), d.CreatedAt(), d.UpdatedAt())
}

func (r *snapshotRepo) SaveBatch(ctx context.Context, batch *zone.Batch, drafts []*zone.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copies := make([]*zone.Draft, len(drafts))
	for i, d := range drafts {
		copies[i] = copyDraft(d)
	}
	return r.memoryDraftRepo.SaveBatch(ctx, batch, copies)
}

func (r *snapshotRepo) FindByID(ctx context.Context, batchID, draftID uuid.UUID) (*zone.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := r.memoryDraftRepo.FindByID(ctx, batchID, draftID)
	if err != nil {
		return nil, err
	}
	return copyDraft(d), nil
}

func (r *snapshotRepo) Update(ctx context.Context, d *zone.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memoryDraftRepo.Update(ctx, copyDraft(d))
}

func (r *snapshotRepo) Delete(ctx context.Context, batchID, draftID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memoryDraftRepo.Delete(ctx, batchID, draftID)
}

// cancellingZoneService cancels the caller's context while the create call is
// in flight, like a client that disconnects mid-request.
type cancellingZoneService struct {
	*fakeZoneService
	cancel context.CancelFunc
	err    error
}

func (z *cancellingZoneService) CreateZone(ctx context.Context, in zone.CreateInput) (*zone.Zone, error) {
	z.cancel()
	if z.err != nil {
		return nil, z.err
	}
	return z.fakeZoneService.CreateZone(ctx, in)
}
