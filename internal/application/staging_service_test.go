package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/placemark"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
)

const northZoneKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
  <Placemark>
    <name>North Zone</name>
    <description>Base Fee: 5
Restricted: Yes</description>
    <Polygon><outerBoundaryIs><LinearRing>
      <coordinates>-122.4,37.8,0 -122.5,37.7,0</coordinates>
    </LinearRing></outerBoundaryIs></Polygon>
  </Placemark>
</Document></kml>`

const threeZonesKML = `<kml><Document>
  <Placemark><name>Alpha</name><Point><coordinates>1,1</coordinates></Point></Placemark>
  <Placemark><name>Bravo</name><Point><coordinates>2,2</coordinates></Point></Placemark>
  <Placemark><name>Charlie</name><Point><coordinates>3,3</coordinates></Point></Placemark>
</Document></kml>`

var testStores = []store.Entry{
	{ID: "s1", DisplayName: "Main Street Store"},
	{ID: "s2", DisplayName: "Mainline Store"},
}

type harness struct {
	repo      *memoryDraftRepo
	zones     *fakeZoneService
	directory *fakeDirectory
	publisher *recordingPublisher
	catalog   *StoreCatalog
	imports   *ImportService
	staging   *StagingService
	admin     *ZoneAdminService
}

func newHarness() *harness {
	h := &harness{
		repo:      newMemoryDraftRepo(),
		zones:     &fakeZoneService{failFor: map[string]bool{}},
		directory: &fakeDirectory{entries: testStores},
		publisher: &recordingPublisher{},
	}
	logger := zap.NewNop()
	h.catalog = NewStoreCatalog(h.directory, nil, logger)
	h.imports = NewImportService(h.repo, h.catalog, metadata.NewCanonicalizer(metadata.DefaultSynonyms()), h.publisher, logger)
	h.staging = NewStagingService(h.repo, h.zones, h.catalog, h.publisher, logger)
	h.admin = NewZoneAdminService(h.zones, h.catalog, func(err error) bool { return errors.Is(err, errNotFound) }, h.publisher, logger)
	return h
}

func (h *harness) importDoc(t *testing.T, doc, storeQuery string) *ImportResult {
	t.Helper()
	res, err := h.imports.Import(context.Background(), ImportRequest{Filename: "zones.kml", Content: []byte(doc), StoreQuery: storeQuery})
	require.NoError(t, err)
	return res
}

func TestImport_NorthZoneStagesUnresolvedDraft(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, northZoneKML, "")

	require.Len(t, res.Drafts, 1)
	d := res.Drafts[0]
	assert.Equal(t, "North Zone", d.ZoneName)
	assert.Equal(t, 5.0, d.BaseDeliveryFee)
	assert.True(t, d.IsRestricted)
	assert.Equal(t, []placemark.Coordinate{{Lat: 37.8, Lon: -122.4}, {Lat: 37.7, Lon: -122.5}}, d.Coordinates)
	assert.Empty(t, d.StoreID)
	assert.False(t, d.Submittable)
	assert.Contains(t, d.BlockingReasons, zone.ErrUnresolvedStore.Error())
	assert.Equal(t, 0, res.SubmittableCount)
	assert.Equal(t, string(store.TierUnresolved), res.Store.Tier)
	assert.Equal(t, 0, h.directory.calls, "no store query means no directory load")

	assert.Equal(t, []string{ZoneImportStaged}, h.publisher.types())

	_, err := h.staging.SubmitDraft(context.Background(), res.BatchID, d.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, zone.ErrUnresolvedStore)
	assert.Equal(t, domain.KindUnprocessable, domain.KindOf(err))
	assert.Empty(t, h.zones.created, "a blocked draft never reaches the zone service")

	got, err := h.staging.GetDraft(context.Background(), res.BatchID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusParsed), got.Status)
}

func TestImport_ResolvesStoreByPrefix(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, northZoneKML, "main s")

	assert.Equal(t, string(store.TierPrefix), res.Store.Tier)
	assert.Equal(t, "s1", res.Store.StoreID)
	assert.Equal(t, "s1", res.Drafts[0].StoreID)
	assert.True(t, res.Drafts[0].Submittable)
	assert.Equal(t, 1, res.SubmittableCount)
}

func TestImport_UnresolvedStoreNameStillStages(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, northZoneKML, "Street Store")

	assert.Equal(t, string(store.TierUnresolved), res.Store.Tier)
	assert.Empty(t, res.Drafts[0].StoreID)
	assert.Equal(t, 1, h.repo.count())
}

func TestImport_DocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind domain.ErrorKind
		is   error
	}{
		{"no placemarks", `<kml><Document><name>empty</name></Document></kml>`, domain.KindUnprocessable, placemark.ErrNoGeometryFound},
		{"malformed", `<kml><Placemark><name>x</Placemark></kml>`, domain.KindValidation, placemark.ErrDocumentUnparsable},
		{"not xml", `hello`, domain.KindValidation, placemark.ErrDocumentUnparsable},
		{"empty", ``, domain.KindValidation, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.imports.Import(context.Background(), ImportRequest{Filename: "x.kml", Content: []byte(tt.doc)})
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Zero(t, h.repo.count(), "nothing is staged")
			assert.Empty(t, h.publisher.types())
		})
	}
}

func TestImport_StructuredDescription(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, `<kml><Placemark><description>{"zoneName":"X","basefee":3}</description><Point><coordinates>4,5</coordinates></Point></Placemark></kml>`, "")

	require.Len(t, res.Drafts, 1)
	assert.Equal(t, "X", res.Drafts[0].ZoneName)
	assert.Equal(t, 3.0, res.Drafts[0].BaseDeliveryFee)
}

func TestSubmitDraft_Success(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, northZoneKML, "Main Street Store")
	draftID := res.Drafts[0].ID

	created, err := h.staging.SubmitDraft(context.Background(), res.BatchID, draftID)
	require.NoError(t, err)
	assert.Equal(t, "zone-North Zone", created.ID)

	require.Len(t, h.zones.created, 1)
	assert.Equal(t, "s1", h.zones.created[0].StoreID)
	assert.Equal(t, 5.0, h.zones.created[0].BaseDeliveryFee)

	_, err = h.staging.GetDraft(context.Background(), res.BatchID, draftID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err), "submitted drafts leave the staging set")
	assert.Equal(t, []string{ZoneImportStaged, ZoneCreated}, h.publisher.types())
}

func TestSubmitDraft_FailureReturnsToParsed(t *testing.T) {
	h := newHarness()
	h.zones.failFor["North Zone"] = true
	res := h.importDoc(t, northZoneKML, "Mainline")
	draftID := res.Drafts[0].ID

	_, err := h.staging.SubmitDraft(context.Background(), res.BatchID, draftID)
	require.Error(t, err)
	assert.ErrorIs(t, err, zone.ErrSubmissionFailed)
	assert.ErrorIs(t, err, errUpstreamDown)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	got, err := h.staging.GetDraft(context.Background(), res.BatchID, draftID)
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusParsed), got.Status)
	assert.Equal(t, errUpstreamDown.Error(), got.LastError)
	assert.Equal(t, []string{ZoneImportStaged, ZoneSubmissionFailed}, h.publisher.types())

	h.zones.failFor["North Zone"] = false
	_, err = h.staging.SubmitDraft(context.Background(), res.BatchID, draftID)
	require.NoError(t, err, "a failed draft can be retried")
}

func TestSubmitAll_ContinuesAfterFailure(t *testing.T) {
	h := newHarness()
	h.zones.failFor["Bravo"] = true
	res := h.importDoc(t, threeZonesKML, "Main Street Store")
	require.Len(t, res.Drafts, 3)

	report, err := h.staging.SubmitAll(context.Background(), res.BatchID)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, []string{OutcomeSubmitted, OutcomeFailed, OutcomeSubmitted},
		[]string{report.Outcomes[0].Status, report.Outcomes[1].Status, report.Outcomes[2].Status})
	assert.Equal(t, "Charlie", h.zones.created[2].ZoneName, "drafts are submitted in document order")

	remaining, err := h.staging.ListDrafts(context.Background(), res.BatchID, 1, 10)
	require.NoError(t, err)
	require.Len(t, remaining.Items, 1)
	assert.Equal(t, "Bravo", remaining.Items[0].ZoneName)
	assert.Equal(t, string(zone.StatusParsed), remaining.Items[0].Status)
	assert.NotEmpty(t, remaining.Items[0].LastError)
}

func TestSubmitAll_ReportsBlockedDrafts(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, threeZonesKML, "")

	report, err := h.staging.SubmitAll(context.Background(), res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Blocked)
	assert.Zero(t, report.Submitted)
	assert.Empty(t, h.zones.created)
	for _, o := range report.Outcomes {
		assert.Contains(t, o.Error, zone.ErrUnresolvedStore.Error())
	}
}

func TestSubmitAll_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, threeZonesKML, "Main Street Store")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := h.staging.SubmitAll(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Submitted)
}

func TestSubmit_OneRunPerBatch(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, threeZonesKML, "Main Street Store")

	unlock, ok := h.staging.locks.tryLock(res.BatchID)
	require.True(t, ok)

	_, err := h.staging.SubmitAll(context.Background(), res.BatchID)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	_, err = h.staging.SubmitDraft(context.Background(), res.BatchID, res.Drafts[0].ID)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	unlock()
	_, err = h.staging.SubmitAll(context.Background(), res.BatchID)
	assert.NoError(t, err)
}

func TestReviewDraft(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, northZoneKML, "")
	d := res.Drafts[0]

	req := ReviewDraftRequest{
		Version:         d.Version,
		ZoneName:        "North Zone (edited)",
		BaseDeliveryFee: 6,
		Coordinates:     d.Coordinates,
		StoreQuery:      "mainline",
	}
	got, err := h.staging.ReviewDraft(context.Background(), res.BatchID, d.ID, req)
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusReviewed), got.Status)
	assert.Equal(t, "s2", got.StoreID)
	assert.Equal(t, 6.0, got.BaseDeliveryFee)
	assert.True(t, got.Submittable)
	assert.Equal(t, d.Version+1, got.Version)

	_, err = h.staging.ReviewDraft(context.Background(), res.BatchID, d.ID, req)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err), "stale version is rejected")

	req.Version = got.Version
	req.StoreQuery = "Nowhere"
	_, err = h.staging.ReviewDraft(context.Background(), res.BatchID, d.ID, req)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestDiscardDraft(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, threeZonesKML, "")

	require.NoError(t, h.staging.DiscardDraft(context.Background(), res.BatchID, res.Drafts[1].ID))
	page, err := h.staging.ListDrafts(context.Background(), res.BatchID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	err = h.staging.DiscardDraft(context.Background(), res.BatchID, res.Drafts[1].ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestListDrafts_UnknownBatch(t *testing.T) {
	h := newHarness()
	_, err := h.staging.ListDrafts(context.Background(), [16]byte{1}, 1, 10)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func newSnapshotStaging(t *testing.T, zones zone.Service) (*snapshotRepo, *StagingService, *ImportResult) {
	t.Helper()
	repo := &snapshotRepo{memoryDraftRepo: newMemoryDraftRepo()}
	logger := zap.NewNop()
	catalog := NewStoreCatalog(&fakeDirectory{entries: testStores}, nil, logger)
	imports := NewImportService(repo, catalog, metadata.NewCanonicalizer(metadata.DefaultSynonyms()), nil, logger)
	res, err := imports.Import(context.Background(), ImportRequest{Filename: "zones.kml", Content: []byte(northZoneKML), StoreQuery: "Main Street Store"})
	require.NoError(t, err)
	return repo, NewStagingService(repo, zones, catalog, nil, logger), res
}

func TestSubmitDraft_CancelledCallerStillReturnsDraftToParsed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	zones := &cancellingZoneService{fakeZoneService: &fakeZoneService{}, cancel: cancel, err: context.Canceled}
	repo, staging, res := newSnapshotStaging(t, zones)
	draftID := res.Drafts[0].ID

	_, err := staging.SubmitDraft(ctx, res.BatchID, draftID)
	require.Error(t, err)
	assert.ErrorIs(t, err, zone.ErrSubmissionFailed)

	stored, err := repo.FindByID(context.Background(), res.BatchID, draftID)
	require.NoError(t, err)
	assert.Equal(t, zone.StatusParsed, stored.Status())
	assert.Equal(t, context.Canceled.Error(), stored.LastError())

	zones.err = nil
	_, err = staging.SubmitDraft(context.Background(), res.BatchID, draftID)
	require.NoError(t, err, "the operator can retry after a cancelled submission")
	assert.Zero(t, repo.count())
}

func TestSubmitDraft_CancelledCallerStillLeavesStaging(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	zones := &cancellingZoneService{fakeZoneService: &fakeZoneService{}, cancel: cancel}
	repo, staging, res := newSnapshotStaging(t, zones)

	created, err := staging.SubmitDraft(ctx, res.BatchID, res.Drafts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "zone-North Zone", created.ID)
	assert.Zero(t, repo.count(), "the draft is removed even though the caller went away")
}

func TestStaging_RecoversInterruptedSubmissions(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, threeZonesKML, "Main Street Store")
	ctx := context.Background()

	for _, dto := range res.Drafts {
		d, err := h.repo.FindByID(ctx, res.BatchID, dto.ID)
		require.NoError(t, err)
		require.NoError(t, d.BeginSubmission())
	}

	review := ReviewDraftRequest{
		Version:     res.Drafts[0].Version,
		ZoneName:    "Alpha (edited)",
		Coordinates: res.Drafts[0].Coordinates,
		StoreID:     "s1",
	}

	unlock, ok := h.staging.locks.tryLock(res.BatchID)
	require.True(t, ok)
	_, err := h.staging.ReviewDraft(ctx, res.BatchID, res.Drafts[0].ID, review)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err), "a running submission still owns the draft")
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(h.staging.DiscardDraft(ctx, res.BatchID, res.Drafts[1].ID)))
	unlock()

	got, err := h.staging.ReviewDraft(ctx, res.BatchID, res.Drafts[0].ID, review)
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusReviewed), got.Status)
	assert.Equal(t, reasonInterrupted, got.LastError)

	require.NoError(t, h.staging.DiscardDraft(ctx, res.BatchID, res.Drafts[1].ID))

	created, err := h.staging.SubmitDraft(ctx, res.BatchID, res.Drafts[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "zone-Charlie", created.ID)
}

func TestSubmitAll_RecoversInterruptedSubmissions(t *testing.T) {
	h := newHarness()
	res := h.importDoc(t, threeZonesKML, "Main Street Store")

	d, err := h.repo.FindByID(context.Background(), res.BatchID, res.Drafts[1].ID)
	require.NoError(t, err)
	require.NoError(t, d.BeginSubmission())

	report, err := h.staging.SubmitAll(context.Background(), res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Submitted)
	assert.Zero(t, h.repo.count())
}
