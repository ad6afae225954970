package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/confidence"
	"rollcall/internal/contact/models"
	contactstore "rollcall/internal/contact/store/contacts"
	"rollcall/internal/dedupe/service/mocks"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *contactstore.InMemory
	cache   *mocks.MockCache
	auditor *mocks.MockAuditPublisher
	service *Service
	staffID id.StaffID
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = contactstore.NewInMemory()
	s.cache = mocks.NewMockCache(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.staffID = id.StaffID(uuid.New())

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := New(s.store, s.cache, nil, s.auditor, logger, nil)
	require.NoError(s.T(), err)
	s.service = svc
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithStaffID(context.Background(), s.staffID)
	return requestcontext.WithClientMetadata(ctx, "203.0.113.7", "rollcall-admin/2.1")
}

func (s *ServiceSuite) seed(name string) id.ContactID {
	contactID := id.ContactID(uuid.New())
	s.store.Add(&models.Contact{
		ID:            contactID,
		Name:          name,
		Emails:        []string{uuid.NewString() + "@example.com"},
		AddressSource: models.SourceBilling,
		Confidence:    confidence.Medium,
		CreatedAt:     time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	return contactID
}

func (s *ServiceSuite) TestListDuplicates_CacheHit() {
	cached := []*models.DuplicateSet{{NormalizedName: "jane doe", ContactCount: 2}}
	s.cache.EXPECT().Get(gomock.Any()).Return(cached, true, nil)

	sets, err := s.service.ListDuplicates(s.ctx())

	require.NoError(s.T(), err)
	assert.Equal(s.T(), cached, sets)
}

func (s *ServiceSuite) TestListDuplicates_MissReadsThroughAndFills() {
	s.seed("Jane Doe")
	s.seed("jane  doe")
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, false, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

	sets, err := s.service.ListDuplicates(s.ctx())

	require.NoError(s.T(), err)
	require.Len(s.T(), sets, 1)
	assert.Equal(s.T(), "jane doe", sets[0].NormalizedName)
	assert.Equal(s.T(), 2, sets[0].ContactCount)
}

func (s *ServiceSuite) TestListDuplicates_CacheErrorDegradesToStore() {
	s.seed("Jane Doe")
	s.seed("JANE DOE")
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, false, errors.New("redis down"))

	sets, err := s.service.ListDuplicates(s.ctx())

	require.NoError(s.T(), err, "cache failure must not fail the listing")
	require.Len(s.T(), sets, 1)
}

func (s *ServiceSuite) TestListDuplicates_CacheWriteFailureIgnored() {
	s.seed("Jane Doe")
	s.seed("jane doe")
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, false, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	_, err := s.service.ListDuplicates(s.ctx())

	assert.NoError(s.T(), err)
}

func (s *ServiceSuite) TestMerge_InvalidatesCacheAndRefreshes() {
	survivor := s.seed("Jane Doe")
	dup := s.seed("jane doe")
	s.seed("Other Person")
	s.store.AddTag(survivor, "vip")
	s.store.AddTag(dup, "vip")
	s.store.AddTag(dup, "newsletter")

	s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	// Post-merge refresh misses the cache and refills it.
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, false, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.Merge(s.ctx(), MergeRequest{
		SurvivorID:   survivor,
		DuplicateIDs: []id.ContactID{dup},
	})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), survivor, result.SurvivorID)
	assert.Equal(s.T(), 1, result.MergedCount)
	assert.Empty(s.T(), result.Duplicates, "merged pair no longer forms a set")

	assert.ElementsMatch(s.T(), []string{"vip", "newsletter"}, s.store.TagsOf(survivor))
}

func (s *ServiceSuite) TestMerge_AuditCarriesSurvivorAndCount() {
	survivor := s.seed("Jane Doe")
	dupA := s.seed("jane doe")
	dupB := s.seed("JANE DOE")

	var captured audit.Event
	s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, true, nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event audit.Event) error {
			captured = event
			return nil
		})

	_, err := s.service.Merge(s.ctx(), MergeRequest{
		SurvivorID:   survivor,
		DuplicateIDs: []id.ContactID{dupA, dupB},
	})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), audit.EventContactsMerged, captured.Action)
	assert.Equal(s.T(), s.staffID, captured.StaffID)
	assert.Equal(s.T(), survivor.String(), captured.SurvivorID)
	assert.Equal(s.T(), 2, captured.MergedCount)
	assert.Equal(s.T(), "203.0.113.7", captured.ClientIP)
	assert.Equal(s.T(), "rollcall-admin/2.1", captured.UserAgent)
}

func (s *ServiceSuite) TestMerge_Validation() {
	survivor := s.seed("Jane Doe")
	dup := s.seed("jane doe")

	cases := []struct {
		name string
		req  MergeRequest
	}{
		{"missing survivor", MergeRequest{DuplicateIDs: []id.ContactID{dup}}},
		{"empty duplicates", MergeRequest{SurvivorID: survivor}},
		{"survivor among duplicates", MergeRequest{SurvivorID: survivor, DuplicateIDs: []id.ContactID{survivor}}},
		{"repeated duplicate", MergeRequest{SurvivorID: survivor, DuplicateIDs: []id.ContactID{dup, dup}}},
		{"nil duplicate", MergeRequest{SurvivorID: survivor, DuplicateIDs: []id.ContactID{{}}}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Merge(s.ctx(), tc.req)
			assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error")
		})
	}
}

func (s *ServiceSuite) TestMerge_UnknownContactIsNotFound() {
	survivor := s.seed("Jane Doe")

	_, err := s.service.Merge(s.ctx(), MergeRequest{
		SurvivorID:   survivor,
		DuplicateIDs: []id.ContactID{id.ContactID(uuid.New())},
	})

	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestMerge_RunsInsideRunner() {
	survivor := s.seed("Jane Doe")
	dup := s.seed("jane doe")

	runner := mocks.NewMockTxRunner(s.ctrl)
	runner.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
	s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, true, nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	svc, err := New(s.store, s.cache, runner, s.auditor, nil, nil)
	require.NoError(s.T(), err)

	_, err = svc.Merge(s.ctx(), MergeRequest{
		SurvivorID:   survivor,
		DuplicateIDs: []id.ContactID{dup},
	})
	require.NoError(s.T(), err)
}

func (s *ServiceSuite) TestMerge_RunnerFailureRollsBack() {
	survivor := s.seed("Jane Doe")
	dup := s.seed("jane doe")

	runner := mocks.NewMockTxRunner(s.ctrl)
	runner.EXPECT().RunInTx(gomock.Any(), gomock.Any()).Return(errors.New("deadlock detected"))

	svc, err := New(s.store, nil, runner, nil, nil, nil)
	require.NoError(s.T(), err)

	_, err = svc.Merge(s.ctx(), MergeRequest{
		SurvivorID:   survivor,
		DuplicateIDs: []id.ContactID{dup},
	})

	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInternal))
	_, getErr := s.store.Get(context.Background(), dup)
	assert.NoError(s.T(), getErr, "failed merge must leave duplicates intact")
}

func (s *ServiceSuite) TestNew_RequiresStore() {
	_, err := New(nil, nil, nil, nil, nil, nil)
	assert.Error(s.T(), err)
}
