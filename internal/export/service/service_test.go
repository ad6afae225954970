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
	"rollcall/internal/export/service/mocks"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *contactstore.InMemory
	auditor *mocks.MockAuditPublisher
	service *Service
	staffID id.StaffID
	now     time.Time
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.store = contactstore.NewInMemory()
	s.auditor = mocks.NewMockAuditPublisher(ctrl)
	s.staffID = id.StaffID(uuid.New())
	s.now = time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := New(s.store, s.auditor, logger, nil)
	require.NoError(s.T(), err)
	s.service = svc
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithStaffID(context.Background(), s.staffID)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "rollcall-admin/2.1")
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) seed(name string, score float64) {
	s.store.Add(&models.Contact{
		ID:     id.ContactID(uuid.New()),
		Name:   name,
		Emails: []string{name + "@example.com"},
		BillingAddress: models.Address{
			Line1:      "1 Main St",
			City:       "Dover",
			PostalCode: "03820",
		},
		AddressSource: models.SourceBilling,
		Confidence:    confidence.Classify(score).Level,
		BillingScore:  score,
		CreatedAt:     s.now.AddDate(0, -1, 0),
	})
}

func (s *ServiceSuite) TestExport_DefaultsToHighConfidence() {
	s.seed("ada", 90)
	s.seed("walt", 50)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.Export(s.ctx(), Filter{IncludeMetadata: true})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, result.Count)
	assert.Equal(s.T(), "mailing_list_high_2026-06-01.csv", result.Filename)
	assert.Contains(s.T(), result.CSV, "ada@example.com")
	assert.NotContains(s.T(), result.CSV, "walt@example.com")
}

func (s *ServiceSuite) TestExport_InvalidFilterRejectedBeforeQuery() {
	_, err := s.service.Export(s.ctx(), Filter{MinConfidence: "extreme"})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Export(s.ctx(), Filter{RecentDays: -3})
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestExport_NoMatchesIsNotFound() {
	s.seed("walt", 50)

	_, err := s.service.Export(s.ctx(), Filter{MinConfidence: confidence.VeryHigh})

	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestExport_DeterministicBody() {
	s.seed("ada", 90)
	s.seed("grace", 80)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	first, err := s.service.Export(s.ctx(), Filter{IncludeMetadata: true})
	require.NoError(s.T(), err)
	second, err := s.service.Export(s.ctx(), Filter{IncludeMetadata: true})
	require.NoError(s.T(), err)

	assert.Equal(s.T(), first.CSV, second.CSV,
		"same filter over unchanged data must produce identical bytes")
}

func (s *ServiceSuite) TestExport_StatisticsCarriedOnResult() {
	s.seed("ada", 90)
	s.seed("grace", 65)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.Export(s.ctx(), Filter{MinConfidence: confidence.High})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, result.Statistics.Total)
	assert.Equal(s.T(), 1, result.Statistics.ByConfidence[confidence.VeryHigh])
	assert.Equal(s.T(), 1, result.Statistics.ByConfidence[confidence.High])
	assert.Equal(s.T(), 0, result.Statistics.ByConfidence[confidence.VeryLow])
}

func (s *ServiceSuite) TestExport_AuditCarriesFilterAndTotals() {
	s.seed("ada", 90)

	var captured audit.Event
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event audit.Event) error {
			captured = event
			return nil
		})

	_, err := s.service.Export(s.ctx(), Filter{RecentDays: 0, IncludeMetadata: true})
	require.NoError(s.T(), err)

	assert.Equal(s.T(), audit.EventMailingListExported, captured.Action)
	assert.Equal(s.T(), s.staffID, captured.StaffID)
	assert.Equal(s.T(), "high", captured.MinConfidence)
	assert.Equal(s.T(), 1, captured.TotalRecords)
	assert.Equal(s.T(), "203.0.113.7", captured.ClientIP)
	assert.Equal(s.T(), "rollcall-admin/2.1", captured.UserAgent)
	assert.Equal(s.T(), s.now, captured.Timestamp)
}

func (s *ServiceSuite) TestExport_AuditFailureDoesNotFailExport() {
	s.seed("ada", 90)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))

	result, err := s.service.Export(s.ctx(), Filter{})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, result.Count)
}

func (s *ServiceSuite) TestExport_StoreFailureIsInternal() {
	svc, err := New(failingStore{}, s.auditor, nil, nil)
	require.NoError(s.T(), err)

	_, err = svc.Export(s.ctx(), Filter{})

	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestNew_RequiresStore() {
	_, err := New(nil, nil, nil, nil)
	assert.Error(s.T(), err)
}

type failingStore struct{}

func (failingStore) MailingList(context.Context, contactstore.MailingListFilter) ([]*models.Contact, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) ListDuplicateSets(context.Context) ([]*models.DuplicateSet, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) Merge(context.Context, id.ContactID, []id.ContactID) error {
	return errors.New("connection reset")
}
