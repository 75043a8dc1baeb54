package submission_test

//go:generate mockgen -source=page.go -destination=mocks/mocks.go -package=mocks Page,Browser,Operator,Normalizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"skrining/internal/domain"
	"skrining/internal/lock"
	"skrining/internal/logstore/memory"
	"skrining/internal/normalize"
	"skrining/internal/platform/config"
	"skrining/internal/platform/metrics"
	"skrining/internal/submission"
	"skrining/internal/submission/mocks"
	dErrors "skrining/pkg/domain-errors"
	"skrining/pkg/platform/sentinel"
)

const testNIK = "3578102009820006"

// EngineSuite drives the submission state machine against a scripted portal.
//
// Justification for unit tests: the engine's guarantees (no double
// submission, every terminal outcome persisted, modal priority, fatal versus
// entity-terminal failures) depend on the order of portal interactions,
// which only a scripted page can pin down.
type EngineSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	normalizer *mocks.MockNormalizer
	operator   *mocks.MockOperator
	browser    *mocks.MockBrowser
	page       *mocks.MockPage
	portal     *fakePortal
	store      *memory.InMemoryStore
	locks      *lock.Manager
	lockDir    string
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        config.Portal
	clockMu    sync.Mutex
	clock      time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.normalizer = mocks.NewMockNormalizer(s.ctrl)
	s.operator = mocks.NewMockOperator(s.ctrl)
	s.browser = mocks.NewMockBrowser(s.ctrl)
	s.page = mocks.NewMockPage(s.ctrl)
	s.portal = newFakePortal()
	s.portal.bind(s.page)
	s.store = memory.New()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.lockDir = filepath.Join(s.T().TempDir(), "locks")
	s.locks = lock.NewManager(s.lockDir, lock.WithLogger(s.logger))
	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.New(s.registry)
	s.clock = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	s.cfg = config.Portal{
		BaseURL:        "https://portal.example",
		LoginPath:      "/login",
		FormPath:       "/skrining/create",
		SuccessTimeout: 5 * time.Second,
		PollInterval:   time.Second,
		MaxAlertCycles: 2,
		MaxOpenPages:   3,
		Defaults:       map[string]string{"#riwayat_tb": "Tidak"},
	}
}

// tick advances one second per reading so polling loops terminate.
func (s *EngineSuite) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *EngineSuite) engine(opts ...submission.Option) *submission.Engine {
	base := []submission.Option{
		submission.WithLogger(s.logger),
		submission.WithMetrics(s.metrics),
		submission.WithClock(s.tick),
		submission.WithOperator(s.operator),
	}
	return submission.NewEngine(s.normalizer, s.store, s.locks, s.cfg, append(base, opts...)...)
}

func (s *EngineSuite) session() *submission.Session {
	s.browser.EXPECT().NewPage(gomock.Any()).Return(s.page, nil).AnyTimes()
	s.browser.EXPECT().Pages().Return([]submission.Page{s.page}).AnyTimes()
	return submission.NewSession(s.browser, s.cfg, submission.WithSessionLogger(s.logger))
}

func raw(nik, name string) domain.RawRecord {
	return domain.NewRawRecord([]string{"NIK", "Nama"}, []string{nik, name})
}

func entity() *domain.NormalizedEntity {
	return &domain.NormalizedEntity{
		NIK:        testNIK,
		Name:       "JANE DOE",
		Sex:        domain.SexMale,
		BirthDate:  time.Date(1982, 9, 20, 0, 0, 0, 0, time.UTC),
		Age:        42,
		Occupation: "Wiraswasta",
		Address: domain.Address{
			Line:     "JL. AIRLANGGA 1",
			Province: "JAWA TIMUR",
			Regency:  "KOTA SURABAYA",
			District: "GUBENG",
			Village:  "AIRLANGGA",
		},
		HeightCM: 168,
		WeightKG: 65,
		ExamDate: time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		Cough:    "Tidak",
		Fever:    "Tidak",
	}
}

func (s *EngineSuite) expectNormalize() {
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).Return(entity(), nil)
}

func (s *EngineSuite) logged() *domain.LogEntry {
	entry, err := s.store.GetLogByID(context.Background(), testNIK)
	s.Require().NoError(err)
	return entry
}

// =============================================================================
// Happy path
// =============================================================================

func (s *EngineSuite) TestSubmitsAndPersistsSuccess() {
	s.expectNormalize()
	s.portal.succeedOnSubmit()
	ctx := context.Background()

	out, err := s.engine().Process(ctx, s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccess, out.Kind)
	s.True(out.Submitted())
	s.Equal(testNIK, s.portal.field(submission.SelNIK))
	s.Equal("Wiraswasta", s.portal.field(submission.SelOccupation))
	s.Equal("08/01/2025", s.portal.field(submission.SelExamDate))
	s.Equal("168", s.portal.field(submission.SelHeight))
	s.Equal("Tidak", s.portal.fields["#riwayat_tb"])
	s.Empty(s.portal.field(submission.SelName), "identity fields are only typed on manual entry")
	s.Equal(1, s.portal.clicked(submission.SelSubmit))

	entry := s.logged()
	s.Equal(domain.LogStatusSuccess, entry.Status)
	s.True(entry.Registered)
	s.Equal(1, entry.Attempt)
	s.Require().NotNil(entry.Payload)
	s.Equal("JANE DOE", entry.Payload.Name)

	s.False(s.locks.For(testNIK, "JANE DOE").IsLocked(), "lock released after success")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Outcomes.WithLabelValues("success")))
}

func (s *EngineSuite) TestLogsInWithCredentialsWhenProfileIsNotAuthenticated() {
	s.cfg.Username = "petugas"
	s.cfg.Password = "rahasia"
	s.portal.visible[sel.Get(submission.SelLoggedIn)] = false
	s.portal.visible[sel.Get(submission.SelLoginUsername)] = true
	s.portal.onClick[sel.Get(submission.SelLoginSubmit)] = func(p *fakePortal) {
		p.visible[sel.Get(submission.SelLoggedIn)] = true
		p.visible[sel.Get(submission.SelLoginUsername)] = false
	}
	s.portal.succeedOnSubmit()
	s.expectNormalize()
	session := s.session()

	out, err := s.engine().Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccess, out.Kind)
	s.True(session.LoggedIn())
	s.Equal("petugas", s.portal.field(submission.SelLoginUsername))
	s.Equal("https://portal.example/login", s.portal.navigations[0])
	s.Equal("https://portal.example/skrining/create", s.portal.navigations[1])
}

// =============================================================================
// Idempotence
// =============================================================================

func (s *EngineSuite) TestAlreadySubmittedIsDuplicateWithoutUI() {
	s.Require().NoError(s.store.AddLog(context.Background(), domain.LogEntry{ID: testNIK, Status: domain.LogStatusSuccess}))
	session := submission.NewSession(s.browser, s.cfg)

	out, err := s.engine().Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindDuplicate, out.Kind)
	s.Empty(s.portal.navigations)
	_, ok := out.Kind.LogStatus()
	s.False(ok, "duplicates are not logged")
}

func (s *EngineSuite) TestSameNIKTwiceInOneRunOpensOnePage() {
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).Return(entity(), nil).Times(1)
	s.portal.succeedOnSubmit()
	s.browser.EXPECT().NewPage(gomock.Any()).Return(s.page, nil).Times(1)
	s.browser.EXPECT().Pages().Return([]submission.Page{s.page}).AnyTimes()
	session := submission.NewSession(s.browser, s.cfg)
	eng := s.engine()

	first, err := eng.Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	second, err := eng.Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccess, first.Kind)
	s.Equal(submission.KindDuplicate, second.Kind)
	s.Equal(1, s.portal.clicked(submission.SelSubmit))
}

func (s *EngineSuite) TestSeenNIKIsDuplicateEvenWhenFirstAttemptWasAmbiguous() {
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).Return(entity(), nil).Times(1)
	session := s.session()
	eng := s.engine()

	first, err := eng.Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindSuccessTimeout, first.Kind)

	second, err := eng.Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindDuplicate, second.Kind)
	s.Equal(1, s.portal.clicked(submission.SelSubmit))
}

// =============================================================================
// Validation
// =============================================================================

func (s *EngineSuite) TestSundayExamDateIsRejectedBeforeLockAndUI() {
	clock := func() time.Time { return time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC) }
	n := normalize.New(normalize.WithClock(clock), normalize.WithLogger(s.logger))
	eng := submission.NewEngine(n, s.store, s.locks, s.cfg, submission.WithLogger(s.logger), submission.WithClock(s.tick))
	session := submission.NewSession(s.browser, s.cfg)
	row := domain.NewRawRecord([]string{"nik", "nama", "tanggal"}, []string{testNIK, "Jane Doe", "05/01/2025"})

	out, err := eng.Process(context.Background(), session, row)
	s.Require().NoError(err)

	s.Equal(submission.KindInvalid, out.Kind)
	s.Equal(normalize.ReasonExamDateSunday, out.Reason)
	s.Empty(s.portal.navigations)
	_, statErr := os.Stat(s.lockDir)
	s.True(os.IsNotExist(statErr), "no lock was ever taken")
	s.Equal(domain.LogStatusInvalid, s.logged().Status)
}

func (s *EngineSuite) TestShortNIKIsInvalidNIKLength() {
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.Validation(normalize.ReasonNIKLength, "nik must have 16 digits, got 5"))

	out, err := s.engine().Process(context.Background(), submission.NewSession(s.browser, s.cfg), raw("35781", "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindInvalidNIKLength, out.Kind)
	entry, err := s.store.GetLogByID(context.Background(), "35781")
	s.Require().NoError(err)
	s.Equal(domain.LogStatusInvalid, entry.Status)
	s.Equal("invalid_nik_length", entry.Reason)
}

func (s *EngineSuite) TestUnexpectedNormalizeErrorIsReturned() {
	boom := errors.New("reviewer crashed")
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := s.engine().Process(context.Background(), submission.NewSession(s.browser, s.cfg), raw(testNIK, "Jane Doe"))
	s.ErrorIs(err, boom)
	_, err = s.store.GetLogByID(context.Background(), testNIK)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// Locking
// =============================================================================

func (s *EngineSuite) TestHeldLockYieldsLockedOutcome() {
	s.expectNormalize()
	other := lock.NewManager(s.lockDir).For(testNIK, "JANE DOE")
	ok, err := other.Lock()
	s.Require().NoError(err)
	s.Require().True(ok)

	out, err := s.engine().Process(context.Background(), submission.NewSession(s.browser, s.cfg), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindLocked, out.Kind)
	s.Equal(domain.LogStatusLocked, s.logged().Status)
	s.Empty(s.portal.navigations)
	s.True(other.IsLocked(), "the other owner's lock is untouched")
}

func (s *EngineSuite) TestConcurrentInvocationsSubmitOnce() {
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.RawRecord) (*domain.NormalizedEntity, error) { return entity(), nil }).Times(2)

	release := make(chan struct{})
	submitting := make(chan struct{})
	s.portal.onClick[sel.Get(submission.SelSubmit)] = func(p *fakePortal) {
		close(submitting)
		<-release
		p.visible[sel.Get(submission.SelSuccess)] = true
	}
	firstSession := s.session()

	otherPage := mocks.NewMockPage(s.ctrl)
	otherPortal := newFakePortal()
	otherPortal.succeedOnSubmit()
	otherPortal.bind(otherPage)
	otherBrowser := mocks.NewMockBrowser(s.ctrl)
	otherBrowser.EXPECT().NewPage(gomock.Any()).Return(otherPage, nil).AnyTimes()
	otherBrowser.EXPECT().Pages().Return([]submission.Page{otherPage}).AnyTimes()
	secondSession := submission.NewSession(otherBrowser, s.cfg)

	eng := s.engine()
	results := make(chan submission.Outcome, 2)
	go func() {
		out, err := eng.Process(context.Background(), firstSession, raw(testNIK, "Jane Doe"))
		s.NoError(err)
		results <- out
	}()

	<-submitting
	secondEngine := submission.NewEngine(s.normalizer, s.store, lock.NewManager(s.lockDir), s.cfg,
		submission.WithLogger(s.logger), submission.WithClock(s.tick))
	second, err := secondEngine.Process(context.Background(), secondSession, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	close(release)
	first := <-results

	s.Equal(submission.KindSuccess, first.Kind)
	s.Equal(submission.KindLocked, second.Kind)
	s.Equal(0, otherPortal.clicked(submission.SelSubmit))
	s.Equal(domain.LogStatusSuccess, s.logged().Status)
}

// =============================================================================
// Modal resolution
// =============================================================================

func (s *EngineSuite) TestIdentityConfirmationIsAcceptedOnce() {
	s.expectNormalize()
	s.portal.onName = "JANE DOE"
	s.portal.modalOn(submission.SelNIKCheck, "Apakah data identitas sudah benar?")
	s.portal.succeedOnSubmit()

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccess, out.Kind)
	s.Equal(1, s.portal.clicked(submission.SelModalOK))
	s.Equal("JANE DOE", s.logged().Payload.Observed["name_on_screen"])
}

func (s *EngineSuite) TestReappearingIdentityConfirmationEscalates() {
	s.expectNormalize()
	s.portal.modalOn(submission.SelNIKCheck, "Apakah data sudah sesuai?", "Apakah data sudah sesuai?")
	s.operator.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(false, nil)

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindOperatorRejected, out.Kind)
	s.Equal(0, s.portal.clicked(submission.SelSubmit))
	s.Equal(domain.LogStatusError, s.logged().Status)
}

func (s *EngineSuite) TestOperatorApprovalContinuesAfterReappearance() {
	s.expectNormalize()
	s.portal.modalOn(submission.SelNIKCheck, "Konfirmasi data identitas", "Konfirmasi data identitas")
	s.portal.succeedOnSubmit()
	s.operator.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(true, nil)

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindSuccess, out.Kind)
}

func (s *EngineSuite) TestNotFoundWithoutManualEntryIsDataNotFound() {
	s.expectNormalize()
	s.portal.modalOn(submission.SelNIKCheck, "Data NIK tidak ditemukan")
	shots := filepath.Join(s.T().TempDir(), "shots")

	out, err := s.engine(submission.WithScreenshotDir(shots)).Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindDataNotFound, out.Kind)
	entry := s.logged()
	s.Equal(domain.LogStatusError, entry.Status)
	s.False(entry.Registered)
	s.Require().Len(s.portal.screenshots, 1)
	s.Contains(s.portal.screenshots[0], testNIK+"_data_not_found_")
}

func (s *EngineSuite) TestNotFoundWithManualEntryFillsIdentityFields() {
	s.expectNormalize()
	s.portal.modalOn(submission.SelNIKCheck, "Data tidak ditemukan, silakan isi manual")
	s.portal.succeedOnSubmit()

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccess, out.Kind)
	s.Equal("JANE DOE", s.portal.field(submission.SelName))
	s.Equal(domain.SexMale, s.portal.field(submission.SelSex))
	s.Equal("20/09/1982", s.portal.field(submission.SelBirthDate))
	s.Equal("KOTA SURABAYA", s.portal.field(submission.SelRegency))
}

func (s *EngineSuite) TestEntityTerminalModals() {
	cases := []struct {
		text string
		want submission.Kind
	}{
		{"NIK tidak valid", submission.KindNIKError},
		{"Data tidak sesuai dengan KTP", submission.KindDataTidakSesuaiKTP},
		{"Pembatasan umur: peserta tidak memenuhi syarat", submission.KindPembatasanUmur},
		{"Kuota pemeriksaan hari ini sudah habis", submission.KindKuotaHabis},
		{"Tanggal pemeriksaan tidak boleh melewati hari ini", submission.KindTanggalPemeriksaan},
		{"Data kehadiran tidak ditemukan", submission.KindDataKehadiranNotFound},
	}
	for _, tc := range cases {
		s.Run(string(tc.want), func() {
			s.SetupTest()
			s.expectNormalize()
			s.portal.modalOn(submission.SelNIKCheck, tc.text)

			out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
			s.Require().NoError(err)

			s.Equal(tc.want, out.Kind)
			s.False(out.Fatal())
			entry := s.logged()
			s.Equal(domain.LogStatusError, entry.Status)
			s.Equal(string(tc.want), entry.Reason)
			s.False(entry.Registered)
			s.False(s.locks.For(testNIK, "JANE DOE").IsLocked())
		})
	}
}

func (s *EngineSuite) TestQuotaAfterSubmitIsTerminal() {
	s.expectNormalize()
	s.portal.modalOn(submission.SelSubmit, "Mohon maaf, kuota penuh")

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindKuotaHabis, out.Kind)
}

func (s *EngineSuite) TestUnrecognizedModalHaltsWithLoggedError() {
	s.expectNormalize()
	s.portal.modalOn(submission.SelNIKCheck, "Server sedang pemeliharaan")

	_, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.ErrorIs(err, submission.ErrUnrecognizedModal)

	entry := s.logged()
	s.Equal(domain.LogStatusError, entry.Status)
	s.Equal("unexpected_error", entry.Reason)
	s.False(s.locks.For(testNIK, "JANE DOE").IsLocked())
}

// =============================================================================
// Validation alerts
// =============================================================================

func (s *EngineSuite) TestPersistentAlertReappliesDefaultsThenAsksOperator() {
	s.expectNormalize()
	s.portal.visible[sel.Get(submission.SelInvalidHint)] = true
	s.portal.succeedOnSubmit()
	writes := 0
	s.operator.EXPECT().Confirm(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) (bool, error) {
		writes = len(s.portal.fields)
		return true, nil
	})

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccess, out.Kind)
	s.NotZero(writes)
}

// =============================================================================
// Session and timing failures
// =============================================================================

func (s *EngineSuite) TestSessionExpiryIsTerminalAndForcesRelogin() {
	s.expectNormalize()
	s.portal.onClick[sel.Get(submission.SelSubmit)] = func(p *fakePortal) {
		p.visible[sel.Get(submission.SelSessionExpiry)] = true
	}
	session := s.session()

	out, err := s.engine().Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSessionExpired, out.Kind)
	s.False(out.Retryable())
	s.False(session.LoggedIn())
	s.Equal(domain.LogStatusError, s.logged().Status)
}

func (s *EngineSuite) TestMissingSuccessNotificationTimesOut() {
	s.expectNormalize()

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindSuccessTimeout, out.Kind)
	s.Equal(1, s.portal.clicked(submission.SelSubmit), "never resubmitted")
	s.Equal("success_notification_timeout", s.logged().Reason)
}

func (s *EngineSuite) TestRejectedLoginIsFatal() {
	s.expectNormalize()
	s.portal.visible[sel.Get(submission.SelLoggedIn)] = false

	out, err := s.engine().Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)

	s.Equal(submission.KindUnauthorized, out.Kind)
	s.True(out.Fatal())
	_, err = s.store.GetLogByID(context.Background(), testNIK)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *EngineSuite) TestNavigationFailureIsRetryable() {
	s.normalizer.EXPECT().Normalize(gomock.Any(), gomock.Any()).Return(entity(), nil).Times(2)
	s.portal.navErr = errors.New("net::ERR_CONNECTION_RESET")
	session := s.session()
	eng := s.engine()

	out, err := eng.Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindNavigationFailed, out.Kind)
	s.True(out.Retryable())
	s.Equal(1, s.logged().Attempt)

	s.portal.navErr = nil
	s.portal.succeedOnSubmit()
	out, err = eng.Process(context.Background(), session, raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindSuccess, out.Kind)
	s.Equal(2, s.logged().Attempt)
}

func (s *EngineSuite) TestReconfigureSwapsSelectors() {
	s.expectNormalize()
	s.portal.succeedOnSubmit()
	eng := s.engine()

	cfg := s.cfg
	cfg.Selectors = map[string]string{submission.SelOccupation: "#job"}
	eng.Reconfigure(cfg)

	out, err := eng.Process(context.Background(), s.session(), raw(testNIK, "Jane Doe"))
	s.Require().NoError(err)
	s.Equal(submission.KindSuccess, out.Kind)
	s.Equal("Wiraswasta", s.portal.fields["#job"])
}
