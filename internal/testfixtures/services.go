package testfixtures

import (
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/villaclean/bookingcore/internal/access"
	"github.com/villaclean/bookingcore/internal/application"
	"github.com/villaclean/bookingcore/internal/escalation"
	"github.com/villaclean/bookingcore/internal/notify"
	"github.com/villaclean/bookingcore/internal/persistence"
	"github.com/villaclean/bookingcore/internal/phone"
	"github.com/villaclean/bookingcore/internal/recurrence"
)

// Repositories is the full set of stores the services depend on.
// *sqlstore.Store satisfies it.
type Repositories interface {
	persistence.BookingRepository
	persistence.TrackerRepository
	persistence.DirectoryRepository
	persistence.LedgerRepository
}

// ServiceFactory builds application services that share a deterministic clock,
// id generator and recording notifier.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Notifier    *notify.Recorder
	Thresholds  escalation.Thresholds
	Location    *time.Location
	MinFuture   int
	Cipher      access.Cipher
	PhoneRegion string
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Notifier:    &notify.Recorder{},
		Thresholds:  escalation.DefaultThresholds(),
		Location:    time.UTC,
		MinFuture:   application.DefaultMinFuture,
		PhoneRegion: phone.DefaultRegion,
		Logger:      DiscardLogger(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Cipher == nil {
		factory.Cipher = TestCipher()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithMinFuture overrides how many upcoming occurrences a series keeps.
func WithMinFuture(n int) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.MinFuture = n
	}
}

// WithCipher overrides the access secret cipher.
func WithCipher(cipher access.Cipher) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Cipher = cipher
	}
}

// WithPhoneRegion overrides the region used to read sender numbers.
func WithPhoneRegion(region string) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.PhoneRegion = region
	}
}

// NewBookingService builds a booking service over repos.
func (f *ServiceFactory) NewBookingService(repos Repositories) *application.BookingService {
	return application.NewBookingServiceWithLogger(repos, repos, f.Notifier, f.IDGenerator.CodeFunc(), f.Location, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewTrackerService builds a tracker service over repos.
func (f *ServiceFactory) NewTrackerService(repos Repositories) *application.TrackerService {
	return application.NewTrackerServiceWithLogger(repos, repos, repos, f.Notifier, f.Thresholds, f.Logger)
}

// NewSeriesService builds a series service over repos.
func (f *ServiceFactory) NewSeriesService(repos Repositories) *application.SeriesService {
	return application.NewSeriesServiceWithLogger(repos, recurrence.NewEngine(f.Location), f.MinFuture, f.IDGenerator.CodeFunc(), f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewAccessService builds an access service over repos.
func (f *ServiceFactory) NewAccessService(repos Repositories) *application.AccessService {
	return application.NewAccessServiceWithLogger(repos, repos, f.Cipher, f.Location, f.Logger)
}

// NewCommandProcessor builds a command processor over repos.
func (f *ServiceFactory) NewCommandProcessor(repos Repositories) *application.CommandProcessor {
	return application.NewCommandProcessorWithLogger(repos, repos, repos, repos, f.Notifier, f.Clock.NowFunc(), f.Logger).WithPhoneRegion(f.PhoneRegion)
}

// TestCipher returns a box cipher with a fixed key.
func TestCipher() *access.BoxCipher {
	cipher, err := access.NewBoxCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("t", 32))))
	if err != nil {
		panic(err)
	}
	return cipher
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
