package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/session-integrity/internal/application"
	"github.com/example/session-integrity/internal/persistence/memory"
	"github.com/example/session-integrity/internal/storage"
	"github.com/example/session-integrity/internal/timewindow"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers, clocks and a UTC calendar.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Calendar    timewindow.Calendar
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Calendar:    timewindow.NewCalendar(time.UTC),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
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

// WithCalendar overrides the calendar that defines local days.
func WithCalendar(calendar timewindow.Calendar) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Calendar = calendar
	}
}

// SessionServiceDeps captures dependencies for constructing a session service.
type SessionServiceDeps struct {
	Repos                application.Repositories
	LongSessionThreshold time.Duration
	IDGenerator          func() string
	Now                  func() time.Time
	Logger               *slog.Logger
}

// NewSessionService builds a session service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	return application.NewSessionServiceWithLogger(
		deps.Repos,
		f.Calendar,
		deps.LongSessionThreshold,
		f.idGenerator(deps.IDGenerator),
		f.now(deps.Now),
		deps.Logger,
	)
}

// CourseServiceDeps captures dependencies for constructing a course service.
type CourseServiceDeps struct {
	Repos       application.Repositories
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewCourseService builds a course service.
func (f *ServiceFactory) NewCourseService(deps CourseServiceDeps) *application.CourseService {
	return application.NewCourseServiceWithLogger(
		deps.Repos,
		f.Calendar,
		f.idGenerator(deps.IDGenerator),
		f.now(deps.Now),
		deps.Logger,
	)
}

// IntegrityServiceDeps captures dependencies for constructing an integrity service.
type IntegrityServiceDeps struct {
	Repos       application.Repositories
	Deleter     application.SessionDeleter
	ScanTimeout time.Duration
	Logger      *slog.Logger
}

// NewIntegrityService builds an integrity service.
func (f *ServiceFactory) NewIntegrityService(deps IntegrityServiceDeps) *application.IntegrityService {
	return application.NewIntegrityServiceWithLogger(
		deps.Repos,
		deps.Deleter,
		f.Calendar,
		deps.ScanTimeout,
		deps.Logger,
	)
}

// Services is a fully wired set of services sharing one store.
type Services struct {
	Repos     application.Repositories
	Sessions  *application.SessionService
	Courses   *application.CourseService
	Integrity *application.IntegrityService
}

// NewServices wires all three services over repos, as the binaries do.
func (f *ServiceFactory) NewServices(repos application.Repositories, logger *slog.Logger) Services {
	sessions := f.NewSessionService(SessionServiceDeps{Repos: repos, Logger: logger})
	integrity := f.NewIntegrityService(IntegrityServiceDeps{Repos: repos, Deleter: sessions, Logger: logger})
	return Services{
		Repos:     repos,
		Sessions:  sessions,
		Courses:   f.NewCourseService(CourseServiceDeps{Repos: repos, Logger: logger}),
		Integrity: integrity,
	}
}

// NewMemoryServices wires services over a fresh in-memory store.
func (f *ServiceFactory) NewMemoryServices(logger *slog.Logger) Services {
	return f.NewServices(storage.NewRepositories(memory.New(), f.Calendar), logger)
}

func (f *ServiceFactory) idGenerator(override func() string) func() string {
	if override != nil {
		return override
	}
	return f.IDGenerator.NextFunc()
}

func (f *ServiceFactory) now(override func() time.Time) func() time.Time {
	if override != nil {
		return override
	}
	return f.Clock.NowFunc()
}
