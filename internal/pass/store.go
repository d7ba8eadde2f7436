package pass

import (
	"context"

	"github.com/premierpass/premier-pass/internal/model"
)

// Store is the record store the engine runs against.  Implementations live
// in the repository package.  Lookups that miss return repository.ErrNotFound,
// except FindLatestAttendanceEvent which returns a nil event.
type Store interface {
	GetPass(ctx context.Context, id uint64) (model.Pass, error)
	FindPasses(ctx context.Context, f model.PassFilter) ([]model.Pass, error)
	CountPasses(ctx context.Context, f model.PassFilter) (int, error)
	InsertPass(ctx context.Context, p model.Pass) (model.Pass, error)
	UpdatePass(ctx context.Context, id uint64, u model.PassUpdate) error

	GetStudent(ctx context.Context, id uint64) (model.User, error)
	FindStudents(ctx context.Context, f model.StudentFilter) ([]model.User, error)

	FindLatestAttendanceEvent(ctx context.Context, studentID uint64) (*model.AttendanceEvent, error)
	InsertAttendanceEvent(ctx context.Context, e model.AttendanceEvent) (model.AttendanceEvent, error)
}

// Notifier receives state changes after they are persisted.  Delivery is
// best effort: implementations log their own failures and never block the
// engine for long.
type Notifier interface {
	PassChanged(ctx context.Context, p model.Pass)
	AttendanceRecorded(ctx context.Context, e model.AttendanceEvent)
}

type nopNotifier struct{}

func (nopNotifier) PassChanged(context.Context, model.Pass) {}
func (nopNotifier) AttendanceRecorded(context.Context, model.AttendanceEvent) {}
