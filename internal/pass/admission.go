package pass

import (
	"context"
	"fmt"

	"github.com/premierpass/premier-pass/internal/model"
)

// RequestPass admits a new pass for studentID.  The pass starts active when
// fewer than the type's capacity are in flight (active or queued), and
// queued otherwise.  The count and the insert happen under the type lock,
// so concurrent requests cannot push a type past its capacity.
//
// It returns a *ValidationError for a missing student, a missing or
// unknown type, or a student id that does not belong to a student, and
// ErrPassInFlight when the student already holds an in-flight pass.
func (e *Engine) RequestPass(ctx context.Context, studentID uint64, passType string) (model.Pass, error) {
	passType = NormalizeType(passType)
	if studentID == 0 {
		return model.Pass{}, &ValidationError{Field: "student_id", Reason: "is required"}
	}
	if passType == "" {
		return model.Pass{}, &ValidationError{Field: "type", Reason: "is required"}
	}
	policy, ok := e.policies.Lookup(passType)
	if !ok {
		return model.Pass{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown pass type %q", passType)}
	}

	student, err := e.getStudent(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return model.Pass{}, &ValidationError{Field: "student_id", Reason: "unknown student"}
		}
		return model.Pass{}, err
	}
	if student.Role != model.RoleStudent {
		return model.Pass{}, &ValidationError{Field: "student_id", Reason: "is not a student"}
	}

	unlockStudent := e.locks.Lock(studentKey(studentID))
	defer unlockStudent()
	unlockType := e.locks.Lock(typeKey(passType))
	defer unlockType()

	held, err := e.countPasses(ctx, model.PassFilter{StudentID: studentID, Statuses: model.InFlightStatuses})
	if err != nil {
		return model.Pass{}, err
	}
	if held > 0 {
		return model.Pass{}, ErrPassInFlight
	}

	inFlight, err := e.countPasses(ctx, model.PassFilter{Type: passType, Statuses: model.InFlightStatuses})
	if err != nil {
		return model.Pass{}, err
	}

	now := e.clock.Now()
	p := model.Pass{StudentID: studentID, Type: passType, Status: model.PassQueued, CreatedAt: now}
	if inFlight < policy.Capacity {
		start := now
		p.Status = model.PassActive
		p.StartTime = &start
	}
	created, err := e.insertPass(ctx, p)
	if err != nil {
		return model.Pass{}, err
	}
	e.notifier.PassChanged(ctx, created)
	return created, nil
}

// CompletePass marks an active pass completed when the student returns.
// The freed slot is handed to the next queued pass on the following sweep.
// It returns ErrNotActive if the pass is queued or already terminal.
func (e *Engine) CompletePass(ctx context.Context, id uint64) (model.Pass, error) {
	p, err := e.getPass(ctx, id)
	if err != nil {
		return model.Pass{}, err
	}
	if p.Status != model.PassActive {
		return model.Pass{}, ErrNotActive
	}

	unlock := e.locks.Lock(typeKey(p.Type))
	defer unlock()

	ended := e.clock.Now()
	err = e.updatePass(ctx, id, model.PassUpdate{From: model.PassActive, To: model.PassCompleted, EndedAt: &ended})
	if err != nil {
		if isNotFound(err) {
			return model.Pass{}, ErrNotActive
		}
		return model.Pass{}, err
	}
	p.Status = model.PassCompleted
	p.EndedAt = &ended
	e.notifier.PassChanged(ctx, p)
	return p, nil
}

// Pass returns a single pass by id.
func (e *Engine) Pass(ctx context.Context, id uint64) (model.Pass, error) {
	return e.getPass(ctx, id)
}

// ListPasses returns passes matching f, oldest first.
func (e *Engine) ListPasses(ctx context.Context, f model.PassFilter) ([]model.Pass, error) {
	return e.findPasses(ctx, f)
}
