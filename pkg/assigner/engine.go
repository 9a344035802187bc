package assigner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/models"
)

// Sink receives committed assignment batches
type Sink interface {
	SaveAssignments(ctx context.Context, batch []models.Assignment) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, batch []models.Assignment) error

// SaveAssignments calls f(ctx, batch)
func (f SinkFunc) SaveAssignments(ctx context.Context, batch []models.Assignment) error {
	return f(ctx, batch)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for engine events
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// AutoAssignResult describes one auto-assign pass
type AutoAssignResult struct {
	Assigned  []models.Assignment
	Unmatched []models.UnmatchedParticipant
}

// Snapshot is a consistent copy of the engine state
type Snapshot struct {
	Unassigned []models.Participant
	Families   []models.HostFamily
	Pending    []models.Assignment
	Committed  []models.Assignment
	Summary    models.Summary
}

// Engine holds the state of one assignment editing session: the unassigned
// participants, the host family roster and the batch of pending assignments.
// All methods are safe for concurrent use; each call is applied atomically.
type Engine struct {
	mu sync.Mutex

	participants map[string]models.Participant
	seedOrder    map[string]int
	unassigned   []models.Participant

	families    []models.HostFamily
	familyIndex map[string]int

	pending   []models.Assignment
	committed []models.Assignment

	sink   Sink
	logger *zap.Logger
}

// New creates an engine seeded with the given participants and families.
// Every participant starts unassigned. The seed slices are copied.
func New(participants []models.Participant, families []models.HostFamily, sink Sink, opts ...Option) (*Engine, error) {
	if err := models.ValidateRoster(participants, families); err != nil {
		return nil, fmt.Errorf("%w: %w", appErrors.ErrValidation, err)
	}

	e := &Engine{
		participants: make(map[string]models.Participant, len(participants)),
		seedOrder:    make(map[string]int, len(participants)),
		unassigned:   make([]models.Participant, len(participants)),
		families:     make([]models.HostFamily, len(families)),
		familyIndex:  make(map[string]int, len(families)),
		sink:         sink,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	copy(e.unassigned, participants)
	for i, p := range participants {
		e.participants[p.ID] = p
		e.seedOrder[p.ID] = i
	}
	for i, f := range families {
		e.families[i] = f.Clone()
		e.familyIndex[f.ID] = i
	}

	return e, nil
}

// Propose assigns one unassigned participant to a host family. It fails with
// ErrNotFound when either id is unknown (or the participant is no longer
// unassigned) and with ErrCapacityExceeded when the family is full. A failed
// call leaves the state untouched.
func (e *Engine) Propose(participantID, familyID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.unassignedPos(participantID)
	if pos < 0 {
		return fmt.Errorf("participant %q is not unassigned: %w", participantID, appErrors.ErrNotFound)
	}
	fi, ok := e.familyIndex[familyID]
	if !ok {
		return fmt.Errorf("host family %q: %w", familyID, appErrors.ErrNotFound)
	}
	family := &e.families[fi]
	if family.Available() <= 0 {
		return fmt.Errorf("host family %q (%d/%d): %w", familyID, family.CurrentAssignments, family.Capacity, appErrors.ErrCapacityExceeded)
	}

	e.assign(pos, fi)
	e.logger.Debug("assignment proposed",
		zap.String("participant_id", participantID),
		zap.String("host_family_id", familyID),
	)
	return nil
}

// AutoAssign runs a single greedy pass over the remaining unassigned
// participants. Families are visited by available capacity, largest first,
// keeping roster order between equals. Each family takes, in roster order,
// the first participants that satisfy all of its preferences up to its free
// places. Nothing is revisited; participants left over stay unassigned.
func (e *Engine) AutoAssign() AutoAssignResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	order := make([]int, len(e.families))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return e.families[order[a]].Available() > e.families[order[b]].Available()
	})

	var result AutoAssignResult
	for _, fi := range order {
		family := &e.families[fi]
		available := family.Available()
		if available <= 0 {
			continue
		}

		var matched []string
		for i := range e.unassigned {
			if len(matched) == available {
				break
			}
			if accepts(family, &e.unassigned[i]) {
				matched = append(matched, e.unassigned[i].ID)
			}
		}

		for _, id := range matched {
			e.assign(e.unassignedPos(id), fi)
			result.Assigned = append(result.Assigned, models.Assignment{ParticipantID: id, HostFamilyID: family.ID})
		}
	}

	for i := range e.unassigned {
		result.Unmatched = append(result.Unmatched, models.UnmatchedParticipant{
			ParticipantID: e.unassigned[i].ID,
			Reasons:       explain(e.families, &e.unassigned[i]),
		})
	}

	e.logger.Debug("auto-assign pass finished",
		zap.Int("assigned", len(result.Assigned)),
		zap.Int("unmatched", len(result.Unmatched)),
	)
	return result
}

// Commit hands the pending batch to the sink and clears it. If the sink
// fails the batch is kept and the error wraps ErrCommitFailed, so the call
// may be retried. An empty batch is not sent.
func (e *Engine) Commit(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		return 0, nil
	}
	if e.sink == nil {
		return 0, fmt.Errorf("%w: no assignment sink configured", appErrors.ErrCommitFailed)
	}

	batch := make([]models.Assignment, len(e.pending))
	copy(batch, e.pending)

	if err := e.sink.SaveAssignments(ctx, batch); err != nil {
		e.logger.Warn("commit rejected by sink", zap.Int("pending", len(batch)), zap.Error(err))
		return 0, fmt.Errorf("%w: %w", appErrors.ErrCommitFailed, err)
	}

	e.committed = append(e.committed, batch...)
	e.pending = nil
	e.logger.Info("assignments committed", zap.Int("count", len(batch)))
	return len(batch), nil
}

// Discard reverts every pending assignment: participants return to the
// unassigned set in their original order and family counters drop back.
// It returns the number of assignments reverted.
func (e *Engine) Discard() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.pending)
	for i := n - 1; i >= 0; i-- {
		e.release(e.pending[i])
	}
	e.pending = nil
	e.sortUnassigned()

	if n > 0 {
		e.logger.Debug("pending assignments discarded", zap.Int("count", n))
	}
	return n
}

// Withdraw reverts the pending assignment of a single participant.
// Committed assignments cannot be withdrawn.
func (e *Engine) Withdraw(participantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, a := range e.pending {
		if a.ParticipantID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no pending assignment for participant %q: %w", participantID, appErrors.ErrNotFound)
	}

	e.release(e.pending[idx])
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	e.sortUnassigned()
	return nil
}

// Unassigned returns the participants not yet assigned, in roster order
func (e *Engine) Unassigned() []models.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyUnassigned("")
}

// FilterUnassigned returns unassigned participants whose name contains query
func (e *Engine) FilterUnassigned(query string) []models.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyUnassigned(query)
}

// Families returns the host family roster with current counters
func (e *Engine) Families() []models.HostFamily {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyFamilies("")
}

// FilterFamilies returns host families whose name contains query
func (e *Engine) FilterFamilies(query string) []models.HostFamily {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyFamilies(query)
}

// Pending returns the assignments proposed since the last commit
func (e *Engine) Pending() []models.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Assignment(nil), e.pending...)
}

// Committed returns every assignment handed to the sink during this session
func (e *Engine) Committed() []models.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Assignment(nil), e.committed...)
}

// Participant looks up any participant seeded into the engine
func (e *Engine) Participant(id string) (models.Participant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.participants[id]
	return p, ok
}

// Summary returns aggregate counters for the session
func (e *Engine) Summary() models.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary()
}

// Snapshot returns the whole state, filtered by name, under a single lock
func (e *Engine) Snapshot(query string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Unassigned: e.copyUnassigned(query),
		Families:   e.copyFamilies(query),
		Pending:    append([]models.Assignment(nil), e.pending...),
		Committed:  append([]models.Assignment(nil), e.committed...),
		Summary:    e.summary(),
	}
}

func (e *Engine) assign(pos, fi int) {
	p := e.unassigned[pos]
	e.families[fi].CurrentAssignments++
	e.unassigned = append(e.unassigned[:pos], e.unassigned[pos+1:]...)
	e.pending = append(e.pending, models.Assignment{ParticipantID: p.ID, HostFamilyID: e.families[fi].ID})
}

// release undoes assign for a; the caller restores ordering
func (e *Engine) release(a models.Assignment) {
	e.families[e.familyIndex[a.HostFamilyID]].CurrentAssignments--
	e.unassigned = append(e.unassigned, e.participants[a.ParticipantID])
}

func (e *Engine) sortUnassigned() {
	sort.SliceStable(e.unassigned, func(i, j int) bool {
		return e.seedOrder[e.unassigned[i].ID] < e.seedOrder[e.unassigned[j].ID]
	})
}

func (e *Engine) unassignedPos(id string) int {
	for i := range e.unassigned {
		if e.unassigned[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) copyUnassigned(query string) []models.Participant {
	out := make([]models.Participant, 0, len(e.unassigned))
	for _, p := range e.unassigned {
		if models.MatchesName(p.Name, query) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) copyFamilies(query string) []models.HostFamily {
	out := make([]models.HostFamily, 0, len(e.families))
	for _, f := range e.families {
		if models.MatchesName(f.Name, query) {
			out = append(out, f.Clone())
		}
	}
	return out
}

func (e *Engine) summary() models.Summary {
	s := models.Summary{
		TotalParticipants:  len(e.participants),
		Unassigned:         len(e.unassigned),
		Pending:            len(e.pending),
		Committed:          len(e.committed),
		UnassignedPayments: make(map[models.PaymentStatus]int),
	}
	for _, f := range e.families {
		s.TotalCapacity += f.Capacity
		s.Occupied += f.CurrentAssignments
		if f.Available() <= 0 {
			s.FullFamilies++
		}
	}
	s.Available = s.TotalCapacity - s.Occupied
	if s.TotalCapacity > 0 {
		s.OccupancyRate = float64(s.Occupied) / float64(s.TotalCapacity) * 100.0
	}
	for _, p := range e.unassigned {
		s.UnassignedPayments[p.PaymentStatus]++
	}
	return s
}
