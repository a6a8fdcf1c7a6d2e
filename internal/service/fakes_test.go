package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
	"yard-anpr-service/internal/events"
	"yard-anpr-service/internal/repository"
)

type fakeStore struct {
	mu          sync.Mutex
	allocations map[uuid.UUID]yard.TruckAllocation
	orders      map[uuid.UUID]yard.Order
	visits      []yard.Visit
	entries     []yard.SiteJourneyEntry
	tickets     []yard.ParkingTicket
	nextEntryID int64

	listErr        error
	applyErr       error
	openErr        error
	ticketErr      error
	ticketDupes    int
	beforeApply    func(s *fakeStore)
	ticketCtxCalls int
}

func newFakeStore(allocs ...yard.TruckAllocation) *fakeStore {
	s := &fakeStore{
		allocations: make(map[uuid.UUID]yard.TruckAllocation),
		orders:      make(map[uuid.UUID]yard.Order),
	}
	for _, a := range allocs {
		s.allocations[a.ID] = a
	}
	return s
}

func (s *fakeStore) appendEntry(e *yard.SiteJourneyEntry) {
	s.nextEntryID++
	e.ID = s.nextEntryID
	s.entries = append(s.entries, *e)
}

// recorded mirrors the unique (tenant, detection) index on journey entries.
func (s *fakeStore) recorded(e yard.SiteJourneyEntry) bool {
	if e.DetectionID == nil {
		return false
	}
	for _, existing := range s.entries {
		if existing.DetectionID != nil && *existing.DetectionID == *e.DetectionID && existing.TenantID == e.TenantID {
			return true
		}
	}
	return false
}

func (s *fakeStore) ListAllocationCandidates(_ context.Context, tenantID uuid.UUID, _ anpr.Direction) ([]yard.TruckAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []yard.TruckAllocation
	for _, a := range s.allocations {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyAllocationTransition(_ context.Context, id uuid.UUID, decide func(yard.TruckAllocation) (yard.Transition, error)) (yard.TruckAllocation, yard.Transition, error) {
	if s.beforeApply != nil {
		s.beforeApply(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return yard.TruckAllocation{}, yard.Transition{}, s.applyErr
	}
	current, ok := s.allocations[id]
	if !ok {
		return yard.TruckAllocation{}, yard.Transition{}, repository.ErrNotFound
	}
	t, err := decide(current)
	if err != nil {
		return yard.TruckAllocation{}, yard.Transition{}, err
	}
	if s.recorded(t.Entry) {
		return yard.TruckAllocation{}, yard.Transition{}, repository.ErrDuplicate
	}
	s.appendEntry(&t.Entry)
	if t.Status != nil {
		current.Status = *t.Status
	}
	if t.DepartureTime != nil {
		current.DepartureTime = t.DepartureTime
	}
	s.allocations[id] = current
	return current, t, nil
}

func (s *fakeStore) OpenVisit(_ context.Context, v *yard.Visit, e *yard.SiteJourneyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	if s.recorded(*e) {
		return repository.ErrDuplicate
	}
	v.ID = uuid.New()
	e.VisitID = &v.ID
	s.visits = append(s.visits, *v)
	s.appendEntry(e)
	return nil
}

func (s *fakeStore) ListOpenVisits(_ context.Context, tenantID uuid.UUID) ([]yard.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []yard.Visit
	for _, v := range s.visits {
		if v.TenantID == tenantID && v.Status == yard.VisitArrived {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeStore) CloseVisit(_ context.Context, id uuid.UUID, departedAt time.Time, e *yard.SiteJourneyEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.visits {
		if v.ID != id {
			continue
		}
		if v.Status != yard.VisitArrived {
			return false, nil
		}
		if s.recorded(*e) {
			return false, repository.ErrDuplicate
		}
		s.visits[i].Status = yard.VisitCompleted
		s.visits[i].DepartureTime = &departedAt
		e.VisitID = &id
		s.appendEntry(e)
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) TicketExists(_ context.Context, owner yard.TicketOwner) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if owner.AllocationID != nil && t.AllocationID != nil && *t.AllocationID == *owner.AllocationID {
			return true, nil
		}
		if owner.VisitID != nil && t.VisitID != nil && *t.VisitID == *owner.VisitID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) LatestTicketNumber(_ context.Context, _ uuid.UUID, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := ""
	for _, t := range s.tickets {
		if strings.HasPrefix(t.TicketNumber, prefix) && t.TicketNumber > latest {
			latest = t.TicketNumber
		}
	}
	return latest, nil
}

func (s *fakeStore) CreateTicket(_ context.Context, t *yard.ParkingTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticketErr != nil {
		return s.ticketErr
	}
	if s.ticketDupes > 0 {
		// Simulates another writer taking the number first.
		s.ticketDupes--
		s.tickets = append(s.tickets, yard.ParkingTicket{ID: uuid.New(), TicketNumber: t.TicketNumber})
		return repository.ErrDuplicate
	}
	for _, existing := range s.tickets {
		if existing.TicketNumber == t.TicketNumber {
			return repository.ErrDuplicate
		}
	}
	t.ID = uuid.New()
	s.tickets = append(s.tickets, *t)
	return nil
}

func (s *fakeStore) LoadTicketContext(_ context.Context, id uuid.UUID) (*yard.TicketContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticketCtxCalls++
	a, ok := s.allocations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	tc := &yard.TicketContext{Allocation: a}
	if o, ok := s.orders[a.OrderID]; ok {
		tc.Order = &o
	}
	return tc, nil
}

func (s *fakeStore) FindTicketByNumber(_ context.Context, _ uuid.UUID, number string) (*yard.ParkingTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.TicketNumber == number {
			out := t
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) ownTickets() []yard.ParkingTicket {
	var out []yard.ParkingTicket
	for _, t := range s.tickets {
		if t.AllocationID != nil || t.VisitID != nil {
			out = append(out, t)
		}
	}
	return out
}

type fakeInvalidator struct {
	patterns []string
	err      error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, patterns ...string) error {
	f.patterns = append(f.patterns, patterns...)
	return f.err
}

func (f *fakeInvalidator) has(p string) bool {
	for _, got := range f.patterns {
		if got == p {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	events []events.JourneyEvent
}

func (f *fakePublisher) Publish(ev events.JourneyEvent) {
	f.events = append(f.events, ev)
}

var errBoom = errors.New("boom")
