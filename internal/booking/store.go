package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists bookings and answers lookups over them.
type Store interface {
	Save(ctx context.Context, c Candidate, opts ...SaveOption) (*Record, error)
	FindLatestByContact(ctx context.Context, contact string) (*Record, error)
	GetByID(ctx context.Context, id int64) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	ListByStatus(ctx context.Context, status Status) ([]*Record, error)
	Search(ctx context.Context, term string) ([]*Record, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Record, error)
	UpdateFields(ctx context.Context, id int64, patch Patch) (*Record, error)
	Reschedule(ctx context.Context, id int64, date, timeOfDay string) (*Record, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (Stats, error)
}

// SaveOption adjusts how a new booking is keyed.
type SaveOption func(*saveOptions)

type saveOptions struct {
	sender string
}

// FromSender keys the booking by the address the message came from, so a
// later status question from that address finds it. The mobile number typed
// into the message is kept in Record.Mobile.
func FromSender(address string) SaveOption {
	return func(o *saveOptions) {
		o.sender = address
	}
}

// prepareNew validates a candidate and returns a pending record with
// normalized values. Without a sender the typed mobile doubles as the
// lookup contact.
func prepareNew(c Candidate, opts ...SaveOption) (*Record, error) {
	if missing := c.Missing(); len(missing) > 0 {
		return nil, &IncompleteBookingError{Missing: missing}
	}
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	mobile := NormalizeContact(c[FieldContact])
	contact := mobile
	if strings.TrimSpace(o.sender) != "" {
		contact = NormalizeContact(o.sender)
	}
	return &Record{
		Name:          strings.TrimSpace(c[FieldName]),
		Contact:       contact,
		Mobile:        mobile,
		Subject:       strings.TrimSpace(c[FieldSubject]),
		RequestedDate: NormalizeDate(strings.TrimSpace(c[FieldDate])),
		RequestedTime: NormalizeTime(strings.TrimSpace(c[FieldTime])),
		Status:        StatusPending,
	}, nil
}

func rescheduleFields(date, timeOfDay string) (Patch, error) {
	p, err := NewPatch(map[string]string{"date": date, "time": timeOfDay})
	if err != nil {
		return Patch{}, err
	}
	if p.IsEmpty() {
		return Patch{}, ErrNoOpUpdate
	}
	status := StatusRescheduled
	p.Status = &status
	return p, nil
}

// checkPatch rejects empty patches, blank values and unknown statuses.
func checkPatch(p Patch) (Patch, error) {
	if p.IsEmpty() {
		return Patch{}, ErrNoOpUpdate
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"name", p.Name}, {"contact", p.Contact}, {"mobile", p.Mobile},
		{"subject", p.Subject}, {"date", p.Date}, {"time", p.Time},
	} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return Patch{}, fmt.Errorf("%w: %s", ErrBlankField, f.name)
		}
	}
	if p.Status != nil {
		status, err := canonicalStatus(*p.Status)
		if err != nil {
			return Patch{}, err
		}
		p.Status = &status
	}
	return p.normalized(), nil
}

func canonicalStatus(s Status) (Status, error) {
	return ParseStatus(string(s))
}

// MemoryStore keeps bookings in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*Record
	nextID  int64
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[int64]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Save(ctx context.Context, c Candidate, opts ...SaveOption) (*Record, error) {
	rec, err := prepareNew(c, opts...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = s.now()
	s.records[rec.ID] = rec
	out := *rec
	return &out, nil
}

func (s *MemoryStore) FindLatestByContact(ctx context.Context, contact string) (*Record, error) {
	want := NormalizeContact(contact)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Record
	for _, rec := range s.records {
		if rec.Contact != want {
			continue
		}
		if latest == nil || newer(rec, latest) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Record, error) {
	return s.filter(func(*Record) bool { return true }), nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status Status) ([]*Record, error) {
	status, err := canonicalStatus(status)
	if err != nil {
		return nil, err
	}
	return s.filter(func(r *Record) bool { return r.Status == status }), nil
}

func (s *MemoryStore) Search(ctx context.Context, term string) ([]*Record, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	return s.filter(func(r *Record) bool {
		for _, v := range []string{r.Name, r.Contact, r.Mobile, r.Subject, string(r.Status)} {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id int64, status Status) (*Record, error) {
	status, err := canonicalStatus(status)
	if err != nil {
		return nil, err
	}
	return s.UpdateFields(ctx, id, Patch{Status: &status})
}

func (s *MemoryStore) UpdateFields(ctx context.Context, id int64, patch Patch) (*Record, error) {
	patch, err := checkPatch(patch)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.apply(rec)
	out := *rec
	return &out, nil
}

func (s *MemoryStore) Reschedule(ctx context.Context, id int64, date, timeOfDay string) (*Record, error) {
	patch, err := rescheduleFields(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	return s.UpdateFields(ctx, id, patch)
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := newStats()
	for _, rec := range s.records {
		stats.Total++
		stats.ByStatus[rec.Status]++
	}
	return stats, nil
}

// filter returns copies of matching records, most recent first.
func (s *MemoryStore) filter(keep func(*Record) bool) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}

// newer orders by creation time, breaking ties on the larger id.
func newer(a, b *Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
