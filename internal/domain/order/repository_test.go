package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type fakeStore struct {
	mu        sync.Mutex
	byNumber  map[string]Order
	numbers   []string
	insertErr error
	listErr   error
	inserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byNumber: make(map[string]Order)}
}

func (s *fakeStore) Insert(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.byNumber[o.Number]; ok {
		return ErrNumberTaken
	}
	s.byNumber[o.Number] = *o.Clone()
	s.numbers = append(s.numbers, o.Number)
	return nil
}

func (s *fakeStore) GetByNumber(_ context.Context, number string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byNumber[number]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *fakeStore) List(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Order, len(s.numbers))
	for i, n := range s.numbers {
		o := s.byNumber[n]
		out[i] = *o.Clone()
	}
	return out, nil
}

// scriptedNumbers returns a fixed sequence of candidates and records what the
// repository reports as issued.
type scriptedNumbers struct {
	seq      []string
	attempts []int
	issued   []string
}

func (s *scriptedNumbers) Next(attempt int) string {
	s.attempts = append(s.attempts, attempt)
	n := s.seq[0]
	if len(s.seq) > 1 {
		s.seq = s.seq[1:]
	}
	return n
}

func (s *scriptedNumbers) Issued(number string) {
	s.issued = append(s.issued, number)
}

// --- Helpers ---

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("EST", -5*3600))

func newCommand(unitPrice int64, qty int) Command {
	return Command{
		Customer:    Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555-0100"},
		Fulfillment: Fulfillment{Mode: ModePickup, PickupDate: "2026-03-20", PickupTime: "10:00"},
		Items: []Item{
			{ProductID: "1", Name: "Vanilla Bean", UnitPriceCents: unitPrice, Quantity: qty,
				Variants: map[string]string{"shell": "Pink"}},
		},
	}
}

// --- Tests ---

func TestRepository_Create(t *testing.T) {
	store := newFakeStore()
	repo := NewRepository(store,
		WithNumberSource(&scriptedNumbers{seq: []string{"MAC-12345"}}),
		WithClock(func() time.Time { return fixedNow }),
	)

	o, err := repo.Create(context.Background(), newCommand(200, 12))
	require.NoError(t, err)

	assert.Equal(t, "MAC-12345", o.Number)
	assert.Equal(t, int64(2400), o.TotalCents)
	assert.Equal(t, fixedNow.UTC(), o.CreatedAt)
	assert.Equal(t, time.UTC, o.CreatedAt.Location())

	stored, err := repo.GetByOrderNumber(context.Background(), "MAC-12345")
	require.NoError(t, err)
	assert.Equal(t, o, stored)
}

func TestRepository_CreateDiscountedTotal(t *testing.T) {
	repo := NewRepository(newFakeStore())

	o, err := repo.Create(context.Background(), newCommand(200, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(9000), o.TotalCents)
	assert.Equal(t, o.Totals().TotalCents, o.TotalCents)
}

func TestRepository_CreateSnapshotIsDetached(t *testing.T) {
	repo := NewRepository(newFakeStore())
	cmd := newCommand(200, 12)

	o, err := repo.Create(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Items[0].Quantity = 99
	cmd.Items[0].Variants["shell"] = "Blue"

	stored, err := repo.GetByOrderNumber(context.Background(), o.Number)
	require.NoError(t, err)
	assert.Equal(t, 12, stored.Items[0].Quantity)
	assert.Equal(t, "Pink", stored.Items[0].Variants["shell"])
}

func TestRepository_CreateRetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	numbers := &scriptedNumbers{seq: []string{"MAC-11111", "MAC-11111", "MAC-11111", "MAC-22222"}}
	repo := NewRepository(store, WithNumberSource(numbers))
	ctx := context.Background()

	first, err := repo.Create(ctx, newCommand(200, 12))
	require.NoError(t, err)

	second, err := repo.Create(ctx, newCommand(300, 20))
	require.NoError(t, err)

	assert.Equal(t, "MAC-11111", first.Number)
	assert.Equal(t, "MAC-22222", second.Number)
	// Attempt index restarts for every order.
	assert.Equal(t, []int{0, 0, 1, 2}, numbers.attempts)
	assert.Equal(t, []string{"MAC-11111", "MAC-11111", "MAC-11111", "MAC-22222"}, numbers.issued)

	// The colliding number still points at the first order.
	got, err := repo.GetByOrderNumber(ctx, "MAC-11111")
	require.NoError(t, err)
	assert.Equal(t, int64(2400), got.TotalCents)
}

func TestRepository_CreateGivesUpAfterMaxAttempts(t *testing.T) {
	store := newFakeStore()
	store.byNumber["MAC-99999"] = Order{Number: "MAC-99999"}
	repo := NewRepository(store, WithNumberSource(&scriptedNumbers{seq: []string{"MAC-99999"}}))

	_, err := repo.Create(context.Background(), newCommand(200, 12))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "assign number", perr.Op)
	assert.Equal(t, maxNumberAttempts, store.inserts)
}

func TestRepository_CreateStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection reset")
	repo := NewRepository(store)

	_, err := repo.Create(context.Background(), newCommand(200, 12))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "insert", perr.Op)
	assert.Equal(t, 1, store.inserts)
	assert.False(t, IsUserError(err))
}

func TestRepository_GetByOrderNumberNotFound(t *testing.T) {
	repo := NewRepository(newFakeStore())

	o, err := repo.GetByOrderNumber(context.Background(), "MAC-00000")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, o)
}

func TestRepository_ListAllInsertionOrder(t *testing.T) {
	repo := NewRepository(newFakeStore())
	ctx := context.Background()

	var want []string
	for i := range 5 {
		o, err := repo.Create(ctx, newCommand(200, 12+i))
		require.NoError(t, err)
		want = append(want, o.Number)
	}

	orders, err := repo.ListAll(ctx)
	require.NoError(t, err)
	got := make([]string, len(orders))
	for i, o := range orders {
		got[i] = o.Number
	}
	assert.Equal(t, want, got)
}

func TestRepository_ConcurrentCreateUniqueNumbers(t *testing.T) {
	store := newFakeStore()
	repo := NewRepository(store)
	ctx := context.Background()

	const n = 500
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := repo.Create(ctx, newCommand(200, 12))
			assert.NoError(t, err)
			if o != nil {
				numbers[i] = o.Number
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, num := range numbers {
		require.NotEmpty(t, num)
		require.False(t, seen[num], "duplicate order number %s", num)
		seen[num] = true
	}
	orders, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, n)
}

func TestRepository_Warm(t *testing.T) {
	store := newFakeStore()
	store.byNumber["MAC-10001"] = Order{Number: "MAC-10001"}
	store.numbers = []string{"MAC-10001"}
	numbers := &scriptedNumbers{seq: []string{"MAC-10002"}}
	repo := NewRepository(store, WithNumberSource(numbers))

	n, err := repo.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"MAC-10001"}, numbers.issued)

	store.listErr = errors.New("boom")
	_, err = repo.Warm(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
}
