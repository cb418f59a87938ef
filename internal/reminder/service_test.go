package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/cf-streak-bot/internal/codeforces"
	"github.com/ykvlv/cf-streak-bot/internal/domain"
	"github.com/ykvlv/cf-streak-bot/internal/store"
)

// 2025-05-06 08:00 in Asia/Tashkent, 2025-05-05 23:00 in America/New_York.
var fixedNow = time.Date(2025, time.May, 6, 3, 0, 0, 0, time.UTC)

type fakeChecker struct {
	mu      sync.Mutex
	results map[string]codeforces.Result
	calls   map[string]int
	panics  bool
	onCheck func(handle string)
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{results: map[string]codeforces.Result{}, calls: map[string]int{}}
}

func (f *fakeChecker) Check(_ context.Context, handle, _ string) codeforces.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[handle]++
	if f.onCheck != nil {
		f.onCheck(handle)
	}
	if f.panics {
		panic("feed exploded")
	}
	return f.results[handle]
}

func (f *fakeChecker) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fixture struct {
	repo    store.Repo
	dedup   *Dedup
	checker *fakeChecker
	sender  *fakeSender
	svc     *Service
}

func newFixture(t *testing.T, markZone MarkZone) *fixture {
	t.Helper()
	repo, err := store.OpenJSON(filepath.Join(t.TempDir(), "user_data.json"), "Asia/Tashkent")
	require.NoError(t, err)
	return newFixtureWithRepo(t, repo, markZone)
}

func newFixtureWithRepo(t *testing.T, repo store.Repo, markZone MarkZone) *fixture {
	t.Helper()
	tz := domain.NewResolver("Asia/Tashkent")
	dedup := NewDedup(repo, tz, tz.Default(), markZone)
	dedup.now = func() time.Time { return fixedNow }

	slots, err := domain.ParseSlots([]string{"08:00", "12:00", "22:00"})
	require.NoError(t, err)

	f := &fixture{repo: repo, dedup: dedup, checker: newFakeChecker(), sender: &fakeSender{}}
	f.svc = NewService(repo, dedup, f.checker, f.sender, slots, zap.NewNop())
	return f
}

func (f *fixture) addUser(t *testing.T, id, handle, tz string) {
	t.Helper()
	_, err := f.repo.Upsert(context.Background(), id, func(u *domain.UserRecord) {
		u.Handle = handle
		u.Timezone = tz
	})
	require.NoError(t, err)
}

func (f *fixture) lastNotified(t *testing.T, id, slot string) (string, bool) {
	t.Helper()
	u, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	day, ok := u.LastNotified[slot]
	return day, ok
}

func TestSweep_UsersWithoutHandleAreIgnored(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "", "Asia/Tashkent")
	f.addUser(t, "2", "", "Europe/Amsterdam")

	rep, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)

	assert.Equal(t, 2, rep.NoHandle)
	assert.Zero(t, f.checker.total())
	assert.Empty(t, f.sender.messages())
	_, marked := f.lastNotified(t, "1", "08:00")
	assert.False(t, marked)
}

func TestSweep_SolvedBeforeSlotIsMarkedWithoutMessage(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1001", "tourist", "Asia/Tashkent")
	f.checker.results["tourist"] = codeforces.Solved

	rep, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Solved)
	assert.Empty(t, f.sender.messages())
	day, ok := f.lastNotified(t, "1001", "08:00")
	require.True(t, ok)
	assert.Equal(t, "2025-05-06", day)
}

func TestSweep_UnsolvedGetsReminder(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1001", "tourist", "Asia/Tashkent")

	rep, err := f.svc.Sweep(context.Background(), "12:00")
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Sent)
	msgs := f.sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1001), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "(12:00)")
	assert.Contains(t, msgs[0].Text, "tourist")
	day, _ := f.lastNotified(t, "1001", "12:00")
	assert.Equal(t, "2025-05-06", day)
}

func TestSweep_DeliveryFailureLeavesSlotOwed(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "2002", "petr", "Asia/Tashkent")
	f.sender.err = errors.New("telegram: forbidden")

	rep, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Undelivered)
	_, marked := f.lastNotified(t, "2002", "08:00")
	assert.False(t, marked)

	f.sender.err = nil
	rep, err = f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	assert.Len(t, f.sender.messages(), 1)
	_, marked = f.lastNotified(t, "2002", "08:00")
	assert.True(t, marked)
}

func TestSweep_SecondSweepSameDayIsSilent(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "alice_cf", "Asia/Tashkent")
	f.addUser(t, "2", "bob_cf", "Europe/Amsterdam")

	_, err := f.svc.Sweep(context.Background(), "22:00")
	require.NoError(t, err)
	rep, err := f.svc.Sweep(context.Background(), "22:00")
	require.NoError(t, err)

	assert.Equal(t, 2, rep.AlreadyNotified)
	assert.Len(t, f.sender.messages(), 2)
	assert.Equal(t, 2, f.checker.total())
}

func TestSweep_ConcurrentSweepsSendOnce(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "alice_cf", "Asia/Tashkent")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Sweep(context.Background(), "08:00")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.sender.messages(), 1)
}

func TestSweep_UnclearFeedAnswersStillRemind(t *testing.T) {
	for _, res := range []codeforces.Result{codeforces.Unavailable, codeforces.Failed, codeforces.Malformed, codeforces.NotSolved} {
		t.Run(res.String(), func(t *testing.T) {
			f := newFixture(t, MarkUserZone)
			f.addUser(t, "1", "tourist", "Asia/Tashkent")
			f.checker.results["tourist"] = res

			rep, err := f.svc.Sweep(context.Background(), "08:00")
			require.NoError(t, err)
			assert.Equal(t, 1, rep.Sent)
		})
	}
}

func TestSweep_FeedPanicCountsAsNotSolved(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "tourist", "Asia/Tashkent")
	f.checker.panics = true

	rep, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
}

func TestSweep_NonNumericUserIDIsUndelivered(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "not-a-chat", "tourist", "Asia/Tashkent")

	rep, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Undelivered)
	_, marked := f.lastNotified(t, "not-a-chat", "08:00")
	assert.False(t, marked)
}

func TestSweep_SlotsAreIndependent(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "tourist", "Asia/Tashkent")

	_, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)
	_, err = f.svc.Sweep(context.Background(), "12:00")
	require.NoError(t, err)

	assert.Len(t, f.sender.messages(), 2)
}

type failingUpsertRepo struct {
	store.Repo
}

func (failingUpsertRepo) Upsert(context.Context, string, store.Mutator) (*domain.UserRecord, error) {
	return nil, errors.New("disk full")
}

func TestSweep_StorageErrorAborts(t *testing.T) {
	base, err := store.OpenJSON(filepath.Join(t.TempDir(), "user_data.json"), "Asia/Tashkent")
	require.NoError(t, err)
	_, err = base.Upsert(context.Background(), "1", func(u *domain.UserRecord) { u.Handle = "tourist" })
	require.NoError(t, err)

	f := newFixtureWithRepo(t, failingUpsertRepo{Repo: base}, MarkUserZone)

	_, err = f.svc.Sweep(context.Background(), "08:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSweep_CanceledContext(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "tourist", "Asia/Tashkent")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Sweep(ctx, "08:00")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.sender.messages())
}

func TestSweep_SolvedSettlesLaterSlots(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1001", "tourist", "Asia/Tashkent")
	f.checker.results["tourist"] = codeforces.Solved

	_, err := f.svc.Sweep(context.Background(), "12:00")
	require.NoError(t, err)

	_, marked := f.lastNotified(t, "1001", "08:00")
	assert.False(t, marked, "earlier slot untouched")
	for _, slot := range []string{"12:00", "22:00"} {
		day, ok := f.lastNotified(t, "1001", slot)
		require.True(t, ok, slot)
		assert.Equal(t, "2025-05-06", day, slot)
	}
}

func TestSweep_FeedOutageAfterSolveSendsNothing(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1001", "tourist", "Asia/Tashkent")

	f.checker.results["tourist"] = codeforces.Solved
	_, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)

	f.checker.results["tourist"] = codeforces.Unavailable
	rep, err := f.svc.Sweep(context.Background(), "12:00")
	require.NoError(t, err)

	assert.Equal(t, 1, rep.AlreadyNotified)
	assert.Empty(t, f.sender.messages())
	assert.Equal(t, 1, f.checker.total())
}

func TestSweep_ShutdownDuringCheckSendsNothing(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1001", "tourist", "Asia/Tashkent")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.checker.results["tourist"] = codeforces.Unavailable
	f.checker.onCheck = func(string) { cancel() }

	_, err := f.svc.Sweep(ctx, "08:00")
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, f.sender.messages())
	_, marked := f.lastNotified(t, "1001", "08:00")
	assert.False(t, marked)
}

func TestSweep_SeesRecordChangedMidSweep(t *testing.T) {
	f := newFixture(t, MarkUserZone)
	f.addUser(t, "1", "alice_cf", "Asia/Tashkent")
	f.addUser(t, "2", "bob_cf", "Asia/Tashkent")
	f.checker.onCheck = func(handle string) {
		if handle == "alice_cf" {
			_, err := f.repo.Upsert(context.Background(), "2", func(u *domain.UserRecord) { u.Handle = "bob_new" })
			assert.NoError(t, err)
		}
	}

	_, err := f.svc.Sweep(context.Background(), "08:00")
	require.NoError(t, err)

	assert.Zero(t, f.checker.calls["bob_cf"])
	assert.Equal(t, 1, f.checker.calls["bob_new"])
	msgs := f.sender.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, "bob_new")
}
