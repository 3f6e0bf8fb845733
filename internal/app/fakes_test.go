package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"question_rotation_bot/internal/domain/question"
	"question_rotation_bot/internal/domain/region"
	"question_rotation_bot/internal/domain/user"
	idb "question_rotation_bot/internal/infra/database"

	"gopkg.in/telebot.v3"
)

// memRegionRepo hands out copies so services cannot mutate stored state behind its back.
type memRegionRepo struct {
	mu      sync.Mutex
	nextID  int64
	regions map[int64]region.Region

	updateActiveCycleErr error
	listErr              error

	// afterGet runs once, right after the next GetByID returns its copy.
	afterGet func(id int64)
	// beforeWrite runs inside Update and UpdateActiveCycle before the row changes.
	beforeWrite func(id int64)
}

func (m *memRegionRepo) takeAfterGet() func(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hook := m.afterGet
	m.afterGet = nil
	return hook
}

func (m *memRegionRepo) runBeforeWrite(id int64) {
	m.mu.Lock()
	hook := m.beforeWrite
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}
}

func newMemRegionRepo() *memRegionRepo {
	return &memRegionRepo{regions: make(map[int64]region.Region)}
}

func (m *memRegionRepo) Create(_ context.Context, r *region.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.regions {
		if existing.Name == r.Name {
			return idb.ErrDuplicateRegionName
		}
	}
	m.nextID++
	r.ID = m.nextID
	m.regions[r.ID] = *r
	return nil
}

func (m *memRegionRepo) GetByID(_ context.Context, id int64) (*region.Region, error) {
	m.mu.Lock()
	r, ok := m.regions[id]
	m.mu.Unlock()
	if !ok {
		return nil, idb.ErrRegionNotFound
	}
	if hook := m.takeAfterGet(); hook != nil {
		hook(id)
	}
	return &r, nil
}

func (m *memRegionRepo) ListAll(_ context.Context) ([]*region.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*region.Region, 0, len(m.regions))
	for _, r := range m.regions {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRegionRepo) Update(_ context.Context, r *region.Region) error {
	m.runBeforeWrite(r.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regions[r.ID]; !ok {
		return idb.ErrRegionNotFound
	}
	m.regions[r.ID] = *r
	return nil
}

func (m *memRegionRepo) UpdateActiveCycle(_ context.Context, id int64, activeCycle int) error {
	m.runBeforeWrite(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateActiveCycleErr != nil {
		return m.updateActiveCycleErr
	}
	r, ok := m.regions[id]
	if !ok {
		return idb.ErrRegionNotFound
	}
	r.ActiveCycle = activeCycle
	m.regions[id] = r
	return nil
}

func (m *memRegionRepo) Rename(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return idb.ErrRegionNotFound
	}
	for otherID, existing := range m.regions {
		if otherID != id && existing.Name == name {
			return idb.ErrDuplicateRegionName
		}
	}
	r.Name = name
	m.regions[id] = r
	return nil
}

func (m *memRegionRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regions[id]; !ok {
		return idb.ErrRegionNotFound
	}
	delete(m.regions, id)
	return nil
}

func (m *memRegionRepo) stored(id int64) region.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regions[id]
}

type memQuestionRepo struct {
	mu        sync.Mutex
	nextID    int64
	questions map[int64]question.Question
}

func newMemQuestionRepo() *memQuestionRepo {
	return &memQuestionRepo{questions: make(map[int64]question.Question)}
}

func (m *memQuestionRepo) Create(_ context.Context, q *question.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.questions {
		if existing.RegionID == q.RegionID && existing.Sequence == q.Sequence {
			return idb.ErrDuplicateSequence
		}
	}
	m.nextID++
	q.ID = m.nextID
	m.questions[q.ID] = *q
	return nil
}

func (m *memQuestionRepo) GetByID(_ context.Context, id int64) (*question.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, idb.ErrQuestionNotFound
	}
	return &q, nil
}

func (m *memQuestionRepo) ListByRegion(_ context.Context, regionID int64) ([]*question.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*question.Question
	for _, q := range m.questions {
		if q.RegionID == regionID {
			q := q
			out = append(out, &q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *memQuestionRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return idb.ErrQuestionNotFound
	}
	delete(m.questions, id)
	return nil
}

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]user.User // by Telegram ID
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]user.User)}
}

func (m *memUserRepo) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.TelegramID]; ok {
		return idb.ErrDuplicateTelegramID
	}
	m.nextID++
	u.ID = m.nextID
	m.users[u.TelegramID] = *u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, idb.ErrUserNotFound
}

func (m *memUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[telegramID]
	if !ok {
		return nil, idb.ErrUserNotFound
	}
	return &u, nil
}

func (m *memUserRepo) DeleteByTelegramID(_ context.Context, telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[telegramID]; !ok {
		return idb.ErrUserNotFound
	}
	delete(m.users, telegramID)
	return nil
}

// fakeArmer records the armed instant per region instead of running timers.
type fakeArmer struct {
	mu    sync.Mutex
	armed map[int64]time.Time
	arms  int
}

func newFakeArmer() *fakeArmer {
	return &fakeArmer{armed: make(map[int64]time.Time)}
}

func (a *fakeArmer) Arm(regionID int64, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[regionID] = at
	a.arms++
}

func (a *fakeArmer) Cancel(regionID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, regionID)
}

func (a *fakeArmer) Scheduled(regionID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.armed[regionID]
	return ok
}

func (a *fakeArmer) at(regionID int64) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.armed[regionID]
	return t, ok
}

// fire simulates the scheduler popping a due job.
func (a *fakeArmer) fire(regionID int64) {
	a.Cancel(regionID)
}

type advancedCall struct {
	regionID      int64
	previousCycle int
	activeCycle   int
}

type recordingNotifier struct {
	mu       sync.Mutex
	calls    []advancedCall
	onNotify func(r *region.Region)
}

func (n *recordingNotifier) RegionAdvanced(_ context.Context, r *region.Region, previousCycle int) {
	n.mu.Lock()
	n.calls = append(n.calls, advancedCall{regionID: r.ID, previousCycle: previousCycle, activeCycle: r.ActiveCycle})
	hook := n.onNotify
	n.mu.Unlock()
	if hook != nil {
		hook(r)
	}
}

type sentMessage struct {
	chatID int64
	text   string
}

type recordingTelegramClient struct {
	sent []sentMessage
	err  error
}

func (c *recordingTelegramClient) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text})
	return c.err
}

// manualClock is a settable Clock.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
