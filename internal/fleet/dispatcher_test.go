package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fleet_remote/internal/backend"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	added   []models.BotCreationRequest
	stopped []string
	out     models.CommandOutcome
	err     error
}

func (f *fakeCommander) AddBot(_ context.Context, req models.BotCreationRequest) (models.CommandOutcome, error) {
	f.added = append(f.added, req)
	return f.out, f.err
}

func (f *fakeCommander) StopBot(_ context.Context, botID string) (models.CommandOutcome, error) {
	f.stopped = append(f.stopped, botID)
	return f.out, f.err
}

func (f *fakeCommander) calls() int { return len(f.added) + len(f.stopped) }

type fakeRefresher struct {
	snap      *models.FleetSnapshot
	refreshes int
}

func (f *fakeRefresher) RefreshNow(context.Context) (models.FleetSnapshot, error) {
	f.refreshes++
	if f.snap == nil {
		return models.FleetSnapshot{}, errors.New("no snapshot")
	}
	return *f.snap, nil
}

func (f *fakeRefresher) Current() (models.FleetSnapshot, bool) {
	if f.snap == nil {
		return models.FleetSnapshot{}, false
	}
	return *f.snap, true
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memJournal) Record(_ context.Context, e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type promptLog struct {
	answer bool
	asked  []Confirmation
}

func (p *promptLog) Confirm(_ context.Context, c Confirmation) bool {
	p.asked = append(p.asked, c)
	return p.answer
}

func snapshotWith(bots ...models.Bot) *models.FleetSnapshot {
	s := models.NewFleetSnapshot(models.SystemInfo{TotalBots: len(bots)}, bots, 10, testTime)
	return &s
}

func newTestDispatcher(cmd *fakeCommander, ref *fakeRefresher, confirm Confirmer) (*Dispatcher, *memJournal) {
	j := &memJournal{}
	return NewDispatcher(cmd, ref, confirm, j), j
}

func TestCreateBotsScenarioA(t *testing.T) {
	cmd := &fakeCommander{out: models.CommandOutcome{Accepted: true, Message: "bot added"}}
	ref := &fakeRefresher{snap: snapshotWith()}
	confirm := &promptLog{answer: true}
	d, j := newTestDispatcher(cmd, ref, confirm)

	out, err := d.CreateBots(context.Background(), validStatic())
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, "bot added", out.Message)

	require.Len(t, cmd.added, 1)
	assert.Equal(t, validStatic(), cmd.added[0])
	assert.Equal(t, 1, ref.refreshes)

	require.Len(t, confirm.asked, 1)
	assert.Equal(t, ActionCreate, confirm.asked[0].Action)
	assert.Contains(t, confirm.asked[0].Prompt, "BTCUSDC")
	assert.False(t, confirm.asked[0].Strong())

	require.Len(t, j.entries, 1)
	assert.Equal(t, "add_bot", j.entries[0].Command)
	assert.Equal(t, "BTCUSDC", j.entries[0].Target)
	assert.True(t, j.entries[0].Accepted)
}

func TestCreateBotsDynamicSingleCall(t *testing.T) {
	cmd := &fakeCommander{out: models.CommandOutcome{Accepted: true}}
	ref := &fakeRefresher{snap: snapshotWith()}
	d, _ := newTestDispatcher(cmd, ref, ConfirmFunc(func(context.Context, Confirmation) bool { return true }))

	req := models.BotCreationRequest{
		Mode: models.DynamicMode{Count: 3}, Leverage: 20, PercentOfBalance: 10, TakeProfitPct: 200, StopLossPct: 100,
	}
	_, err := d.CreateBots(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, cmd.added, 1)
}

func TestCreateBotsScenarioCNoNetwork(t *testing.T) {
	cmd := &fakeCommander{}
	confirm := &promptLog{answer: true}
	d, j := newTestDispatcher(cmd, &fakeRefresher{}, confirm)

	req := validStatic()
	req.Leverage = 150
	_, err := d.CreateBots(context.Background(), req)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "leverage")

	assert.Zero(t, cmd.calls())
	assert.Empty(t, confirm.asked)
	assert.Empty(t, j.entries)
}

func TestCreateBotsDeclined(t *testing.T) {
	cmd := &fakeCommander{}
	ref := &fakeRefresher{}
	d, _ := newTestDispatcher(cmd, ref, &promptLog{answer: false})

	_, err := d.CreateBots(context.Background(), validStatic())
	require.ErrorIs(t, err, ErrDeclined)
	assert.Zero(t, cmd.calls())
	assert.Zero(t, ref.refreshes)
}

func TestRejectionDoesNotRefresh(t *testing.T) {
	cmd := &fakeCommander{out: models.CommandOutcome{Accepted: false, Message: "insufficient balance"}}
	ref := &fakeRefresher{snap: snapshotWith()}
	d, j := newTestDispatcher(cmd, ref, &promptLog{answer: true})

	out, err := d.CreateBots(context.Background(), validStatic())
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, "insufficient balance", out.Message)
	assert.Zero(t, ref.refreshes)

	require.Len(t, j.entries, 1)
	assert.False(t, j.entries[0].Accepted)
	assert.Equal(t, "insufficient balance", j.entries[0].Message)
}

func TestTransportFailureSurfaces(t *testing.T) {
	cmd := &fakeCommander{err: backend.ErrTransport}
	ref := &fakeRefresher{snap: snapshotWith()}
	d, j := newTestDispatcher(cmd, ref, &promptLog{answer: true})

	_, err := d.StopOne(context.Background(), "b1")
	require.Error(t, err)
	assert.True(t, backend.IsTransport(err))
	assert.Zero(t, ref.refreshes)

	require.Len(t, j.entries, 1)
	assert.NotEmpty(t, j.entries[0].Error)
}

func TestStopOneScenarioD(t *testing.T) {
	sym := "SOLUSDC"
	cmd := &fakeCommander{out: models.CommandOutcome{Accepted: true, Message: "stopped"}}
	ref := &fakeRefresher{snap: snapshotWith(models.Bot{BotID: "bot-7", Symbol: &sym})}
	confirm := &promptLog{answer: true}
	d, _ := newTestDispatcher(cmd, ref, confirm)

	out, err := d.StopOne(context.Background(), "bot-7")
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, []string{"bot-7"}, cmd.stopped)
	assert.Equal(t, 1, ref.refreshes)

	require.Len(t, confirm.asked, 1)
	assert.Contains(t, confirm.asked[0].Prompt, "bot-7")
	assert.Contains(t, confirm.asked[0].Prompt, "SOLUSDC")
}

func TestStopOneBlankID(t *testing.T) {
	cmd := &fakeCommander{}
	d, _ := newTestDispatcher(cmd, &fakeRefresher{}, &promptLog{answer: true})

	_, err := d.StopOne(context.Background(), "  ")
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, cmd.calls())
}

func TestStopOneRefusesStopAllID(t *testing.T) {
	for _, id := range []string{backend.StopAllID, " ALL "} {
		cmd := &fakeCommander{out: models.CommandOutcome{Accepted: true}}
		confirm := &promptLog{answer: true}
		d, j := newTestDispatcher(cmd, &fakeRefresher{snap: snapshotWith()}, confirm)

		_, err := d.StopOne(context.Background(), id)
		requireRule(t, err, RuleBotID)
		assert.Empty(t, confirm.asked)
		assert.Zero(t, cmd.calls())
		assert.Empty(t, j.entries)
	}
}

func TestStopAllEmptyIsNoop(t *testing.T) {
	for name, ref := range map[string]*fakeRefresher{
		"no snapshot":    {},
		"empty snapshot": {snap: snapshotWith()},
	} {
		t.Run(name, func(t *testing.T) {
			cmd := &fakeCommander{}
			confirm := &promptLog{answer: true}
			d, j := newTestDispatcher(cmd, ref, confirm)

			out, err := d.StopAll(context.Background())
			require.NoError(t, err)
			assert.False(t, out.Accepted)
			assert.Equal(t, NothingToStop, out.Message)
			assert.Zero(t, cmd.calls())
			assert.Empty(t, confirm.asked)
			assert.Zero(t, ref.refreshes)
			assert.Empty(t, j.entries)
		})
	}
}

func TestStopAllStrongConfirmation(t *testing.T) {
	cmd := &fakeCommander{out: models.CommandOutcome{Accepted: true, Message: "all stopped"}}
	ref := &fakeRefresher{snap: snapshotWith(models.Bot{BotID: "a"}, models.Bot{BotID: "b"})}
	confirm := &promptLog{answer: true}
	d, j := newTestDispatcher(cmd, ref, confirm)

	out, err := d.StopAll(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, []string{backend.StopAllID}, cmd.stopped)
	assert.Equal(t, 1, ref.refreshes)

	require.Len(t, confirm.asked, 1)
	c := confirm.asked[0]
	assert.True(t, c.Strong())
	assert.Equal(t, "stop ALL 2 bots", c.Phrase)
	assert.Contains(t, c.Prompt, "stop ALL 2 bots")

	require.Len(t, j.entries, 1)
	assert.Equal(t, "stop_all", j.entries[0].Command)
	assert.Equal(t, "all", j.entries[0].Target)
}

func TestDescribeCreation(t *testing.T) {
	req := models.BotCreationRequest{
		Mode: models.DynamicMode{Count: 3}, Leverage: 20, PercentOfBalance: 10,
		TakeProfitPct: 200, StopLossPct: 100, ROITriggerPct: ptr(30),
	}
	assert.Equal(t,
		"Create 3 dynamic bots: leverage 20x, 10% of balance, TP 200%, SL 100%, ROI trigger 30%",
		DescribeCreation(req))
}
