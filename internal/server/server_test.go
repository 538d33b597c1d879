package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/store"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type fakeSaves struct {
	records map[string]store.Record
	battles map[string][]store.BattleRecord
	deleted []string
}

func (f *fakeSaves) List(context.Context) ([]store.Summary, error) {
	out := make([]store.Summary, 0, len(f.records))
	for slot, r := range f.records {
		out = append(out, store.Summary{Slot: slot, Label: r.Label, Honor: r.Snapshot.Ledger.Honor})
	}
	return out, nil
}

func (f *fakeSaves) Load(_ context.Context, slot string) (store.Record, error) {
	r, ok := f.records[slot]
	if !ok {
		return store.Record{}, fmt.Errorf("%w: %s", store.ErrNotFound, slot)
	}
	return r, nil
}

func (f *fakeSaves) Delete(_ context.Context, slot string) error {
	if _, ok := f.records[slot]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, slot)
	}
	delete(f.records, slot)
	f.deleted = append(f.deleted, slot)
	return nil
}

func (f *fakeSaves) Battles(_ context.Context, slot string) ([]store.BattleRecord, error) {
	if _, ok := f.records[slot]; !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, slot)
	}
	return f.battles[slot], nil
}

func newTestArena() *Arena {
	console := combat.NewConsole()
	core := combat.New(
		combat.WithRNG(combat.NewRNG(combat.RNGLegacy, 21)),
		combat.WithConsole(console),
	)
	return NewArena(core, console,
		combat.Space{ProbeCount: 50_000_000, DrifterCount: 2_000_000, ProbeSpeed: 1},
		combat.Upgrades{NamedBattles: true},
		zerolog.Nop())
}

func newTestServer(saves Saves) (*Server, *Arena) {
	a := newTestArena()
	return New(a, saves, zerolog.Nop()), a
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestArena_AdvanceReachesBattle(t *testing.T) {
	a := newTestArena()
	var f Frame
	for i := 0; i < 200 && !f.Active; i++ {
		f = a.Advance(10)
	}
	require.True(t, f.Active, "no battle within 2000 ticks")
	assert.NotEmpty(t, f.Battle)
	assert.NotEmpty(t, f.Units)
	assert.Greater(t, f.Left+f.Right, 0)
	assert.LessOrEqual(t, f.Left, f.LeftCap)
	assert.LessOrEqual(t, f.Right, f.RightCap)
}

func TestArena_SubscribeAndUnsubscribe(t *testing.T) {
	a := newTestArena()
	frames, cancel := a.Subscribe()
	assert.Equal(t, 1, a.Subscribers())

	a.Advance(3)
	select {
	case f := <-frames:
		assert.Equal(t, 3, f.Step)
	default:
		t.Fatal("subscriber got no frame")
	}

	cancel()
	cancel()
	assert.Equal(t, 0, a.Subscribers())
	_, ok := <-frames
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestArena_SlowSubscriberDoesNotBlock(t *testing.T) {
	a := newTestArena()
	_, cancel := a.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < frameBuffer*3; i++ {
			a.Advance(1)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Advance blocked on a full subscriber")
	}
}

func TestArena_RunStopsOnCancel(t *testing.T) {
	a := newTestArena()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := a.Run(ctx, 5*time.Millisecond, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, a.Frame().Step, 0)
}

func TestHealthAndLive(t *testing.T) {
	s, a := newTestServer(nil)
	a.Advance(5)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storeOnline":false`)

	rec = do(t, h, http.MethodGet, "/api/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var f Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, 5, f.Step)
	assert.Greater(t, f.Probes, 0.0)
}

func TestLiveReport(t *testing.T) {
	s, a := newTestServer(nil)
	for i := 0; i < 100; i++ {
		a.Advance(100)
	}
	rec := do(t, s.Router(), http.MethodGet, "/api/live/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, len(a.Results()), got.Report.Battles)
	assert.True(t, strings.Contains(got.Text, "battles"), "report text: %q", got.Text)
}

func TestReinforce(t *testing.T) {
	s, a := newTestServer(nil)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/api/live/reinforce", []byte(`{"probes":10,"drifters":5}`))
	require.Equal(t, http.StatusOK, rec.Code)
	f := a.Frame()
	assert.Equal(t, 50_000_010.0, f.Probes)
	assert.Equal(t, 2_000_005.0, f.Drifters)

	rec = do(t, h, http.MethodPost, "/api/live/reinforce", []byte(`{"probes":-1}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/live/reinforce", []byte(`nope`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/live/reinforce", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSaves_Offline(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.Router(), http.MethodGet, "/api/saves", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSaves_Routes(t *testing.T) {
	fs := &fakeSaves{
		records: map[string]store.Record{
			"slot-a": {Slot: "slot-a", Label: "tick 10, honor 50"},
		},
		battles: map[string][]store.BattleRecord{
			"slot-a": {{Name: "Ulm 1", Outcome: "probe_victory", HonorDelta: 50}},
		},
	}
	s, _ := newTestServer(fs)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/api/saves", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "slot-a", list[0].Slot)

	rec = do(t, h, http.MethodGet, "/api/saves/slot-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tick 10, honor 50")

	rec = do(t, h, http.MethodGet, "/api/saves/slot-a/battles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []store.BattleRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Ulm 1", rows[0].Name)

	rec = do(t, h, http.MethodGet, "/api/saves/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/saves/slot-a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"slot-a"}, fs.deleted)

	rec = do(t, h, http.MethodDelete, "/api/saves/slot-a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocket_StreamsFrames(t *testing.T) {
	s, a := newTestServer(nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first Frame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 0, first.Step)

	// The handler subscribes before writing the first frame.
	require.Eventually(t, func() bool { return a.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	a.Advance(7)

	var next Frame
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 7, next.Step)

	conn.Close()
	require.Eventually(t, func() bool { return a.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_MsgpackFrames(t *testing.T) {
	s, a := newTestServer(nil)
	a.Advance(4)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?format=msgpack"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ws.BinaryMessage, kind)

	var f Frame
	require.NoError(t, msgpack.Unmarshal(data, &f))
	assert.Equal(t, 4, f.Step)
	assert.Equal(t, a.Frame().Probes, f.Probes)
}

func TestWebSocket_RejectsUnknownFormat(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.Router(), http.MethodGet, "/ws?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
