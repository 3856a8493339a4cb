package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledsmooth/internal/clock"
	"github.com/coreman2200/ledsmooth/internal/colorframe"
	diag "github.com/coreman2200/ledsmooth/internal/diagnostics"
	"github.com/coreman2200/ledsmooth/internal/effect"
	"github.com/coreman2200/ledsmooth/internal/layout"
	"github.com/coreman2200/ledsmooth/internal/led"
	"github.com/coreman2200/ledsmooth/internal/smoothing"
)

type fixture struct {
	srv  *Server
	http *httptest.Server
	eng  *smoothing.Engine
	sim  *led.Sim
	clk  *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := layout.Layout{Dim: layout.Dim{X: 2, Y: 2, Z: 1}}
	f := &fixture{sim: led.NewSim(l.Count(), zerolog.Nop()), clk: clock.NewManual(time.Unix(0, 0))}
	eng, err := smoothing.New(f.sim, smoothing.DefaultSettings(),
		smoothing.WithClock(f.clk), smoothing.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	f.eng = eng
	p := effect.NewPlayer(l, 30, eng, zerolog.Nop())
	f.srv = NewServer(eng, p, l, zerolog.Nop())
	f.srv.Driver = "sim"
	f.http = httptest.NewServer(f.srv.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, cmd Command) Reply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
	var r Reply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestControl_FillReachesSink(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "/control")

	r := roundTrip(t, conn, Command{Cmd: "fill", Color: "#ff0000"})
	require.True(t, r.OK, r.Error)
	require.NotNil(t, r.Stats)
	assert.EqualValues(t, 1, r.Stats.Submitted)

	f.eng.Tick()
	assert.Equal(t, colorframe.Fill(4, colorframe.RGB{R: 255}), f.sim.Last())
}

func TestControl_Commands(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "/control")

	no := false
	r := roundTrip(t, conn, Command{Cmd: "enable", Value: &no})
	assert.True(t, r.OK)
	assert.Equal(t, smoothing.Disabled, r.Stats.State)

	yes := true
	r = roundTrip(t, conn, Command{Cmd: "enable", Value: &yes})
	assert.Equal(t, smoothing.Active, r.Stats.State)

	id := uint32(99)
	r = roundTrip(t, conn, Command{Cmd: "select", ID: &id})
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "unknown config 99")

	id = uint32(smoothing.PauseConfigID)
	r = roundTrip(t, conn, Command{Cmd: "select", ID: &id})
	assert.True(t, r.OK)
	assert.Equal(t, smoothing.Paused, r.Stats.State)

	r = roundTrip(t, conn, Command{Cmd: "component", Name: "LEDDEVICE", Active: &no})
	assert.True(t, r.OK)
	assert.Equal(t, smoothing.Disabled, r.Stats.State)

	r = roundTrip(t, conn, Command{Cmd: "frame", Colors: []string{"#010203"}})
	assert.True(t, r.OK, "dropped while disabled")

	r = roundTrip(t, conn, Command{Cmd: "runEffect", Name: "strobe"})
	assert.False(t, r.OK)
	r = roundTrip(t, conn, Command{Cmd: "runEffect", Name: "rainbow"})
	assert.True(t, r.OK)
	assert.Equal(t, effect.Rainbow, f.srv.Player.Current())
	r = roundTrip(t, conn, Command{Cmd: "stopEffect"})
	assert.True(t, r.OK)
	assert.Equal(t, effect.None, f.srv.Player.Current())

	r = roundTrip(t, conn, Command{Cmd: "reload"})
	assert.False(t, r.OK, "no reload hook")

	r = roundTrip(t, conn, Command{Cmd: "warp"})
	assert.Contains(t, r.Error, "unknown command")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var bad Reply
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Contains(t, bad.Error, "invalid json")
}

func TestApply_FrameLengthError(t *testing.T) {
	f := newFixture(t)
	r := f.srv.Apply(Command{Cmd: "frame", RGB: []byte{1, 2, 3, 4, 5, 6}})
	require.True(t, r.OK, r.Error)

	r = f.srv.Apply(Command{Cmd: "frame", RGB: []byte{1, 2, 3}})
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, smoothing.ErrInvalidFrameLength.Error())

	r = f.srv.Apply(Command{Cmd: "frame", RGB: []byte{1, 2}})
	assert.False(t, r.OK)
	r = f.srv.Apply(Command{Cmd: "fill", Color: "nope"})
	assert.False(t, r.OK)
}

func TestFramesWS_Preview(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "/ws")

	var top map[string]any
	require.NoError(t, conn.ReadJSON(&top))
	assert.Equal(t, "topology", top["type"])
	assert.Equal(t, "sim", top["driver"])

	tee := led.NewTee(f.sim, zerolog.Nop(), f.srv.Preview(0))
	frame := colorframe.Fill(4, colorframe.RGB{G: 9})
	require.NoError(t, tee.Write(frame))

	var msg struct {
		Type    string `json:"type"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "frame", msg.Type)
	assert.EqualValues(t, 1, msg.FrameID)
	assert.Equal(t, frame.Bytes(), msg.RGB)
}

func TestPreviewThrottle(t *testing.T) {
	f := newFixture(t)
	p := f.srv.Preview(time.Hour)
	require.NoError(t, p.Write(colorframe.Fill(4, colorframe.RGB{})))
	require.NoError(t, p.Write(colorframe.Fill(4, colorframe.RGB{})))
	f.srv.mu.RLock()
	defer f.srv.mu.RUnlock()
	assert.EqualValues(t, 1, f.srv.frameID)
}

func TestPreviewDropsForStalledClient(t *testing.T) {
	f := newFixture(t)
	// registered without a writer, so nothing ever leaves its queue
	c := newClient(nil)
	f.srv.join(c, f.srv.clients)
	p := f.srv.Preview(0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = p.Write(colorframe.Fill(4, colorframe.RGB{B: uint8(i)}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Preview.Write blocked on a stalled client")
	}
	assert.Len(t, c.out, sendQueue)
	assert.EqualValues(t, 100-sendQueue, c.dropped.Load())
}

func TestPreviewKeepsOrderPerClient(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "/ws")
	var top map[string]any
	require.NoError(t, conn.ReadJSON(&top))

	p := f.srv.Preview(0)
	for i := 1; i <= 3; i++ {
		require.NoError(t, p.Write(colorframe.Fill(4, colorframe.RGB{R: uint8(i)})))
	}
	for i := 1; i <= 3; i++ {
		var msg struct {
			FrameID uint64 `json:"frame_id"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.EqualValues(t, i, msg.FrameID)
	}
}

func TestDiagWS(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.Run(ctx)

	conn := f.dial(t, "/diag")
	var hello map[string]string
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello["type"])
	assert.Len(t, hello["client"], 36)

	f.srv.Diagnostics(diag.Diagnostic{Severity: diag.Warn, Code: diag.CodeStall, Summary: "No new frames received"})
	var d diag.Diagnostic
	require.NoError(t, conn.ReadJSON(&d))
	assert.Equal(t, diag.CodeStall, d.Code)
	assert.Equal(t, diag.Warn, d.Severity)
}

func TestDiagnosticsNeverBlocks(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			f.srv.Diagnostics(diag.Diagnostic{Code: diag.CodeQueueCleared})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Diagnostics blocked")
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count  int             `json:"count"`
		Driver string          `json:"driver"`
		Effect string          `json:"effect"`
		Engine smoothing.Stats `json:"engine"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, "sim", body.Driver)
	assert.Equal(t, "", body.Effect)
	assert.Equal(t, 2, body.Engine.Configs)
}

func TestApply_Reload(t *testing.T) {
	f := newFixture(t)
	reloads := 0
	f.srv.Reload = func() error { reloads++; return nil }
	r := f.srv.Apply(Command{Cmd: "reload"})
	assert.True(t, r.OK)
	assert.Equal(t, 1, reloads)

	f.srv.Reload = func() error { return errors.New("bad yaml") }
	r = f.srv.Apply(Command{Cmd: "reload"})
	assert.Equal(t, Reply{Error: "bad yaml"}, r)
}
