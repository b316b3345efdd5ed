package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

type fakeConn struct {
	frames  chan []byte
	closed  chan struct{}
	once    sync.Once
	onClose func()
}

func newFakeConn(onClose func()) *fakeConn {
	return &fakeConn{
		frames:  make(chan []byte, 16),
		closed:  make(chan struct{}),
		onClose: onClose,
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-f.frames:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return frame, nil
	case <-f.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() {
		close(f.closed)
		if f.onClose != nil {
			f.onClose()
		}
	})
	return nil
}

// drop simulates the server going away.
func (f *fakeConn) drop() { close(f.frames) }

// fakeDialer counts attempts and tracks how many attempts hold transport
// resources at the same time.
type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	live     int
	maxLive  int
	failures int
	block    chan struct{}
	conns    chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 64)}
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	fail := d.failures > 0
	if fail {
		d.failures--
	}
	block := d.block
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		d.live--
		d.mu.Unlock()
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	if fail {
		release()
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn(release)
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) stats() (dials, live, maxLive int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials, d.live, d.maxLive
}

func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a connection attempt")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestChannel(d Dialer, delay time.Duration) *Channel {
	return NewChannel(d, Options{ReconnectDelay: delay, Logger: zerolog.Nop()})
}

func TestChannelReconnectSingularity(t *testing.T) {
	d := newFakeDialer()
	ch := newTestChannel(d, 5*time.Millisecond)
	ch.OnMessage(func(Message) {})
	ch.Connect()
	t.Cleanup(ch.Close)

	for i := 0; i < 10; i++ {
		conn := d.nextConn(t)
		waitFor(t, "open state", func() bool { return ch.State() == StateOpen })
		if n := ch.pendingReconnects(); n != 0 {
			t.Fatalf("round %d: expected no pending reconnect while open, got %d", i, n)
		}
		conn.drop()
		// A redundant Connect during the backoff window must not start a
		// second attempt alongside the timer.
		ch.Connect()
		if n := ch.pendingReconnects(); n > 1 {
			t.Fatalf("round %d: %d pending reconnect timers", i, n)
		}
	}

	d.nextConn(t)
	_, _, maxLive := d.stats()
	if maxLive != 1 {
		t.Fatalf("expected at most one live attempt at a time, saw %d", maxLive)
	}
}

func TestChannelRetriesFailedDialsIndefinitely(t *testing.T) {
	d := newFakeDialer()
	d.failures = 4
	ch := newTestChannel(d, time.Millisecond)
	ch.Connect()
	t.Cleanup(ch.Close)

	d.nextConn(t)
	waitFor(t, "open state", func() bool { return ch.State() == StateOpen })

	dials, _, maxLive := d.stats()
	if dials != 5 {
		t.Fatalf("expected 5 dials (4 failures + success), got %d", dials)
	}
	if maxLive != 1 {
		t.Fatalf("expected at most one live attempt, saw %d", maxLive)
	}
}

func TestChannelConnectIsIdempotent(t *testing.T) {
	d := newFakeDialer()
	d.block = make(chan struct{})
	ch := newTestChannel(d, time.Hour)
	t.Cleanup(ch.Close)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Connect()
		}()
	}
	wg.Wait()

	waitFor(t, "first dial", func() bool { dials, _, _ := d.stats(); return dials >= 1 })
	if ch.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", ch.State())
	}
	close(d.block)
	d.nextConn(t)
	waitFor(t, "open state", func() bool { return ch.State() == StateOpen })

	ch.Connect()
	if dials, _, _ := d.stats(); dials != 1 {
		t.Fatalf("expected a single dial, got %d", dials)
	}
}

func TestChannelCloseCancelsPendingReconnect(t *testing.T) {
	d := newFakeDialer()
	d.failures = 1
	ch := newTestChannel(d, 50*time.Millisecond)
	ch.Connect()

	waitFor(t, "pending reconnect", func() bool { return ch.pendingReconnects() == 1 })
	ch.Close()
	ch.Close()

	if n := ch.pendingReconnects(); n != 0 {
		t.Fatalf("expected no pending reconnect after close, got %d", n)
	}
	if ch.State() != StateClosed {
		t.Fatalf("expected closed, got %s", ch.State())
	}

	time.Sleep(120 * time.Millisecond)
	ch.Connect()
	time.Sleep(20 * time.Millisecond)
	if dials, _, _ := d.stats(); dials != 1 {
		t.Fatalf("expected no attempts after close, got %d dials", dials)
	}
}

func TestChannelCloseDetachesHandler(t *testing.T) {
	d := newFakeDialer()
	ch := newTestChannel(d, time.Millisecond)

	var mu sync.Mutex
	var got []Message
	ch.OnMessage(func(m Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	ch.Connect()
	conn := d.nextConn(t)
	waitFor(t, "open state", func() bool { return ch.State() == StateOpen })

	ch.Close()
	select {
	case <-conn.closed:
	default:
		t.Fatalf("expected transport to be closed")
	}
	if _, live, _ := d.stats(); live != 0 {
		t.Fatalf("expected transport resources released, %d live", live)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 0 {
		t.Fatalf("expected no deliveries after close, got %d", len(got))
	}
	if dials, _, _ := d.stats(); dials != 1 {
		t.Fatalf("expected no reconnect after close, got %d dials", dials)
	}
}

func TestChannelDropsMalformedMessages(t *testing.T) {
	d := newFakeDialer()
	ch := newTestChannel(d, time.Hour)

	received := make(chan Message, 8)
	ch.OnMessage(func(m Message) { received <- m })
	ch.Connect()
	t.Cleanup(ch.Close)

	conn := d.nextConn(t)
	for _, frame := range []string{
		`not json at all`,
		`{"data":{}}`,
		`{"type":"NEW_APPLICATION","data":{"teacherName":42}}`,
		`{"type":"NEW_APPLICATION","data":{"teacherName":"Jane","vacancyTitle":"Math Tutor"}}`,
		`{"type":"PING"}`,
	} {
		conn.frames <- []byte(frame)
	}

	first := <-received
	app, ok := first.(NewApplication)
	if !ok || app.TeacherName != "Jane" {
		t.Fatalf("expected the valid application first, got %#v", first)
	}
	second := <-received
	if u, ok := second.(Unrecognized); !ok || u.Kind != "PING" {
		t.Fatalf("expected unrecognized PING, got %#v", second)
	}
	select {
	case extra := <-received:
		t.Fatalf("unexpected extra message %#v", extra)
	case <-time.After(20 * time.Millisecond):
	}
	if ch.State() != StateOpen {
		t.Fatalf("malformed frames must not disturb the connection, state=%s", ch.State())
	}
}

func TestChannelOverWebsocket(t *testing.T) {
	authHeaders := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders <- r.Header.Get("Authorization")
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		frames := []string{
			`garbage`,
			`{"type":"NEW_APPLICATION","data":{"teacherName":"Jane","vacancyTitle":"Math Tutor"}}`,
		}
		for _, f := range frames {
			if err := c.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		// Block until the client goes away.
		c.Read(ctx)
	}))
	t.Cleanup(srv.Close)

	dialer := WebsocketDialer{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:     "secret",
		ReadLimit: 1 << 16,
	}
	ch := newTestChannel(dialer, time.Hour)
	received := make(chan Message, 4)
	ch.OnMessage(func(m Message) { received <- m })
	ch.Connect()
	t.Cleanup(ch.Close)

	select {
	case m := <-received:
		app, ok := m.(NewApplication)
		if !ok || app.VacancyTitle != "Math Tutor" {
			t.Fatalf("unexpected message %#v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for websocket message")
	}

	if got := <-authHeaders; got != "Bearer secret" {
		t.Fatalf("expected bearer token header, got %q", got)
	}
}
