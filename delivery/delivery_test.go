package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2024-05-30-142501.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o644))
	return path
}

func TestHTTPUploader(t *testing.T) {
	var (
		gotToken string
		gotFile  string
		gotName  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotToken = r.FormValue("auth_token")
		f, hdr, err := r.FormFile("picture")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile, gotName = string(data), hdr.Filename
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "s3cret")
	err := u.Deliver(context.Background(), Delivery{Path: savedFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", gotToken)
	assert.Equal(t, "jpeg bytes", gotFile)
	assert.Equal(t, "2024-05-30-142501.jpg", gotName)
}

func TestHTTPUploader_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewHTTPUploader(srv.URL, "bad").Deliver(context.Background(), Delivery{Path: savedFile(t)})
	assert.ErrorContains(t, err, "401")
}

func TestHTTPUploader_MissingFile(t *testing.T) {
	err := NewHTTPUploader("http://127.0.0.1:1", "").Deliver(context.Background(), Delivery{Path: "/does/not/exist.jpg"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDispatch(t *testing.T) {
	boom := errors.New("boom")
	d := Delivery{ID: uuid.New(), Path: "x.jpg"}

	results := make(chan Result, 1)
	Dispatch(context.Background(), DelivererFunc(func(ctx context.Context, got Delivery) error {
		assert.Equal(t, d, got)
		return boom
	}), d, func(r Result) { results <- r })

	select {
	case r := <-results:
		assert.ErrorIs(t, r.Err, boom)
		assert.Equal(t, d.ID, r.ID)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
}

func TestMulti(t *testing.T) {
	var calls int
	ok := DelivererFunc(func(context.Context, Delivery) error { calls++; return nil })
	bad := DelivererFunc(func(context.Context, Delivery) error { calls++; return errors.New("down") })

	err := Multi{ok, bad, ok}.Deliver(context.Background(), Delivery{})
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 3, calls)

	assert.NoError(t, Multi{ok}.Deliver(context.Background(), Delivery{}))
}

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t *fakeToken) Error() error { return t.err }

type fakePublisher struct {
	connected    bool
	token        *fakeToken
	connect      *fakeToken
	disconnected bool
	topic        string
	payload      []byte
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) Connect() mqtt.Token {
	if p.connect == nil {
		p.connected = true
		return &fakeToken{}
	}
	return p.connect
}

func (p *fakePublisher) Disconnect(uint) {
	p.connected = false
	p.disconnected = true
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.payload = payload.([]byte)
	return p.token
}

func TestMQTTAnnouncer(t *testing.T) {
	pub := &fakePublisher{connected: true, token: &fakeToken{}}
	m := NewMQTTAnnouncer("tcp://localhost:1883", "booth", "", zerolog.Nop())
	m.client = pub

	id := uuid.New()
	taken := time.Date(2024, 5, 30, 14, 25, 1, 0, time.UTC)
	require.NoError(t, m.Deliver(context.Background(), Delivery{ID: id, Path: "a.jpg", Tag: "1-2", TakenAt: taken}))

	assert.Equal(t, DefaultTopic, pub.topic)
	var a Announcement
	require.NoError(t, json.Unmarshal(pub.payload, &a))
	assert.Equal(t, id.String(), a.ID)
	assert.Equal(t, "1-2", a.Tag)
	assert.True(t, taken.Equal(a.TakenAt))

	pub.token = &fakeToken{timeout: true}
	assert.ErrorContains(t, m.Deliver(context.Background(), Delivery{ID: id}), "timeout")

	pub.connected = false
	assert.ErrorIs(t, m.Deliver(context.Background(), Delivery{ID: id}), errNotConnected)

	published, failed := m.Stats()
	assert.Equal(t, uint64(1), published)
	assert.Equal(t, uint64(2), failed)
}

func TestMQTTAnnouncer_NotConnected(t *testing.T) {
	m := NewMQTTAnnouncer("tcp://localhost:1883", "booth", "t", zerolog.Nop())
	assert.ErrorIs(t, m.Deliver(context.Background(), Delivery{}), errNotConnected)
}

func TestMQTTAnnouncer_LateBroker(t *testing.T) {
	pub := &fakePublisher{token: &fakeToken{}, connect: &fakeToken{timeout: true}}
	m := NewMQTTAnnouncer("tcp://localhost:1883", "booth", "", zerolog.Nop())
	m.newClient = func(*mqtt.ClientOptions) client { return pub }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorContains(t, m.Connect(ctx), "timeout")
	assert.ErrorIs(t, m.Deliver(context.Background(), Delivery{ID: uuid.New()}), errNotConnected)

	// the background retry gets through after the deadline
	pub.connected = true
	require.NoError(t, m.Deliver(context.Background(), Delivery{ID: uuid.New(), Path: "a.jpg"}))
	assert.Equal(t, DefaultTopic, pub.topic)

	m.Disconnect()
	assert.True(t, pub.disconnected)
	assert.ErrorIs(t, m.Deliver(context.Background(), Delivery{ID: uuid.New()}), errNotConnected)
}

func TestMQTTAnnouncer_Connect(t *testing.T) {
	pub := &fakePublisher{token: &fakeToken{}}
	m := NewMQTTAnnouncer("tcp://localhost:1883", "booth", "", zerolog.Nop())
	m.newClient = func(*mqtt.ClientOptions) client { return pub }

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Deliver(context.Background(), Delivery{ID: uuid.New()}))

	pub.connect = &fakeToken{err: errors.New("not authorized")}
	assert.ErrorContains(t, m.Connect(context.Background()), "not authorized")
}
