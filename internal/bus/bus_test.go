package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

func TestMemoryBusSetOnce(t *testing.T) {
	m := NewMemoryBus()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v1"))
	require.Error(t, m.Set(ctx, "k", "v2"))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	_, ok, err = m.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryBusSignup(t *testing.T) {
	m := NewMemoryBus()
	s1 := m.Signup("uuid-a")
	s2 := m.Signup("uuid-a")
	s3 := m.Signup("uuid-b")
	require.Equal(t, uint16(1), s1.Number)
	require.Equal(t, uint16(2), s2.Number)
	require.Equal(t, uint16(1), s3.Number)
}

func TestGatherBroadcastsOrdering(t *testing.T) {
	m := NewMemoryBus()
	ctx := context.Background()
	uuid := "sess"

	require.NoError(t, Broadcast(ctx, m, uuid, 1, "round1", "from-1"))
	require.NoError(t, Broadcast(ctx, m, uuid, 3, "round1", "from-3"))

	// party 2 gathers, skipping itself
	got, err := GatherBroadcasts(ctx, m, uuid, 2, 3, "round1")
	require.NoError(t, err)
	require.Equal(t, []string{"from-1", "from-3"}, got)
}

func TestGatherAllIncludesSelf(t *testing.T) {
	m := NewMemoryBus()
	ctx := context.Background()
	uuid := "sess"

	for i := uint16(1); i <= 3; i++ {
		require.NoError(t, Broadcast(ctx, m, uuid, i, "round0", "v"))
	}
	got, err := GatherBroadcasts(ctx, m, uuid, 0, 3, "round0")
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestGatherWaitsForLatePublisher(t *testing.T) {
	m := NewMemoryBus()
	ctx := context.Background()
	uuid := "sess"

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(3 * PollInterval)
		_ = SendP2P(ctx, m, uuid, 2, 1, "round3", "late")
	}()

	got, err := GatherP2P(ctx, m, uuid, 1, 2, "round3")
	require.NoError(t, err)
	require.Equal(t, []string{"late"}, got)
	wg.Wait()
}

func TestGatherDeadlineSurfacesBusError(t *testing.T) {
	m := NewMemoryBus()
	ctx, cancel := context.WithTimeout(context.Background(), 5*PollInterval)
	defer cancel()

	_, err := GatherBroadcasts(ctx, m, "sess", 1, 2, "round1")
	require.Error(t, err)
	require.Equal(t, tss.BusError, tss.ErrorCode(err))
}

// managerStub speaks the rendezvous manager's HTTP/JSON dialect.
func managerStub(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	store := map[string]string{}
	seq := uint16(0)

	mux := http.NewServeMux()
	mux.HandleFunc("/signupkeygen", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seq++
		n := seq
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"Ok": PartySignup{Number: n, UUID: "stub-uuid"}})
	})
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		var e Entry
		_ = json.NewDecoder(r.Body).Decode(&e)
		mu.Lock()
		defer mu.Unlock()
		if _, dup := store[e.Key]; dup {
			_ = json.NewEncoder(w).Encode(map[string]any{"Err": "key already set"})
			return
		}
		store[e.Key] = e.Value
		_ = json.NewEncoder(w).Encode(map[string]any{"Ok": nil})
	})
	mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		var idx Index
		_ = json.NewDecoder(r.Body).Decode(&idx)
		mu.Lock()
		v, ok := store[idx.Key]
		mu.Unlock()
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"Err": "not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"Ok": Entry{Key: idx.Key, Value: v}})
	})
	return httptest.NewServer(mux)
}

func TestHTTPBusAgainstStubManager(t *testing.T) {
	srv := managerStub(t)
	defer srv.Close()

	h := NewHTTPBus(srv.URL)
	ctx := context.Background()

	signup, err := h.Signup(ctx, "signupkeygen", NewSignupParams(tss.Params{Threshold: 1, Parties: 3, ShareCount: 3}))
	require.NoError(t, err)
	require.Equal(t, uint16(1), signup.Number)
	require.Equal(t, "stub-uuid", signup.UUID)

	require.NoError(t, h.Set(ctx, "a", "1"))
	require.Error(t, h.Set(ctx, "a", "2"), "duplicate key must be rejected")

	v, ok, err := h.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	_, ok, err = h.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
