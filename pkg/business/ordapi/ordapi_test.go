package ordapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/ordkit/pkg/channel/xpush"
	"github.com/omeyang/ordkit/pkg/config/xconf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestClient 创建指向本地测试服务器的客户端。
// 推送通道指向不可达地址，测试中不建立连接。
func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*xconf.Settings)) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	settings := xconf.DefaultSettings()
	settings.Provider.BaseURL = srv.URL
	settings.Provider.Timeout = 2 * time.Second
	settings.Channel.URL = "ws://127.0.0.1:1"
	settings.Executor.MaxRequests = 1000
	settings.Executor.Window = 50 * time.Millisecond
	settings.Executor.MaxRetries = 2
	settings.Executor.BaseDelay = time.Millisecond
	for _, fn := range mutate {
		fn(&settings)
	}

	client, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func sampleEtching(name string) Etching {
	return Etching{
		Name:         name,
		SpacedName:   name,
		Number:       1,
		Symbol:       "⧉",
		Supply:       "21000000",
		Divisibility: 8,
		BlockHeight:  840000,
	}
}

func TestGetEtchingValidation(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.GetEtching(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGetEtchingCachesSecondCall(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, sampleEtching("UNCOMMONGOODS"))
	}))

	first, err := c.GetEtching(context.Background(), "UNCOMMONGOODS")
	require.NoError(t, err)
	second, err := c.GetEtching(context.Background(), "UNCOMMONGOODS")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetEtchingNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"NOT_FOUND","message":"no such rune","statusCode":404}`)
	}))

	_, err := c.GetEtching(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetEtchingRetriesServerError(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"SERVER_ERROR","message":"upstream degraded","statusCode":503}`)
			return
		}
		writeJSON(t, w, sampleEtching("RECOVERED"))
	}))

	etching, err := c.GetEtching(context.Background(), "RECOVERED")
	require.NoError(t, err)
	assert.Equal(t, "RECOVERED", etching.Name)
	assert.Equal(t, int64(3), calls.Load())
}

func TestRetryAfterTimedOutAttempt(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 首次尝试超出单次请求超时，第二次立即成功
		if calls.Add(1) == 1 {
			time.Sleep(400 * time.Millisecond)
			return
		}
		writeJSON(t, w, sampleEtching("SLOWSTART"))
	}), func(s *xconf.Settings) {
		s.Provider.Timeout = 100 * time.Millisecond
		s.Executor.MaxRetries = 3
	})

	etching, err := c.GetEtching(context.Background(), "SLOWSTART")
	require.NoError(t, err, "超时属于瞬态错误，必须通过重试拿到结果")
	assert.Equal(t, "SLOWSTART", etching.Name)
	assert.Equal(t, int64(2), calls.Load())
}

func TestConcurrentCallsDeduplicated(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		writeJSON(t, w, sampleEtching("SHARED"))
	}))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.GetEtching(context.Background(), "SHARED")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestListEtchingsSendsFilterParams(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/runes/etchings", r.URL.Path)
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "0", q.Get("offset"))
		assert.Equal(t, "DOG", q.Get("q"))
		writeJSON(t, w, Paged[Etching]{Limit: 20, Total: 1, Results: []Etching{sampleEtching("DOGGOTOTHEMOON")}})
	}))

	page, err := c.ListEtchings(context.Background(), EtchingFilter{Query: "DOG"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(1), page.Total)
}

func TestListBalancesAndInvalidate(t *testing.T) {
	const address = "bc1qexampleaddress"
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/addresses/"+address+"/runes", r.URL.Path)
		writeJSON(t, w, Paged[TokenBalance]{Limit: 20, Total: 1, Results: []TokenBalance{{
			Address: address, Rune: "UNCOMMONGOODS", Balance: "100", Divisibility: 8,
		}}})
	}))

	_, err := c.ListBalances(context.Background(), address, ListOptions{})
	require.NoError(t, err)
	_, err = c.ListBalances(context.Background(), address, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	removed, err := c.InvalidateBalances(address)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = c.ListBalances(context.Background(), address, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEtchingActivityShortLivedCache(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/runes/etchings/UNCOMMONGOODS/activity", r.URL.Path)
		writeJSON(t, w, Paged[RuneActivity]{Total: 1, Results: []RuneActivity{{
			TxID: "f4184fc5", Action: "mint", Rune: "UNCOMMONGOODS", Amount: "1", BlockHeight: 840000,
		}}})
	}))

	page, err := c.EtchingActivity(context.Background(), "UNCOMMONGOODS", ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "mint", page.Results[0].Action)

	_, err = c.EtchingActivity(context.Background(), "UNCOMMONGOODS", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	_, err = c.EtchingActivity(context.Background(), "", ListOptions{})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestInscriptionTransfers(t *testing.T) {
	const id = "6fb976ab49dcec017f1e201e84395983204ae1a7i0"
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inscriptions/"+id+"/transfers", r.URL.Path)
		writeJSON(t, w, Paged[InscriptionTransfer]{Total: 1, Results: []InscriptionTransfer{{
			TxID: "ab12", From: "bc1qfrom", To: "bc1qto", BlockHeight: 840100,
		}}})
	}))

	page, err := c.InscriptionTransfers(context.Background(), id, ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "bc1qto", page.Results[0].To)
}

func TestAddressActivity(t *testing.T) {
	const address = "bc1qexampleaddress"
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/"+address+"/activity", r.URL.Path)
		writeJSON(t, w, Paged[RuneActivity]{Total: 1, Results: []RuneActivity{{
			TxID: "cd34", Action: "transfer", Address: address, Amount: "42",
		}}})
	}))

	page, err := c.AddressActivity(context.Background(), address, ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "transfer", page.Results[0].Action)
}

func TestSearchMergesPartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/runes/etchings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Etching]{Results: []Etching{sampleEtching("DOGGOTOTHEMOON")}})
	})
	mux.HandleFunc("/inscriptions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"SERVER_ERROR","message":"index offline","statusCode":500}`)
	})
	c := newTestClient(t, mux, func(s *xconf.Settings) {
		s.Executor.MaxRetries = 0
	})

	results, err := c.Search(context.Background(), "DOG", ListOptions{})
	require.NoError(t, err)
	assert.True(t, results.Partial)
	assert.Len(t, results.Etchings, 1)
	assert.Empty(t, results.Inscriptions)
	assert.ErrorIs(t, results.Errors["inscriptions"], ErrServerError)
}

func TestSearchAddressQueryIncludesBalances(t *testing.T) {
	const address = "bc1qexampleaddress"
	mux := http.NewServeMux()
	mux.HandleFunc("/runes/etchings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Etching]{})
	})
	mux.HandleFunc("/inscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Inscription]{})
	})
	mux.HandleFunc("/addresses/"+address+"/runes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[TokenBalance]{Total: 1, Results: []TokenBalance{{
			Address: address, Rune: "UNCOMMONGOODS", Balance: "7",
		}}})
	})
	c := newTestClient(t, mux)

	results, err := c.Search(context.Background(), address, ListOptions{})
	require.NoError(t, err)
	assert.False(t, results.Partial)
	require.Len(t, results.Balances, 1)
	assert.Equal(t, "7", results.Balances[0].Balance)

	// 非地址形态的关键词不触发余额查询
	assert.False(t, looksLikeAddress("DOG"))
	assert.True(t, looksLikeAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
}

func TestSearchAllDomainsFail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"SERVER_ERROR","message":"down","statusCode":500}`)
	}), func(s *xconf.Settings) {
		s.Executor.MaxRetries = 0
	})

	_, err := c.Search(context.Background(), "DOG", ListOptions{})
	assert.ErrorIs(t, err, ErrServerError)
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Search(context.Background(), "", ListOptions{})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestTrendingSendsSortAndPeriod(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "trending", q.Get("sort"))
		assert.Equal(t, "24h", q.Get("period"))
		writeJSON(t, w, Paged[Etching]{Results: []Etching{sampleEtching("HOT")}})
	}))

	page, err := c.Trending(context.Background(), "24h", ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
}

func TestHealthCheckAllSubsystems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/runes/etchings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Etching]{})
	})
	mux.HandleFunc("/inscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Inscription]{})
	})
	mux.HandleFunc("/addresses/"+healthProbeAddress+"/runes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[TokenBalance]{})
	})
	c := newTestClient(t, mux)

	health := c.HealthCheck(context.Background())
	assert.True(t, health["etchings"])
	assert.True(t, health["inscriptions"])
	assert.True(t, health["balances"])
	assert.True(t, health["cache"])
	assert.False(t, health["channel"], "推送通道未连接")
}

func TestHealthCheckDoesNotEvictDomainEntries(t *testing.T) {
	var getCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/runes/etchings/PINNED", func(w http.ResponseWriter, r *http.Request) {
		getCalls.Add(1)
		writeJSON(t, w, sampleEtching("PINNED"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Etching]{})
	})
	c := newTestClient(t, mux, func(s *xconf.Settings) {
		// 区域刚好容纳业务条目与探测期间的列表结果
		s.Cache.Regions[xconf.RegionEtchings] = xconf.RegionSettings{
			Capacity: 2,
			TTL:      time.Minute,
			Strategy: "lru",
		}
	})

	_, err := c.GetEtching(context.Background(), "PINNED")
	require.NoError(t, err)

	health := c.HealthCheck(context.Background())
	assert.True(t, health["cache"])

	// 健康检查后业务条目仍在缓存中
	_, err = c.GetEtching(context.Background(), "PINNED")
	require.NoError(t, err)
	assert.Equal(t, int64(1), getCalls.Load())
}

func TestHealthCheckReportsFailedDomain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/runes/etchings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"SERVER_ERROR","message":"down","statusCode":500}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, Paged[Etching]{})
	})
	c := newTestClient(t, mux, func(s *xconf.Settings) {
		s.Executor.MaxRetries = 0
	})

	health := c.HealthCheck(context.Background())
	assert.False(t, health["etchings"])
	assert.True(t, health["inscriptions"])
	assert.True(t, health["cache"])
}

func TestClosedClientRejectsCalls(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	require.NoError(t, c.Close())

	_, err := c.GetEtching(context.Background(), "ANY")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Search(context.Background(), "ANY", ListOptions{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close(), "重复关闭幂等")
}

func TestParseEvent(t *testing.T) {
	etchingData, err := json.Marshal(sampleEtching("NEWRUNE"))
	require.NoError(t, err)

	event, err := ParseEvent(xpush.Envelope{
		Type:        xpush.KindEtching,
		Action:      "created",
		Data:        etchingData,
		BlockHeight: 840001,
		Timestamp:   1714000000,
	})
	require.NoError(t, err)
	etching, ok := event.(EtchingEvent)
	require.True(t, ok)
	assert.Equal(t, "NEWRUNE", etching.Etching.Name)
	assert.Equal(t, int64(840001), etching.BlockHeight)

	balanceData, err := json.Marshal(TokenBalance{Address: "bc1q", Rune: "NEWRUNE", Balance: "5"})
	require.NoError(t, err)
	event, err = ParseEvent(xpush.Envelope{Type: xpush.KindBalance, Data: balanceData})
	require.NoError(t, err)
	balance, ok := event.(BalanceEvent)
	require.True(t, ok)
	assert.Equal(t, "5", balance.Balance.Balance)

	event, err = ParseEvent(xpush.Envelope{Type: xpush.KindBlock, BlockHeight: 840002})
	require.NoError(t, err)
	block, ok := event.(BlockEvent)
	require.True(t, ok)
	assert.Equal(t, int64(840002), block.Height)

	_, err = ParseEvent(xpush.Envelope{Type: "mempool"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = ParseEvent(xpush.Envelope{Type: xpush.KindEtching, Data: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestAPIKeyAndAcceptHeaders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		writeJSON(t, w, sampleEtching("AUTHED"))
	}), func(s *xconf.Settings) {
		s.Provider.APIKey = "secret-key"
	})

	_, err := c.GetEtching(context.Background(), "AUTHED")
	require.NoError(t, err)
}

func TestCodeOf(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"FORBIDDEN","message":"plan limit","statusCode":403}`)
	}))

	_, err := c.GetEtching(context.Background(), "ANY")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "FORBIDDEN", CodeOf(err))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.False(t, IsRetryable(err))
}
