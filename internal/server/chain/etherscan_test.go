package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEtherscanServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var seen http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = *r
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestEtherscan_Transactions(t *testing.T) {
	body := `{"status":"1","message":"OK","result":[
		{"hash":"0xh2","from":"0xaaa","to":"0xbbb","value":"2000000000000000000","isError":"0","timeStamp":"1700000100"},
		{"hash":"0xh1","from":"0xbbb","to":"0xaaa","value":"500000000000000000","isError":"1","timeStamp":"1700000000"}
	]}`
	srv, seen := newEtherscanServer(t, http.StatusOK, body)

	es := NewEtherscan(srv.URL, "KEY", 11155111, srv.Client())
	got, err := es.Transactions(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "0xh2", got[0].Hash)
	assert.Equal(t, "2", got[0].Value.String())
	assert.False(t, got[0].Failed)
	assert.Equal(t, time.Unix(1700000100, 0).UTC(), got[0].Timestamp)

	assert.Equal(t, "0.5", got[1].Value.String())
	assert.True(t, got[1].Failed)

	q := seen.URL.Query()
	assert.Equal(t, "11155111", q.Get("chainid"))
	assert.Equal(t, "account", q.Get("module"))
	assert.Equal(t, "txlist", q.Get("action"))
	assert.Equal(t, "0xaaa", q.Get("address"))
	assert.Equal(t, "desc", q.Get("sort"))
	assert.Equal(t, "KEY", q.Get("apikey"))
}

func TestEtherscan_NoTransactions(t *testing.T) {
	srv, _ := newEtherscanServer(t, http.StatusOK, `{"status":"0","message":"No transactions found","result":[]}`)

	got, err := NewEtherscan(srv.URL, "", 1, nil).Transactions(context.Background(), "0xaaa")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEtherscan_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusOK, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`},
		{"http error", http.StatusBadGateway, `oops`},
		{"bad json", http.StatusOK, `{`},
		{"bad value", http.StatusOK, `{"status":"1","message":"OK","result":[{"hash":"0x1","value":"lots"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newEtherscanServer(t, tt.status, tt.body)
			_, err := NewEtherscan(srv.URL, "", 1, srv.Client()).Transactions(context.Background(), "0xaaa")
			require.Error(t, err)
		})
	}
}
