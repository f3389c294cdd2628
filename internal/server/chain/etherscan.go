package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Etherscan reads account history from an Etherscan V2 compatible API.
// Every request names the chain it is about.
type Etherscan struct {
	baseURL string
	apiKey  string
	chainID int64
	http    *http.Client
}

func NewEtherscan(baseURL, apiKey string, chainID int64, httpClient *http.Client) *Etherscan {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Etherscan{baseURL: baseURL, apiKey: apiKey, chainID: chainID, http: httpClient}
}

type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanTx struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	IsError   string `json:"isError"`
	TimeStamp string `json:"timeStamp"`
}

// Transactions returns every normal transaction of address, newest first.
func (e *Etherscan) Transactions(ctx context.Context, address string) ([]Transfer, error) {
	q := url.Values{}
	q.Set("chainid", strconv.FormatInt(e.chainID, 10))
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("startblock", "0")
	q.Set("endblock", "99999999")
	q.Set("sort", "desc")
	if e.apiKey != "" {
		q.Set("apikey", e.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("etherscan: unexpected status %d", resp.StatusCode)
	}

	var body etherscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("etherscan: decode: %w", err)
	}

	if body.Status != "1" {
		if strings.HasPrefix(body.Message, "No transactions found") {
			return []Transfer{}, nil
		}
		return nil, fmt.Errorf("etherscan: %s", body.Message)
	}

	var txs []etherscanTx
	if err := json.Unmarshal(body.Result, &txs); err != nil {
		return nil, fmt.Errorf("etherscan: decode result: %w", err)
	}

	transfers := make([]Transfer, 0, len(txs))
	for _, tx := range txs {
		wei, err := ParseWei(tx.Value)
		if err != nil {
			return nil, fmt.Errorf("etherscan: tx %s: %w", tx.Hash, err)
		}

		var ts time.Time
		if sec, err := strconv.ParseInt(tx.TimeStamp, 10, 64); err == nil {
			ts = time.Unix(sec, 0).UTC()
		}

		transfers = append(transfers, Transfer{
			Hash:      tx.Hash,
			From:      tx.From,
			To:        tx.To,
			Value:     WeiToEther(wei),
			Failed:    tx.IsError == "1",
			Timestamp: ts,
		})
	}

	return transfers, nil
}
