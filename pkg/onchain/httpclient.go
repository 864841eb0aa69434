package onchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// HTTPOrderQuoting and HTTPAppDataStore call the off-chain orderbook
// API's quoting/app-data endpoints directly. This boundary is a plain
// HTTP client: none of the corpus carries a dedicated REST client
// library, so net/http is the idiomatic choice here (see DESIGN.md).
type HTTPOrderQuoting struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOrderQuoting(baseURL string, client *http.Client) *HTTPOrderQuoting {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOrderQuoting{baseURL: baseURL, client: client}
}

func (q *HTTPOrderQuoting) FindQuote(ctx context.Context, quoteID *int64, params QuoteSearchParameters) (Quote, error) {
	url := fmt.Sprintf("%s/api/v1/quote?sellToken=%s&buyToken=%s&side=%s&amount=%s",
		q.baseURL, params.SellToken.Hex(), params.BuyToken.Hex(), params.Side, params.Amount.String())
	if quoteID != nil {
		url = fmt.Sprintf("%s&quoteId=%d", url, *quoteID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build quote request: %w", err)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, ErrQuoteNotFound
	}
	if resp.StatusCode == http.StatusGone {
		return Quote{}, ErrQuoteExpired
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Quote{}, fmt.Errorf("quote request failed with %d: %s", resp.StatusCode, body)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return Quote{}, fmt.Errorf("decode quote response: %w", err)
	}
	return quote, nil
}

var _ OrderQuoting = (*HTTPOrderQuoting)(nil)

// HTTPAppDataStore fetches raw app-data documents by IPFS-style content
// hash and parses the pre/post hooks out of the `metadata.hooks` field.
type HTTPAppDataStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAppDataStore(baseURL string, client *http.Client) *HTTPAppDataStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAppDataStore{baseURL: baseURL, client: client}
}

func (s *HTTPAppDataStore) Fetch(ctx context.Context, hash common.Hash) ([]byte, bool, error) {
	url := fmt.Sprintf("%s/api/v1/app_data/%s", s.baseURL, hash.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build app-data request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("app-data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("app-data request failed with %d: %s", resp.StatusCode, body)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read app-data body: %w", err)
	}
	return raw, true, nil
}

type appDataDocument struct {
	Metadata struct {
		Hooks struct {
			Pre  []hookDocument `json:"pre"`
			Post []hookDocument `json:"post"`
		} `json:"hooks"`
		Signer *common.Address `json:"signer,omitempty"`
	} `json:"metadata"`
}

type hookDocument struct {
	Target   common.Address `json:"target"`
	CallData string         `json:"callData"`
	GasLimit uint64         `json:"gasLimit"`
}

func (s *HTTPAppDataStore) Parse(raw []byte) (ParsedAppData, error) {
	var doc appDataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ParsedAppData{}, fmt.Errorf("decode app-data document: %w", err)
	}
	parsed := ParsedAppData{Signer: doc.Metadata.Signer}
	for _, h := range doc.Metadata.Hooks.Pre {
		parsed.PreHooks = append(parsed.PreHooks, Hook{Target: h.Target, CallData: common.FromHex(h.CallData), GasLimit: h.GasLimit})
	}
	for _, h := range doc.Metadata.Hooks.Post {
		parsed.PostHooks = append(parsed.PostHooks, Hook{Target: h.Target, CallData: common.FromHex(h.CallData), GasLimit: h.GasLimit})
	}
	return parsed, nil
}

var _ AppDataStore = (*HTTPAppDataStore)(nil)
