package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"referral-indexer/internal/domain"
)

// DefaultTimeout bounds one round trip against the indexing service.
const DefaultTimeout = 30 * time.Second

// feePageQuery requests one page of referral-fee events ordered by
// (blockNumber asc, id asc) - a stable total order, so retried requests
// see the same prefix. Zero-fee events are filtered server-side.
const feePageQuery = `query FeePage($referrer: String!, $blockFloor: BigInt!, $first: Int!, $skip: Int!) {
  referrerFees(
    first: $first
    skip: $skip
    orderBy: blockNumber
    orderDirection: asc
    where: { referrer: $referrer, blockNumber_gte: $blockFloor, referrerFee_gt: "0" }
  ) {
    id
    blockNumber
    feeToken
    referrer
    referrerFee
  }
}`

// Client issues GraphQL page queries against one chain's indexing endpoint.
// It performs exactly one network call per FetchPage and never retries;
// retry policy lives in the caller.
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client bound to a single chain endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphRequest is the GraphQL-over-HTTP request envelope.
type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphResponse is the GraphQL response envelope.
type graphResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphError    `json:"errors,omitempty"`
}

type graphError struct {
	Message string `json:"message"`
}

// feePageData matches the data shape of feePageQuery. The service encodes
// BigInt scalars as strings.
type feePageData struct {
	ReferrerFees []feeRecordJSON `json:"referrerFees"`
}

type feeRecordJSON struct {
	ID          string `json:"id"`
	BlockNumber string `json:"blockNumber"`
	FeeToken    string `json:"feeToken"`
	Referrer    string `json:"referrer"`
	ReferrerFee string `json:"referrerFee"`
}

// FetchPage fetches up to pageSize fee records for referrer at the given
// (block floor, skip) position. The returned slice preserves the service's
// ordering. Errors are *TransportError or *MalformedResponseError.
func (c *Client) FetchPage(ctx context.Context, referrer string, blockFloor uint64, skip, pageSize int) ([]domain.FeeRecord, error) {
	reqBody := graphRequest{
		Query: feePageQuery,
		Variables: map[string]any{
			"referrer":   referrer,
			"blockFloor": strconv.FormatUint(blockFloor, 10),
			"first":      pageSize,
			"skip":       skip,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	var envelope graphResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &MalformedResponseError{Err: fmt.Errorf("unmarshal envelope: %w", err)}
	}

	if len(envelope.Errors) > 0 {
		return nil, &MalformedResponseError{Err: fmt.Errorf("graphql: %s", envelope.Errors[0].Message)}
	}

	var data feePageData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &MalformedResponseError{Err: fmt.Errorf("unmarshal data: %w", err)}
	}

	records := make([]domain.FeeRecord, 0, len(data.ReferrerFees))
	for _, raw := range data.ReferrerFees {
		record, err := raw.toDomain()
		if err != nil {
			return nil, &MalformedResponseError{Err: err}
		}
		records = append(records, record)
	}

	return records, nil
}

// toDomain validates one wire record and converts it. Validation happens
// here so nothing downstream has to re-check wire shapes.
func (r feeRecordJSON) toDomain() (domain.FeeRecord, error) {
	if r.ID == "" {
		return domain.FeeRecord{}, fmt.Errorf("record missing id")
	}

	blockNumber, err := strconv.ParseUint(r.BlockNumber, 10, 64)
	if err != nil {
		return domain.FeeRecord{}, fmt.Errorf("record %s: parse blockNumber %q: %w", r.ID, r.BlockNumber, err)
	}

	if !isDecimal(r.ReferrerFee) {
		return domain.FeeRecord{}, fmt.Errorf("record %s: invalid referrerFee %q", r.ID, r.ReferrerFee)
	}

	return domain.FeeRecord{
		ID:          r.ID,
		BlockNumber: blockNumber,
		FeeToken:    r.FeeToken,
		Referrer:    r.Referrer,
		ReferrerFee: r.ReferrerFee,
	}, nil
}

// isDecimal reports whether s is a non-empty unsigned decimal number.
// Fee amounts exceed 64-bit range, so this checks digits rather than parsing.
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
