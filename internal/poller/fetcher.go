package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oliveagle/jsonpath"

	"github.com/researchfund/fundboard/internal/store"
)

// DefaultEnvelope is the JSONPath used when the status endpoint wraps the
// list in an object, e.g. {"success": true, "data": [...]}.
const DefaultEnvelope = "$.data"

const defaultFetchTimeout = 10 * time.Second

var payloadJSON = sonic.Config{UseNumber: true}.Froze()

// StatusFetcher loads the status list from the backend's status endpoint.
//
// The endpoint may answer with a bare JSON array of records or with an object
// envelope; Envelope is the JSONPath to the array inside the envelope.
// StatusFetcher implements [store.Fetcher].
type StatusFetcher struct {
	client   *Client
	url      string
	headers  map[string]string
	envelope *jsonpath.Compiled
	timeout  time.Duration
}

// NewStatusFetcher creates a fetcher for url. An empty envelope selects
// [DefaultEnvelope]; a zero timeout selects 10 seconds.
func NewStatusFetcher(client *Client, url string, headers map[string]string, envelope string, timeout time.Duration) (*StatusFetcher, error) {
	if client == nil {
		client = NewClient()
	}
	if envelope == "" {
		envelope = DefaultEnvelope
	}
	compiled, err := jsonpath.Compile(envelope)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope path %q: %w", envelope, err)
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	hdrs := make(map[string]string, len(headers))
	for k, v := range headers {
		hdrs[k] = v
	}

	return &StatusFetcher{
		client:   client,
		url:      url,
		headers:  hdrs,
		envelope: compiled,
		timeout:  timeout,
	}, nil
}

// URL returns the status endpoint URL.
func (f *StatusFetcher) URL() string {
	return f.url
}

// FetchStatuses performs the GET and decodes the list.
//
// Transport failures, non-2xx responses, and undecodable bodies are all
// reported as [*store.FetchError].
func (f *StatusFetcher) FetchStatuses(ctx context.Context) (store.List, error) {
	resp := f.client.Get(ctx, f.url, f.headers, f.timeout)
	if resp.Error != nil {
		return nil, &store.FetchError{URL: f.url, Err: resp.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &store.FetchError{URL: f.url, StatusCode: resp.StatusCode}
	}

	list, err := f.decode(resp.Body)
	if err != nil {
		return nil, &store.FetchError{URL: f.url, Err: err}
	}
	return list, nil
}

func (f *StatusFetcher) decode(body []byte) (store.List, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	var list store.List
	if trimmed[0] == '[' {
		if err := payloadJSON.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode status list: %w", err)
		}
		return list, nil
	}

	var doc any
	if err := payloadJSON.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode status envelope: %w", err)
	}
	node, err := f.envelope.Lookup(doc)
	if err != nil {
		return nil, fmt.Errorf("status envelope has no list: %w", err)
	}
	if _, ok := node.([]any); !ok {
		return nil, fmt.Errorf("status envelope value is %T, want array", node)
	}

	raw, err := payloadJSON.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("re-encode status list: %w", err)
	}
	if err := payloadJSON.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode status list: %w", err)
	}
	return list, nil
}
