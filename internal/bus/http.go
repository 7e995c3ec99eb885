package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

const (
	postRetries    = 3
	postRetryDelay = 250 * time.Millisecond
)

// Entry is the manager's set body; Index is its get body.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Index addresses a key on the manager.
type Index struct {
	Key string `json:"key"`
}

// HTTPBus talks to the rendezvous manager over HTTP/JSON.
type HTTPBus struct {
	Addr   string
	Client *http.Client
}

// NewHTTPBus returns a bus client for the manager at addr.
func NewHTTPBus(addr string) *HTTPBus {
	return &HTTPBus{
		Addr:   addr,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Signup registers with the manager at the given endpoint
// ("signupkeygen" or "signupreshare") and obtains the party number
// and session uuid.
func (h *HTTPBus) Signup(ctx context.Context, endpoint string, params SignupParams) (*PartySignup, error) {
	body, err := h.post(ctx, endpoint, params)
	if err != nil {
		return nil, tss.NewError(tss.BusError, "signup", 0, err)
	}
	var signup okResponse[PartySignup]
	if err := json.Unmarshal(body, &signup); err != nil || signup.Ok == nil {
		return nil, tss.NewError(tss.BusError, "signup", 0,
			errors.Errorf("unexpected signup response %q", string(body)))
	}
	return signup.Ok, nil
}

// Set implements Bus.
func (h *HTTPBus) Set(ctx context.Context, key, value string) error {
	body, err := h.post(ctx, "set", Entry{Key: key, Value: value})
	if err != nil {
		return err
	}
	var res map[string]json.RawMessage
	if err := json.Unmarshal(body, &res); err != nil {
		return errors.Wrapf(err, "decoding set response %q", string(body))
	}
	// the manager answers with a Result: the Err variant (even a
	// bare {"Err":null}) means the key was already occupied
	if raw, failed := res["Err"]; failed {
		return errors.Errorf("manager rejected set of %s: %s", key, string(raw))
	}
	return nil
}

// Get implements Bus. A missing key is not an error: the caller is
// polling.
func (h *HTTPBus) Get(ctx context.Context, key string) (string, bool, error) {
	body, err := h.post(ctx, "get", Index{Key: key})
	if err != nil {
		return "", false, err
	}
	var res okResponse[Entry]
	if err := json.Unmarshal(body, &res); err != nil {
		return "", false, errors.Wrapf(err, "decoding get response %q", string(body))
	}
	if res.Ok == nil {
		return "", false, nil
	}
	return res.Ok.Value, true, nil
}

// okResponse mirrors the manager's Result serialization: {"Ok": ...}
// on success, {"Err": ...} on failure.
type okResponse[T any] struct {
	Ok *T `json:"Ok"`
}

// post sends one JSON POST with the manager retry policy: up to
// postRetries attempts spaced by postRetryDelay.
func (h *HTTPBus) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < postRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(postRetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Addr+"/"+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}
	return nil, errors.Wrapf(lastErr, "posting to %s/%s", h.Addr, path)
}
