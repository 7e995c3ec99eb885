// Package bus adapts the external rendezvous manager to the
// protocols. The manager is an untrusted set-once key-value relay;
// everything the rounds need is broadcast/p2p addressing layered on
// top of the key schema "{sender}-{round}-{uuid}" and
// "{sender}-{receiver}-{round}-{uuid}". Transports are pluggable: the
// HTTP client talks to a live manager, the memory bus backs tests.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/taiyi-research-institute/mpc-hd-gg18/pkg/tss"
)

// PollInterval is the delay between successive polls for a missing
// key.
const PollInterval = 25 * time.Millisecond

// RoundTimeout bounds how long a party waits for one peer's message
// in one round before surfacing a BusError.
const RoundTimeout = 30 * time.Second

// Bus is the set-once key-value surface of the rendezvous manager.
type Bus interface {
	// Set publishes value under key. Publishing twice under the same
	// key is an error.
	Set(ctx context.Context, key, value string) error
	// Get returns the value under key and whether it is present yet.
	Get(ctx context.Context, key string) (string, bool, error)
}

// PartySignup is the manager's answer to a signup request.
type PartySignup struct {
	Number uint16 `json:"number"`
	UUID   string `json:"uuid"`
}

// SignupParams mirrors the manager's signup body. The manager expects
// the numbers as strings.
type SignupParams struct {
	Threshold  string `json:"threshold"`
	Parties    string `json:"parties"`
	ShareCount string `json:"share_count"`
}

// NewSignupParams formats protocol parameters for a signup call.
func NewSignupParams(p tss.Params) SignupParams {
	return SignupParams{
		Threshold:  fmt.Sprintf("%d", p.Threshold),
		Parties:    fmt.Sprintf("%d", p.Parties),
		ShareCount: fmt.Sprintf("%d", p.ShareCount),
	}
}

func broadcastKey(sender uint16, round, uuid string) string {
	return fmt.Sprintf("%d-%s-%s", sender, round, uuid)
}

func p2pKey(sender, receiver uint16, round, uuid string) string {
	return fmt.Sprintf("%d-%d-%s-%s", sender, receiver, round, uuid)
}

// Broadcast publishes a round message under the sender's slot.
func Broadcast(ctx context.Context, b Bus, uuid string, sender uint16, round, payload string) error {
	if err := b.Set(ctx, broadcastKey(sender, round, uuid), payload); err != nil {
		return tss.NewError(tss.BusError, round, sender, err)
	}
	return nil
}

// SendP2P publishes a directed round message.
func SendP2P(ctx context.Context, b Bus, uuid string, sender, receiver uint16, round, payload string) error {
	if err := b.Set(ctx, p2pKey(sender, receiver, round, uuid), payload); err != nil {
		return tss.NewError(tss.BusError, round, sender, err)
	}
	return nil
}

// GatherBroadcasts polls the broadcast slots of parties 1..n in order
// and returns their payloads. The slot self is skipped; pass self = 0
// to gather every slot including one's own.
func GatherBroadcasts(ctx context.Context, b Bus, uuid string, self, n uint16, round string) ([]string, error) {
	out := make([]string, 0, n)
	for i := uint16(1); i <= n; i++ {
		if i == self {
			continue
		}
		v, err := await(ctx, b, broadcastKey(i, round, uuid), round, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GatherP2P polls the directed slots addressed to receiver from every
// sender 1..n except the receiver itself.
func GatherP2P(ctx context.Context, b Bus, uuid string, receiver, n uint16, round string) ([]string, error) {
	out := make([]string, 0, n)
	for i := uint16(1); i <= n; i++ {
		if i == receiver {
			continue
		}
		v, err := await(ctx, b, p2pKey(i, receiver, round, uuid), round, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GatherP2PAll polls the directed slots addressed to receiver from
// every sender slot 1..senders, the receiver's own included. The
// resharing rounds renumber senders by their position within the
// giver set, so the receiver's own bus number never collides.
func GatherP2PAll(ctx context.Context, b Bus, uuid string, receiver, senders uint16, round string) ([]string, error) {
	out := make([]string, 0, senders)
	for i := uint16(1); i <= senders; i++ {
		v, err := await(ctx, b, p2pKey(i, receiver, round, uuid), round, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// await polls one key until it appears or the round deadline passes.
func await(ctx context.Context, b Bus, key, round string, sender uint16) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RoundTimeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", tss.NewError(tss.BusError, round, sender,
				fmt.Errorf("peer unreachable: %w", ctx.Err()))
		case <-ticker.C:
			v, ok, err := b.Get(ctx, key)
			if err != nil {
				return "", tss.NewError(tss.BusError, round, sender, err)
			}
			if ok {
				return v, nil
			}
		}
	}
}
