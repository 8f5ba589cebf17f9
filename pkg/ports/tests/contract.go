package tests

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/ports"
)

const contractWait = 3 * time.Second

// FrameContractTest is a reusable test suite that verifies if an adapter complies with ports.Frame.
// The frame must be fresh, and source must point at a remote document served by a storage host.
func FrameContractTest(t *testing.T, frame ports.Frame, source string) {
	t.Helper()

	origin := domain.OriginOf(source)
	inbound := make(chan domain.Response, 16)

	// 1. Post before Load
	t.Run("Post_NotLoaded", func(t *testing.T) {
		err := frame.Post(mustEncode(t, domain.Request{Method: domain.MethodConnect, ID: "sessionAccessId-0"}), origin)
		if !errors.Is(err, domain.ErrNotDelivered) {
			t.Fatalf("expected ErrNotDelivered before load, got %v", err)
		}
	})

	// 2. Load signals exactly once
	t.Run("Load", func(t *testing.T) {
		loaded := make(chan struct{}, 2)
		frame.Load(source, func() { loaded <- struct{}{} })

		select {
		case <-loaded:
		case <-time.After(contractWait):
			t.Fatal("frame did not signal load")
		}
	})

	cancel := frame.Subscribe(func(env domain.Envelope) {
		if env.Origin != origin {
			t.Errorf("envelope origin %q, want %q", env.Origin, origin)
			return
		}
		resp, err := env.Decode()
		if err != nil {
			t.Errorf("undecodable envelope: %v", err)
			return
		}
		inbound <- resp
	})

	// 3. Connect handshake
	t.Run("Connect", func(t *testing.T) {
		if err := frame.Post(mustEncode(t, domain.Request{Method: domain.MethodConnect, ID: "sessionAccessId-1"}), origin); err != nil {
			t.Fatalf("unexpected error posting connect: %v", err)
		}
		resp := await(t, inbound)
		if !resp.Connected() {
			t.Fatalf("expected connected marker, got %+v", resp)
		}
	})

	// 4. Round trip
	t.Run("SetGet", func(t *testing.T) {
		key := domain.NullString("contract")
		set := domain.Request{Method: domain.MethodSet, Key: key, Value: json.RawMessage(`{"v":1}`), ID: "sessionAccessId-2"}
		if err := frame.Post(mustEncode(t, set), origin); err != nil {
			t.Fatalf("unexpected error posting set: %v", err)
		}
		if resp := await(t, inbound); resp.ID != set.ID || resp.HasError() {
			t.Fatalf("unexpected set reply %+v", resp)
		}

		get := domain.Request{Method: domain.MethodGet, Key: key, ID: "sessionAccessId-3"}
		if err := frame.Post(mustEncode(t, get), origin); err != nil {
			t.Fatalf("unexpected error posting get: %v", err)
		}
		resp := await(t, inbound)
		if resp.ID != get.ID {
			t.Fatalf("reply id %q, want %q", resp.ID, get.ID)
		}
		if string(resp.Data) != `{"v":1}` {
			t.Errorf("reply data %s, want {\"v\":1}", resp.Data)
		}
	})

	// 5. Origin mismatch
	t.Run("Post_WrongOrigin", func(t *testing.T) {
		err := frame.Post(mustEncode(t, domain.Request{Method: domain.MethodConnect, ID: "sessionAccessId-4"}), "https://elsewhere.invalid")
		if !errors.Is(err, domain.ErrNotDelivered) {
			t.Fatalf("expected ErrNotDelivered for foreign origin, got %v", err)
		}
	})

	// 6. Unsubscribe is idempotent
	cancel()
	cancel()

	// 7. Blank drops the document
	t.Run("Blank", func(t *testing.T) {
		frame.Blank()
		err := frame.Post(mustEncode(t, domain.Request{Method: domain.MethodConnect, ID: "sessionAccessId-5"}), origin)
		if !errors.Is(err, domain.ErrNotDelivered) {
			t.Fatalf("expected ErrNotDelivered after blank, got %v", err)
		}
	})

	// 8. Unload
	t.Run("Unload", func(t *testing.T) {
		if err := frame.Unload(); err != nil {
			t.Fatalf("unexpected error unloading: %v", err)
		}
	})
}

func mustEncode(t *testing.T, req domain.Request) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	return data
}

func await(t *testing.T, ch <-chan domain.Response) domain.Response {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(contractWait):
		t.Fatal("no reply from frame")
		return domain.Response{}
	}
}
