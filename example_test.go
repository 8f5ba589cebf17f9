package storageguest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/storageguest"
	"github.com/aretw0/storageguest/pkg/session"
)

// ExampleOpen_memory runs the whole protocol in-process: the memory:// source
// is served by a host backed by an in-memory store.
func ExampleOpen_memory() {
	s, err := storageguest.Open("memory://example",
		storageguest.WithSessionOptions(session.WithPollInterval(10*time.Millisecond)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.SetContext(ctx, "greeting", "hello"); err != nil {
		log.Fatal(err)
	}
	data, err := s.GetContext(ctx, "greeting")
	if err != nil {
		log.Fatal(err)
	}

	var greeting string
	if err := json.Unmarshal(data, &greeting); err != nil {
		log.Fatal(err)
	}
	fmt.Println(greeting)
	// Output: hello
}
