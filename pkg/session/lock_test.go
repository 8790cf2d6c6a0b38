package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		tid := fmt.Sprintf("thread-%d", i)
		_ = mgr.WithLock(ctx, tid, func(context.Context) error { return nil })
		_ = mgr.Delete(ctx, tid)
	}

	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
