package eventbus

import "testing"

func TestPublishDoesNotBlockWithoutObservers(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	for i := 0; i < 10; i++ {
		h.Publish(KindPortAdded, map[string]string{"name": "eth0"})
	}
}

func TestPublishDropsWhenChannelFull(t *testing.T) {
	h := NewHub() // Run is never started, so the broadcast channel never drains
	for i := 0; i < cap(h.broadcast); i++ {
		h.Publish(KindIfaceChanged, i)
	}
	// One more publish must not block even though the channel is full.
	done := make(chan struct{})
	go func() {
		h.Publish(KindIfaceChanged, "overflow")
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
}
