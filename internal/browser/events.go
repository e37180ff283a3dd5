// File: internal/browser/events.go
package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// tabEvent is one entry in a tab's dispatch queue. closed marks the final
// event; no navigation is delivered after it.
type tabEvent struct {
	url          string
	sameDocument bool
	closed       bool
}

// eventQueue hands one tab's events to the hooks in arrival order. CDP
// listeners must never block, so push only appends; a single drain goroutine
// per tab runs the hooks. Two navigations pushed in order are always
// delivered in that order, which is what keeps the coordinator's sequence
// numbers aligned with what the browser actually did.
type eventQueue struct {
	mu      sync.Mutex
	pending []tabEvent

	wake chan struct{}
	done chan struct{}
	stop sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push appends an event without blocking.
func (q *eventQueue) push(ev tabEvent) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain delivers queued events one at a time until the closed event arrives
// or shutdown stops the queue.
func (q *eventQueue) drain(tabID string, hooks NavigationHooks) {
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			ev := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()

			if ev.closed {
				hooks.OnTabClosed(tabID)
				return
			}
			hooks.OnNavigated(tabID, ev.url, ev.sameDocument)
		}
	}
}

// shutdown abandons pending events. Used when the manager closes without a
// per-tab destroy event.
func (q *eventQueue) shutdown() {
	q.stop.Do(func() { close(q.done) })
}

// listenTargets tracks page-tab creation and destruction on the browser
// connection.
func (m *Manager) listenTargets() {
	chromedp.ListenBrowser(m.browserCtx, func(ev any) {
		switch e := ev.(type) {
		case *target.EventTargetCreated:
			if e.TargetInfo.Type == "page" {
				// Attaching runs CDP commands; never do that inside a listener.
				go m.attach(e.TargetInfo.TargetID, e.TargetInfo.URL)
			}
		case *target.EventTargetDestroyed:
			go m.detach(string(e.TargetID))
		}
	})
}

// listenNavigation forwards committed top-frame navigations for one tab onto
// its queue. Full navigations arrive as FrameNavigated; single-page apps
// rewriting history arrive as NavigatedWithinDocument. Subframe traffic is
// dropped.
func (m *Manager) listenNavigation(tabCtx context.Context, queue *eventQueue) {
	var rootFrame string
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID != "" {
				return
			}
			rootFrame = string(e.Frame.ID)
			if queue != nil {
				queue.push(tabEvent{url: e.Frame.URL})
			}
		case *page.EventNavigatedWithinDocument:
			if rootFrame != "" && string(e.FrameID) != rootFrame {
				return
			}
			if queue != nil {
				queue.push(tabEvent{url: e.URL, sameDocument: true})
			}
		}
	})
}
