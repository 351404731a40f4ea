// Package eventloop is a small cooperative event loop: it polls a set of
// descriptors and runs their readiness callbacks on the goroutine that
// drives the loop. It never starts goroutines of its own.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/gwayland/internal/logger"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

var (
	ErrBadDescriptor = errors.New("eventloop: bad descriptor")
	ErrUnknownToken  = errors.New("eventloop: unknown watch token")
	ErrClosed        = errors.New("eventloop: loop closed")
)

// Token identifies a watch. The zero Token is never handed out.
type Token uint64

// WatchError wraps the error a readiness callback returned.
type WatchError struct {
	Token Token
	Fd    int
	Err   error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("eventloop: watch %d (fd %d): %v", e.Token, e.Fd, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

type watch struct {
	token      Token
	fd         int
	onReadable func() error
}

// Loop multiplexes readiness of the watched descriptors.
type Loop struct {
	mu      sync.Mutex
	watches []*watch
	next    Token
	quit    bool
	closed  bool

	// self-pipe used by Quit and context cancellation to interrupt poll
	wakeR int
	wakeW int
}

// New creates a loop with its wake-up pipe.
func New() (*Loop, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("eventloop: create wake pipe: %w", err)
	}
	return &Loop{wakeR: p[0], wakeW: p[1]}, nil
}

var (
	defaultOnce sync.Once
	defaultLoop *Loop
	defaultErr  error
)

// Default returns the process default loop, creating it on first use.
func Default() (*Loop, error) {
	defaultOnce.Do(func() {
		defaultLoop, defaultErr = New()
	})
	return defaultLoop, defaultErr
}

// Watch calls onReadable from the loop each time fd polls readable, or
// reports hang-up or error. Callbacks run in watch order.
func (l *Loop) Watch(fd int, onReadable func() error) (Token, error) {
	if fd < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}
	if onReadable == nil {
		return 0, errors.New("eventloop: nil callback")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}

	l.next++
	w := &watch{token: l.next, fd: fd, onReadable: onReadable}
	l.watches = append(l.watches, w)
	l.wakeLocked()
	return w.token, nil
}

// Unwatch removes a watch. The callback is not called again, even when its
// descriptor was already reported readable in the current iteration.
func (l *Loop) Unwatch(t Token) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	for i, w := range l.watches {
		if w.token == t {
			l.watches = append(l.watches[:i], l.watches[i+1:]...)
			l.wakeLocked()
			return nil
		}
	}
	return ErrUnknownToken
}

// Len returns the number of active watches.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watches)
}

// Iterate polls once and runs the callbacks of ready descriptors. A
// negative timeout blocks until something is ready or the loop is woken.
// It returns how many callbacks ran; the first callback error stops the
// iteration and is returned as a *WatchError.
func (l *Loop) Iterate(timeout time.Duration) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrClosed
	}
	snapshot := append([]*watch(nil), l.watches...)
	l.mu.Unlock()

	fds := make([]unix.PollFd, 0, len(snapshot)+1)
	fds = append(fds, unix.PollFd{Fd: int32(l.wakeR), Events: unix.POLLIN})
	for _, w := range snapshot {
		fds = append(fds, unix.PollFd{Fd: int32(w.fd), Events: unix.POLLIN})
	}

	for {
		_, err := unix.Poll(fds, pollTimeout(timeout))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("eventloop: poll: %w", err)
		}
		break
	}

	if fds[0].Revents != 0 {
		l.drainWake()
	}

	ran := 0
	for i, w := range snapshot {
		revents := fds[i+1].Revents
		if revents == 0 || !l.active(w.token) {
			continue
		}
		if revents&unix.POLLNVAL != 0 {
			_ = l.Unwatch(w.token)
			return ran, &WatchError{Token: w.token, Fd: w.fd, Err: ErrBadDescriptor}
		}

		ran++
		if err := w.onReadable(); err != nil {
			return ran, &WatchError{Token: w.token, Fd: w.fd, Err: err}
		}
	}
	return ran, nil
}

// Run iterates until Quit is called, ctx ends, or a callback fails. It
// returns nil after Quit and ctx.Err() when the context ends.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.quit = false
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, l.wake)
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.quitting() {
			return nil
		}
		if _, err := l.Iterate(-1); err != nil {
			return err
		}
	}
}

// Quit makes Run return after the current iteration.
func (l *Loop) Quit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quit = true
	l.wakeLocked()
}

// Close releases the wake-up pipe. Watched descriptors are not closed.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.watches = nil

	return multierr.Combine(unix.Close(l.wakeR), unix.Close(l.wakeW))
}

func (l *Loop) active(t Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.watches {
		if w.token == t {
			return true
		}
	}
	return false
}

func (l *Loop) quitting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.quit
}

func (l *Loop) wake() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wakeLocked()
}

func (l *Loop) wakeLocked() {
	if l.closed {
		return
	}
	// a full pipe already guarantees a wake-up
	if _, err := unix.Write(l.wakeW, []byte{1}); err != nil && err != unix.EAGAIN {
		logger.Debug("eventloop: wake failed", "err", err)
	}
}

func (l *Loop) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(l.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func pollTimeout(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	case d < time.Millisecond:
		return 1
	default:
		return int(d / time.Millisecond)
	}
}
