package overseer

import (
	"golang.org/x/sys/unix"
)

// defaultWakeupMessage is written to the self-pipe by the signal relay on
// every delivered signal. stopMessage is the one reserved payload the main
// loop treats specially: it means "exit after this iteration".
const (
	defaultWakeupMessage = "."
	stopMessage          = "STOP"
)

// selfPipe is a pair of raw, non-blocking, close-on-exec file descriptors
// used purely as a wakeup channel from the signal relay into the main
// loop's poll. Unlike an *os.File pipe, raw fds give us real EAGAIN/EINTR
// semantics on write instead of the Go runtime silently blocking the
// calling goroutine until writable.
type selfPipe struct {
	r, w int
}

func newSelfPipe() (*selfPipe, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, err
		}
		unix.CloseOnExec(fd)
	}
	return &selfPipe{r: fds[0], w: fds[1]}, nil
}

// wakeup writes msg to the pipe's write end. It never blocks: a full pipe
// (EAGAIN) is dropped silently because the reader is already guaranteed to
// wake on the bytes already buffered; EINTR is retried.
func (p *selfPipe) wakeup(msg string) {
	b := []byte(msg)
	for len(b) > 0 {
		n, err := unix.Write(p.w, b)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// EAGAIN (pipe full) or any other error: give up, the reader
			// will still wake from whatever is already queued.
			return
		}
		b = b[n:]
	}
}

// drain reads and returns every byte currently available on the read end,
// without blocking. It returns "" if nothing was available.
func (p *selfPipe) drain() string {
	var out []byte
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil || n <= 0 {
			break
		}
	}
	return string(out)
}

// pollRead blocks until the read end is readable or timeoutMillis elapses,
// returning true if data is ready.
func (p *selfPipe) pollRead(timeoutMillis int) bool {
	fds := []unix.PollFd{{Fd: int32(p.r), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false
		}
		return n > 0
	}
}

func (p *selfPipe) close() {
	unix.Close(p.r)
	unix.Close(p.w)
}
