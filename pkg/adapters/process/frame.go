package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/aretw0/storageguest/internal/logging"
	"github.com/aretw0/storageguest/pkg/domain"
)

// Scheme prefixes the sources served by a Frame: exec:<name or command> [args...].
const Scheme = "exec:"

// maxLine bounds one reply line read from the child.
const maxLine = 1 << 20

// ErrNotRegistered is logged when a source names a command outside the allow-list.
var ErrNotRegistered = errors.New("command not registered")

// Frame implements ports.Frame by spawning a child process that speaks
// newline-delimited JSON on its stdin and stdout. The document is loaded
// once the process has started. It follows a strict allow-list: only
// registered commands run unless inline execution is enabled.
type Frame struct {
	registry    map[string]CommandConfig
	allowInline bool
	baseDir     string
	stderr      io.Writer
	logger      *slog.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	source   string
	epoch    uint64
	handlers map[uint64]func(domain.Envelope)
	nextSub  uint64
}

// Option configures the Frame.
type Option func(*Frame)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(commands map[string]CommandConfig) Option {
	return func(f *Frame) {
		for name, c := range commands {
			f.Register(name, c)
		}
	}
}

// WithInlineExecution lets sources name arbitrary commands (Dangerous).
func WithInlineExecution(allow bool) Option {
	return func(f *Frame) {
		f.allowInline = allow
	}
}

// WithBaseDir sets the working directory of the child.
func WithBaseDir(dir string) Option {
	return func(f *Frame) {
		f.baseDir = dir
	}
}

// WithStderr forwards the child's stderr to w.
func WithStderr(w io.Writer) Option {
	return func(f *Frame) {
		f.stderr = w
	}
}

// WithLogger configures a logger for the Frame.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frame) {
		f.logger = logger
	}
}

// NewFrame creates an unloaded Frame.
func NewFrame(opts ...Option) *Frame {
	f := &Frame{
		registry: make(map[string]CommandConfig),
		logger:   logging.NewNop(),
		handlers: make(map[uint64]func(domain.Envelope)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a trusted command to the allow-list under name.
func (f *Frame) Register(name string, c CommandConfig) {
	c.Name = name
	f.registry[name] = c
}

// Resolve turns a source into the command to run.
func (f *Frame) Resolve(source string) (*exec.Cmd, error) {
	if !strings.HasPrefix(source, Scheme) {
		return nil, fmt.Errorf("source %q: expected %s prefix", source, Scheme)
	}
	fields := strings.Fields(strings.TrimPrefix(source, Scheme))
	if len(fields) == 0 {
		return nil, fmt.Errorf("source %q: missing command", source)
	}

	var cmd *exec.Cmd
	if c, ok := f.registry[fields[0]]; ok {
		args := append(append([]string(nil), c.Args...), fields[1:]...)
		cmd = exec.Command(c.Command, args...)
		env := cmd.Environ()
		for k, v := range c.Environment {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	} else if f.allowInline {
		cmd = exec.Command(fields[0], fields[1:]...)
	} else {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, fields[0])
	}

	cmd.Dir = f.baseDir
	cmd.Stderr = f.stderr
	return cmd, nil
}

// Load implements ports.Frame. A command that fails to start leaves the
// frame unloaded.
func (f *Frame) Load(source string, onLoad func()) {
	f.mu.Lock()
	epoch := f.reset(source)
	f.mu.Unlock()

	go func() {
		cmd, err := f.Resolve(source)
		if err != nil {
			f.logger.Warn("Refused to load process frame", "source", source, "err", err)
			return
		}
		stdin, err := cmd.StdinPipe()
		if err != nil {
			f.logger.Warn("Failed to load process frame", "source", source, "err", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			_ = stdin.Close()
			f.logger.Warn("Failed to load process frame", "source", source, "err", err)
			return
		}

		f.mu.Lock()
		if f.epoch != epoch {
			f.mu.Unlock()
			// Superseded before start: the pipes were never handed to a child.
			_ = stdin.Close()
			_ = stdout.Close()
			return
		}
		if err := cmd.Start(); err != nil {
			f.mu.Unlock()
			f.logger.Warn("Failed to start process frame", "source", source, "err", err)
			return
		}
		f.cmd = cmd
		f.stdin = stdin
		f.mu.Unlock()

		f.logger.Debug("Process frame loaded", "source", source, "pid", cmd.Process.Pid)
		go f.readLoop(epoch, cmd, stdout, domain.OriginOf(source))
		if onLoad != nil {
			onLoad()
		}
	}()
}

// Post implements ports.Frame.
func (f *Frame) Post(data []byte, targetOrigin string) error {
	f.mu.Lock()
	stdin := f.stdin
	if stdin == nil || domain.OriginOf(f.source) != targetOrigin {
		f.mu.Unlock()
		return domain.ErrNotDelivered
	}
	f.mu.Unlock()

	line := make([]byte, 0, len(data)+1)
	line = append(append(line, data...), '\n')

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if _, err := stdin.Write(line); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotDelivered, err)
	}
	return nil
}

// Subscribe implements ports.Frame.
func (f *Frame) Subscribe(handler func(domain.Envelope)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSub
	f.nextSub++
	f.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.handlers, id)
		})
	}
}

// Blank implements ports.Frame.
func (f *Frame) Blank() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset("about:blank")
}

// Unload implements ports.Frame.
func (f *Frame) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset("")
	return nil
}

// reset stops the running child. Caller holds f.mu.
func (f *Frame) reset(source string) uint64 {
	if f.cmd != nil {
		cmd, stdin := f.cmd, f.stdin
		f.cmd, f.stdin = nil, nil
		go func() {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
		}()
	}
	f.epoch++
	f.source = source
	return f.epoch
}

func (f *Frame) readLoop(epoch uint64, cmd *exec.Cmd, stdout io.Reader, origin string) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		data := append([]byte(nil), scanner.Bytes()...)
		if len(data) == 0 {
			continue
		}

		f.mu.Lock()
		if f.epoch != epoch {
			f.mu.Unlock()
			break
		}
		handlers := make([]func(domain.Envelope), 0, len(f.handlers))
		for _, h := range f.handlers {
			handlers = append(handlers, h)
		}
		f.mu.Unlock()

		for _, h := range handlers {
			h(domain.Envelope{Origin: origin, Data: data})
		}
	}

	err := cmd.Wait()
	f.logger.Debug("Process frame exited", "origin", origin, "err", err)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd == cmd {
		f.cmd, f.stdin = nil, nil
	}
}
