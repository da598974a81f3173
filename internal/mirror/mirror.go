// Package mirror copies cell values into a Redis hash and announces each
// change on a pub/sub channel, so dashboards and props outside the process
// can follow the console. It also accepts operator commands pushed onto a
// Redis list.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweeney/spacebus/internal/state"
)

// Backend is the subset of Redis the mirror needs.
type Backend interface {
	// Write stores fields in the hash at key and publishes each changed
	// name on channel, in one round trip.
	Write(ctx context.Context, key, channel string, fields map[string]string, changed []string) error
	// Pop blocks up to timeout for the next entry of list. It returns
	// ErrEmpty when nothing arrived.
	Pop(ctx context.Context, list string, timeout time.Duration) (string, error)
	Close() error
}

// ErrEmpty is returned by Backend.Pop when the wait timed out.
var ErrEmpty = errors.New("mirror: no entry")

// Options configures a Mirror.
type Options struct {
	Key     string
	Channel string
	// Commands is the list polled by ListenCommands. Defaults to Key + ":commands".
	Commands string
	// Buffer is the number of changes queued before new ones are dropped.
	Buffer int
	Logger *log.Logger
}

// Mirror is a state.Listener that forwards changes to a Backend from its own
// goroutine, so a slow Redis never stalls the simulation loop.
type Mirror struct {
	backend Backend
	opts    Options
	logger  *log.Logger

	queue chan state.Change
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	dropped int
	failed  int
}

// New creates a Mirror and starts its writer.
func New(backend Backend, opts Options) *Mirror {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Commands == "" {
		opts.Commands = opts.Key + ":commands"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	m := &Mirror{
		backend: backend,
		opts:    opts,
		logger:  opts.Logger,
		queue:   make(chan state.Change, opts.Buffer),
		done:    make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// StateChanged queues a change. It never blocks.
func (m *Mirror) StateChanged(c state.Change) {
	select {
	case m.queue <- c:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
}

// Seed writes a full snapshot of the store, typically at startup.
func (m *Mirror) Seed(ctx context.Context, values map[string]state.Value) error {
	fields := make(map[string]string, len(values))
	names := make([]string, 0, len(values))
	for name, v := range values {
		fields[name] = v.String()
		names = append(names, name)
	}
	if err := m.backend.Write(ctx, m.opts.Key, m.opts.Channel, fields, names); err != nil {
		return fmt.Errorf("seed %s: %w", m.opts.Key, err)
	}
	return nil
}

// Stats returns the number of dropped and failed writes.
func (m *Mirror) Stats() (dropped, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped, m.failed
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for {
		select {
		case c := <-m.queue:
			m.flush(c)
		case <-m.done:
			for {
				select {
				case c := <-m.queue:
					m.flush(c)
				default:
					return
				}
			}
		}
	}
}

// flush writes c along with anything else already queued.
func (m *Mirror) flush(first state.Change) {
	fields := map[string]string{first.Name: first.New.String()}
	changed := []string{first.Name}
	for more := true; more; {
		select {
		case c := <-m.queue:
			if _, seen := fields[c.Name]; !seen {
				changed = append(changed, c.Name)
			}
			fields[c.Name] = c.New.String()
		default:
			more = false
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.backend.Write(ctx, m.opts.Key, m.opts.Channel, fields, changed); err != nil {
		m.mu.Lock()
		m.failed++
		m.mu.Unlock()
		m.logger.Printf("mirror: Warning: failed to update %s: %v", m.opts.Key, err)
	}
}

// ListenCommands pops entries from the command list until ctx is done and
// hands each one to fn as a name and an optional argument ("goto dock").
func (m *Mirror) ListenCommands(ctx context.Context, fn func(name, arg string)) {
	m.logger.Printf("mirror: listening for commands on %s", m.opts.Commands)
	for ctx.Err() == nil {
		entry, err := m.backend.Pop(ctx, m.opts.Commands, time.Second)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Printf("mirror: pop %s: %v", m.opts.Commands, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		name, arg, _ := strings.Cut(strings.TrimSpace(entry), " ")
		if name == "" {
			continue
		}
		fn(name, strings.TrimSpace(arg))
	}
}

// Close drains the queue and closes the backend.
func (m *Mirror) Close() error {
	close(m.done)
	m.wg.Wait()
	return m.backend.Close()
}

// RedisBackend implements Backend on a go-redis client.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to addr and checks the connection.
func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBackend{client: client}, nil
}

// Write implements Backend.
func (r *RedisBackend) Write(ctx context.Context, key, channel string, fields map[string]string, changed []string) error {
	values := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		values = append(values, k, v)
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, values...)
	if channel != "" {
		for _, name := range changed {
			pipe.Publish(ctx, channel, name)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Pop implements Backend.
func (r *RedisBackend) Pop(ctx context.Context, list string, timeout time.Duration) (string, error) {
	res, err := r.client.BRPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	// BRPOP replies with the list name then the value.
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BRPOP reply %v", res)
	}
	return res[1], nil
}

// Close implements Backend.
func (r *RedisBackend) Close() error { return r.client.Close() }
