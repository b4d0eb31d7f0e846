package connector

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/conc"
)

// Config 描述客户端连接的基础配置。
type Config struct {
	// DialTimeout 为单次拨号的超时时间。
	DialTimeout time.Duration
	// DialRetries 为拨号失败后的最大重试次数，0 表示不重试。
	DialRetries uint64
	// WriteTimeout 为单次写出的超时时间，0 表示不设置。
	WriteTimeout time.Duration
	// NotificationQueueSize 为服务器推送命令的缓冲大小，队列满时丢弃推送。
	NotificationQueueSize int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		DialTimeout:           5 * time.Second,
		DialRetries:           5,
		WriteTimeout:          5 * time.Second,
		NotificationQueueSize: 64,
	}
}

// Response 是一次请求的完整回复。
//
// 成功回复时 Kind 为 KindReply，Params 为回复参数；
// 流式回复时 Kind 为 KindStreamEnd，Stream 按顺序保存全部片段。
type Response struct {
	Kind   codec.Kind
	Params []string
	Stream []*codec.Command
}

// RemoteError 表示服务器返回的失败回复 `!xid ErrorName message`。
type RemoteError struct {
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Name + ": " + e.Message
}

type pendingExchange struct {
	chunks []*codec.Command
	done   chan *codec.Command
}

// Client 是基于 TCP 的行协议客户端。
//
// 请求通过交互 ID 与回复关联，服务器主动推送的命令投递到 Notifications。
type Client struct {
	log.Binder

	conn  net.Conn
	codec codec.Codec
	cfg   Config

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingExchange
	nextID  atomic.Uint64

	notifications chan *codec.Command
	done          chan struct{}
	closeOnce     sync.Once
	err           error
}

// Dial 连接到 addr，拨号失败时按指数退避重试 cfg.DialRetries 次。
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	if cfg.NotificationQueueSize <= 0 {
		cfg.NotificationQueueSize = DefaultConfig().NotificationQueueSize
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	var conn net.Conn
	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.DialRetries), ctx)
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		return err
	}, retry, func(err error, wait time.Duration) {
		log.Debug("dial failed, retrying", zap.String("addr", addr), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connector: dial %s", addr)
	}

	c := &Client{
		conn:          conn,
		codec:         codec.New(nil),
		cfg:           cfg,
		pending:       make(map[string]*pendingExchange),
		notifications: make(chan *codec.Command, cfg.NotificationQueueSize),
		done:          make(chan struct{}),
	}
	c.Bind("network", "connector", zap.String("addr", addr))

	_ = conc.Go(func() (struct{}, error) {
		c.readLoop()
		return struct{}{}, nil
	})
	return c, nil
}

// LocalAddr 返回本端地址。
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Notifications 返回服务器推送命令的通道，连接关闭后该通道被关闭。
func (c *Client) Notifications() <-chan *codec.Command {
	return c.notifications
}

// Done 在连接关闭后被关闭。
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 返回连接关闭的原因，正常关闭时为 nil。
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Send 发送一条不需要回复的命令。
func (c *Client) Send(cmd *codec.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.codec.Encode(c.conn, cmd); err != nil {
		return errors.Mark(err, network.ErrSessionClosed)
	}
	return nil
}

// Request 发送请求并等待完整回复。
//
// 失败回复以 *RemoteError 返回。
func (c *Client) Request(ctx context.Context, name string, params []string, kv ...codec.Pair) (*Response, error) {
	xid := strconv.FormatUint(c.nextID.Inc(), 10)
	cmd := codec.NewRequest(name, xid, params...)
	cmd.KV = kv

	pe := &pendingExchange{done: make(chan *codec.Command, 1)}
	c.mu.Lock()
	c.pending[xid] = pe
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, xid)
		c.mu.Unlock()
	}()

	if err := c.Send(cmd); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.Wrap(network.ErrSessionClosed, "connector: connection closed while waiting for reply")
	case last := <-pe.done:
		switch last.Kind {
		case codec.KindError:
			return nil, &RemoteError{Name: last.Param(0), Message: last.Param(1)}
		case codec.KindStreamEnd:
			return &Response{Kind: last.Kind, Stream: pe.chunks}, nil
		default:
			return &Response{Kind: last.Kind, Params: last.Params}, nil
		}
	}
}

// Close 关闭连接。
func (c *Client) Close() error {
	return c.close(nil)
}

func (c *Client) close(cause error) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		c.err = cause
		close(c.done)
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.notifications)

	r := bufio.NewReader(c.conn)
	for {
		cmd, err := c.codec.Decode(r)
		if err != nil {
			if errors.Is(err, codec.ErrMalformed) {
				c.Logger().Warn("skipping malformed line", zap.Error(err))
				continue
			}
			if errors.IsAny(err, io.EOF, net.ErrClosed) {
				err = nil
			}
			_ = c.close(err)
			return
		}

		if !cmd.Kind.IsReply() {
			select {
			case c.notifications <- cmd:
			default:
				c.Logger().Warn("notification queue full, dropping command", zap.Stringer("command", cmd))
			}
			continue
		}

		c.mu.Lock()
		pe, ok := c.pending[cmd.ExchangeID]
		if ok && cmd.Kind == codec.KindStream {
			pe.chunks = append(pe.chunks, cmd)
		}
		c.mu.Unlock()

		switch {
		case !ok:
			c.Logger().Debug("reply for unknown exchange", zap.String("xid", cmd.ExchangeID))
		case cmd.Kind != codec.KindStream:
			select {
			case pe.done <- cmd:
			default:
			}
		}
	}
}
