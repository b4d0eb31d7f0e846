package router

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/foxssake/nohub/pkg/util/merr"
)

// Handler 是业务层处理一条命令的函数签名。
//
// 说明：
//   - ex 封装了当前连接与收到的命令，并提供回复、流式回复等辅助方法；
//   - 返回的错误由上层统一转换为错误回复，Handler 内部无需自行发送失败信息。
type Handler func(ctx context.Context, ex *Exchange) error

// Router 维护命令名到 Handler 的映射。
//
// 典型调用链（服务器侧）：
//  1. Codec 从连接中解码出 Command；
//  2. 上层构造 Exchange 并调用 Router.Handle；
//  3. Router 根据命令名找到 Handler 并执行。
type Router interface {
	// Register 为命令名注册一个 Handler，同名重复注册返回错误。
	Register(name string, h Handler) error

	// Handle 分发一条命令，未注册的命令返回 InvalidCommandError。
	Handle(ctx context.Context, ex *Exchange) error

	// Commands 返回已注册的命令名，按字典序排列。
	Commands() []string
}

type defaultRouter struct {
	routes map[string]Handler
}

// 编译期断言：确保 defaultRouter 实现了 Router 接口。
var _ Router = (*defaultRouter)(nil)

// New 创建一个空的 Router。
func New() Router {
	return &defaultRouter{
		routes: make(map[string]Handler),
	}
}

// Register 实现 Router.Register。
func (r *defaultRouter) Register(name string, h Handler) error {
	if name == "" {
		return errors.New("router: command name is empty")
	}
	if h == nil {
		return errors.Newf("router: handler is nil for %s", name)
	}
	if _, exists := r.routes[name]; exists {
		return errors.Newf("router: %s already registered", name)
	}
	r.routes[name] = h
	return nil
}

// Handle 实现 Router.Handle。
func (r *defaultRouter) Handle(ctx context.Context, ex *Exchange) error {
	if ex == nil || ex.Command == nil {
		return errors.New("router: exchange is nil")
	}
	h, ok := r.routes[ex.Command.Name]
	if !ok {
		return merr.WrapErrInvalidCommand("Unknown command: " + ex.Command.Name)
	}
	return h(ctx, ex)
}

// Commands 实现 Router.Commands。
func (r *defaultRouter) Commands() []string {
	names := lo.Keys(r.routes)
	slices.Sort(names)
	return names
}
