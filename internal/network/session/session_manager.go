package session

import "github.com/cockroachdb/errors"

var (
	// ErrLimitReached 表示在线连接数已达上限。
	ErrLimitReached = errors.New("session: connection limit reached")
	// ErrManagerClosed 表示管理器已关闭，不再接收新的会话。
	ErrManagerClosed = errors.New("session: manager closed")
)

// SessionManager 维护接入层当前在线的连接。
//
// 接入器在连接建立后注册会话、在读循环结束后注销；停止时通过 CloseAll
// 关闭全部会话，此后到达的连接一律被拒绝。
type SessionManager interface {
	// Register 登记会话。ID 重复、达到上限或管理器已关闭时返回错误。
	Register(sess Session) error

	Get(id uint64) (Session, bool)

	// Unregister 移除会话索引，不关闭会话本身。
	Unregister(id uint64) bool

	// Full 判断是否已达到连接上限，上限为 0 时永远返回 false。
	Full() bool

	Count() int

	// CloseAll 关闭全部会话并拒绝之后的注册，返回被关闭的会话数。
	CloseAll() int
}
