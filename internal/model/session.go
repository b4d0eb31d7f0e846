package model

import "net"

// Handle 是会话对应的传输层连接句柄。
//
// 会话打开后通过 Attach 挂在连接上，后续命令通过 Attachment 找回会话。
type Handle interface {
	RemoteAddr() net.Addr
	Attach(v any)
	Attachment() any
}

// Session 对应一个存活的客户端连接。
//
// Session 以指针形式保存在仓库中并就地修改，唯一允许的修改是一次性的游戏绑定。
type Session struct {
	ID      string
	Address string
	Game    GameBinding
	Handle  Handle
}
