package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameSession   = "session"
	FieldNameLobby     = "lobby"
	FieldNameGame      = "game"
	FieldNameCommand   = "command"
	FieldNameAddress   = "address"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldSession 返回一个包含会话 ID 的 zap 字段。
func FieldSession(id string) zap.Field {
	return zap.String(FieldNameSession, id)
}

// FieldLobby 返回一个包含大厅 ID 的 zap 字段。
func FieldLobby(id string) zap.Field {
	return zap.String(FieldNameLobby, id)
}

// FieldGame 返回一个包含游戏 ID 的 zap 字段。
func FieldGame(id string) zap.Field {
	return zap.String(FieldNameGame, id)
}

func FieldCommand(name string) zap.Field {
	return zap.String(FieldNameCommand, name)
}

func FieldAddress(addr string) zap.Field {
	return zap.String(FieldNameAddress, addr)
}
