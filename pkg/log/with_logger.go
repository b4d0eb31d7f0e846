package log

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Binder 嵌入到组件中，保存组件自己的 Logger。未绑定时使用全局 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// Bind 为组件绑定携带模块名的 Logger。component 为空时省略组件字段，fields 追加在最后。
func (b *Binder) Bind(module, component string, fields ...zap.Field) *MLogger {
	bound := make([]zap.Field, 0, len(fields)+2)
	bound = append(bound, FieldModule(module))
	if component != "" {
		bound = append(bound, FieldComponent(component))
	}
	l := With(append(bound, fields...)...)
	b.logger.Store(l)
	return l
}

func (b *Binder) SetLogger(logger *MLogger) {
	b.logger.Store(logger)
}

// Logger 返回绑定的 Logger。
func (b *Binder) Logger() *MLogger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return With()
}
