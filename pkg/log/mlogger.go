// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MLogger 是组件持有的 Logger。
//
// 在 zap.Logger 之上提供按会话、大厅、游戏派生子 Logger 的快捷方法，
// 以及按分组共享额度的限流日志。MLogger 创建后不再修改，派生方法总是返回新实例。
type MLogger struct {
	*zap.Logger
	limiter RateLimiter
}

func (l *MLogger) derive(fields []zap.Field) *MLogger {
	if len(fields) == 0 {
		return l
	}
	return &MLogger{
		Logger: l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return newDeferredCore(core, fields)
		})),
		limiter: l.limiter,
	}
}

// With 返回附加了 fields 的子 Logger，限流分组随之继承。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	return l.derive(fields)
}

// ForSession 返回携带会话 ID 的子 Logger。
func (l *MLogger) ForSession(id string) *MLogger {
	return l.derive([]zap.Field{FieldSession(id)})
}

// ForLobby 返回携带大厅 ID 的子 Logger。
func (l *MLogger) ForLobby(id string) *MLogger {
	return l.derive([]zap.Field{FieldLobby(id)})
}

// ForGame 返回携带游戏 ID 的子 Logger，id 为空时原样返回。
func (l *MLogger) ForGame(id string) *MLogger {
	if id == "" {
		return l
	}
	return l.derive([]zap.Field{FieldGame(id)})
}

// WithRateGroup 返回一个使用分组 group 令牌桶的 Logger。
// 同名分组共享同一个令牌桶，后一次调用的参数会覆盖之前的设置。
func (l *MLogger) WithRateGroup(group string, creditPerSecond, maxBalance float64) *MLogger {
	limiter := utils.NewRateLimiter(creditPerSecond, maxBalance)
	if shared, loaded := _namedRateLimiters.LoadOrStore(group, limiter); loaded {
		limiter = shared.(*utils.ReconfigurableRateLimiter)
		limiter.Update(creditPerSecond, maxBalance)
	}
	return &MLogger{Logger: l.Logger, limiter: limiter}
}

// rated 在额度足够时按 level 输出日志，返回是否输出。
func (l *MLogger) rated(level zapcore.Level, cost float64, msg string, fields []zap.Field) bool {
	limiter := l.limiter
	if limiter == nil {
		limiter = R()
	}
	if !limiter.CheckCredit(cost) {
		return false
	}
	if ce := l.WithOptions(zap.AddCallerSkip(2)).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	return true
}

// RatedDebug 在额度足够时输出 Debug 日志。
func (l *MLogger) RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.DebugLevel, cost, msg, fields)
}

// RatedInfo 在额度足够时输出 Info 日志。
func (l *MLogger) RatedInfo(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.InfoLevel, cost, msg, fields)
}

// RatedWarn 在额度足够时输出 Warn 日志。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.WarnLevel, cost, msg, fields)
}
