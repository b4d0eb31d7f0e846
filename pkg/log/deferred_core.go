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
	"sync"

	"go.uber.org/zap/zapcore"
)

// deferredCore 把字段的编码推迟到第一次写日志或再次派生时。
// 组件在构造时绑定字段，多数 Debug 日志在线上并不会真正输出。
type deferredCore struct {
	base  zapcore.Core
	bound func() zapcore.Core
}

var _ zapcore.Core = (*deferredCore)(nil)

func newDeferredCore(base zapcore.Core, fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return base
	}
	return &deferredCore{
		base: base,
		bound: sync.OnceValue(func() zapcore.Core {
			return base.With(fields)
		}),
	}
}

func (d *deferredCore) Enabled(level zapcore.Level) bool {
	return d.base.Enabled(level)
}

func (d *deferredCore) With(fields []zapcore.Field) zapcore.Core {
	return d.bound().With(fields)
}

func (d *deferredCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !d.base.Enabled(entry.Level) {
		return ce
	}
	return d.bound().Check(entry, ce)
}

func (d *deferredCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return d.bound().Write(entry, fields)
}

func (d *deferredCore) Sync() error {
	return d.base.Sync()
}
