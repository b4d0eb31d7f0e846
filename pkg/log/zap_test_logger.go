// Copyright 2021 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// 说明：本文件中的部分代码基于 go.uber.org/zap 中的实现，遵循 MIT 许可。
//
// https://github.com/uber-go/zap/blob/0c427222737cbbbdc53ebdf852c511f7aca0818b/zaptest/logger.go
package log

import (
	"bytes"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// TestingT 是 UseTestLogger 需要的测试接口，*testing.T 满足它。
type TestingT interface {
	zaptest.TestingT
	Cleanup(func())
}

// testingWriter 把日志逐行交给 t.Logf。
// 测试结束后 writer 被摘除，仍在运行的协程写出的日志会被丢弃。
type testingWriter struct {
	t        zaptest.TestingT
	failTest bool
	detached *atomic.Bool
}

func newTestingWriter(t zaptest.TestingT) testingWriter {
	w := testingWriter{t: t, detached: atomic.NewBool(false)}
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(w.detach)
	}
	return w
}

// failing 返回共享摘除状态、且每次写入都会把测试标记为失败的副本。
func (w testingWriter) failing() testingWriter {
	w.failTest = true
	return w
}

func (w testingWriter) detach() {
	w.detached.Store(true)
}

func (w testingWriter) Write(p []byte) (int, error) {
	if w.detached.Load() {
		return len(p), nil
	}
	// t.Logf 自带换行。
	w.t.Logf("%s", bytes.TrimRight(p, "\n"))
	if w.failTest {
		w.t.Fail()
	}
	return len(p), nil
}

func (w testingWriter) Sync() error {
	return nil
}

// UseTestLogger 把全局 Logger 换成写入 t 的 Logger，t 结束时恢复原来的 Logger。
// 之后通过 With、Ctx 或 Binder.Bind 创建的 Logger 都输出到 t。
func UseTestLogger(t TestingT, level string) error {
	lg, props, err := InitTestLogger(t, &Config{Level: level, Format: FormatText})
	if err != nil {
		return err
	}

	prevL, prevP := L(), _globalP.Load().(*ZapProperties)
	prevLevels := leveledLoggers()
	ReplaceGlobals(lg.WithOptions(zap.AddCallerSkip(1)), props)
	replaceLeveledLoggers(lg)

	t.Cleanup(func() {
		ReplaceGlobals(prevL, prevP)
		for lv, l := range prevLevels {
			_globalLevelLogger.Store(lv, l)
		}
	})
	return nil
}

func leveledLoggers() map[zapcore.Level]*zap.Logger {
	levels := make(map[zapcore.Level]*zap.Logger)
	_globalLevelLogger.Range(func(key, value any) bool {
		levels[key.(zapcore.Level)] = value.(*zap.Logger)
		return true
	})
	return levels
}
