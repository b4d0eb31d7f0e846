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

package conc

import (
	"fmt"
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/pkg/log"
)

type poolOption struct {
	name           string
	nonBlocking    bool
	concealPanic   bool
	expiryDuration time.Duration
}

// PoolOption 配置 NewPool 创建的协程池。
type PoolOption func(opt *poolOption)

func defaultPoolOption() *poolOption {
	return &poolOption{name: "default"}
}

// WithName 设置协程池名称，用于日志。
func WithName(name string) PoolOption {
	return func(opt *poolOption) {
		opt.name = name
	}
}

// WithNonBlocking 为 true 时池满立即返回 ants.ErrPoolOverload，而不是等待空闲 worker。
func WithNonBlocking(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.nonBlocking = v
	}
}

// WithConcealPanic 为 true 时任务 panic 只记录日志并以 ErrTaskPanicked 结束 Future。
func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

// WithExpiryDuration 设置空闲 worker 的回收周期，d <= 0 时使用 ants 的默认值。
func WithExpiryDuration(d time.Duration) PoolOption {
	return func(opt *poolOption) {
		opt.expiryDuration = d
	}
}

func (opt *poolOption) antsOptions() []ants.Option {
	result := []ants.Option{
		ants.WithNonblocking(opt.nonBlocking),
		ants.WithLogger(antsLogger{pool: opt.name}),
	}
	if opt.expiryDuration > 0 {
		result = append(result, ants.WithExpiryDuration(opt.expiryDuration))
	}
	return result
}

// antsLogger 把 ants 内部日志转到全局 Logger。
type antsLogger struct {
	pool string
}

func (l antsLogger) Printf(format string, args ...any) {
	log.With(log.FieldComponent("conc"), zap.String("pool", l.pool)).Warn(fmt.Sprintf(format, args...))
}
