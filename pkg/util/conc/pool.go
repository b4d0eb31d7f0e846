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
	"time"

	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/pkg/log"
)

// ErrTaskPanicked 表示任务在执行中 panic。
var ErrTaskPanicked = errors.New("conc: task panicked")

// Future 表示一个异步任务的结果。
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan struct{})}
}

// Inner 返回任务完成时关闭的通道。
func (future *Future[T]) Inner() <-chan struct{} {
	return future.ch
}

// Await 阻塞直到任务完成，并返回结果。
func (future *Future[T]) Await() (T, error) {
	<-future.ch
	return future.value, future.err
}

// Err 阻塞直到任务完成，并返回错误。
func (future *Future[T]) Err() error {
	<-future.ch
	return future.err
}

// Go 在新的 goroutine 中执行 fn，并返回对应的 Future。
func Go[T any](fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	go func() {
		defer close(future.ch)
		future.value, future.err = fn()
	}()
	return future
}

// Pool 是基于 ants 的协程池。
type Pool[T any] struct {
	inner  *ants.Pool
	opt    *poolOption
	panics atomic.Int64
}

// NewPool 创建容量为 cap 的协程池，cap <= 0 表示不限容量。
func NewPool[T any](cap int, opts ...PoolOption) (*Pool[T], error) {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	if cap <= 0 {
		cap = -1
	}
	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ants pool")
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}, nil
}

// Submit 提交一个任务，提交失败时返回的 Future 立即完成并携带错误。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future, _ := pool.TrySubmit(method)
	return future
}

// TrySubmit 与 Submit 相同，但同时同步返回提交错误，
// 例如非阻塞模式下池已满时返回 ants.ErrPoolOverload。
func (pool *Pool[T]) TrySubmit(method func() (T, error)) (*Future[T], error) {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		defer pool.recoverTask(future)
		future.value, future.err = method()
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}
	return future, err
}

// recoverTask 把任务中的 panic 记为 Future 的错误。未开启 WithConcealPanic 时继续向上 panic。
func (pool *Pool[T]) recoverTask(future *Future[T]) {
	r := recover()
	if r == nil {
		return
	}
	pool.panics.Inc()
	log.Error("conc pool task panicked",
		zap.String("pool", pool.opt.name), zap.Any("panic", r), zap.Stack("stack"))
	future.err = errors.Wrapf(ErrTaskPanicked, "%v", r)
	if !pool.opt.concealPanic {
		panic(r)
	}
}

// Panics 返回 panic 过的任务数。
func (pool *Pool[T]) Panics() int64 {
	return pool.panics.Load()
}

func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release 释放协程池，不等待正在执行的任务。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

// ReleaseTimeout 释放协程池，并最多等待 d 让正在执行的任务退出。
func (pool *Pool[T]) ReleaseTimeout(d time.Duration) error {
	return pool.inner.ReleaseTimeout(d)
}
