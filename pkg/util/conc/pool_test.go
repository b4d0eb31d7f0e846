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
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPool(t *testing.T) {
	pool, err := NewPool[int](2)
	require.NoError(t, err)
	defer pool.Release()
	assert.Equal(t, 2, pool.Cap())

	futures := make([]*Future[int], 0, 8)
	for i := range 8 {
		futures = append(futures, pool.Submit(func() (int, error) { return i * i, nil }))
	}
	for i, future := range futures {
		value, err := future.Await()
		assert.NoError(t, err)
		assert.Equal(t, i*i, value)
	}
}

func TestPoolUnlimited(t *testing.T) {
	pool, err := NewPool[struct{}](0)
	require.NoError(t, err)
	defer pool.Release()
	assert.Equal(t, -1, pool.Cap())
}

func TestPoolNonBlockingOverload(t *testing.T) {
	pool, err := NewPool[struct{}](1, WithNonBlocking(true))
	require.NoError(t, err)
	defer pool.Release()

	release := make(chan struct{})
	first, err := pool.TrySubmit(func() (struct{}, error) {
		<-release
		return struct{}{}, nil
	})
	require.NoError(t, err)

	rejected, err := pool.TrySubmit(func() (struct{}, error) { return struct{}{}, nil })
	assert.ErrorIs(t, err, ants.ErrPoolOverload)
	assert.ErrorIs(t, rejected.Err(), ants.ErrPoolOverload)

	close(release)
	assert.NoError(t, first.Err())
}

func TestPoolConcealsPanic(t *testing.T) {
	pool, err := NewPool[string](1, WithName("test"), WithConcealPanic(true))
	require.NoError(t, err)
	defer pool.Release()

	_, err = pool.Submit(func() (string, error) { panic("boom") }).Await()
	assert.True(t, errors.Is(err, ErrTaskPanicked))
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(1), pool.Panics())

	value, err := pool.Submit(func() (string, error) { return "ok", nil }).Await()
	assert.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestPoolExpiry(t *testing.T) {
	pool, err := NewPool[struct{}](4, WithExpiryDuration(10*time.Millisecond))
	require.NoError(t, err)
	defer pool.Release()

	var ran atomic.Int32
	for range 4 {
		pool.Submit(func() (struct{}, error) {
			ran.Inc()
			return struct{}{}, nil
		})
	}
	assert.Eventually(t, func() bool { return ran.Load() == 4 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return pool.Free() == pool.Cap() && pool.Running() == 0 }, time.Second, 10*time.Millisecond)
}

func TestGo(t *testing.T) {
	errBoom := errors.New("boom")
	value, err := Go(func() (string, error) { return "done", nil }).Await()
	assert.NoError(t, err)
	assert.Equal(t, "done", value)

	assert.ErrorIs(t, Go(func() (int, error) { return 0, errBoom }).Err(), errBoom)
}
