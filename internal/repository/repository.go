// Package repository 提供按键存储实体的通用内存仓库。
//
// Repository 不做任何同步，调用方（hub 的事件循环）负责串行化访问。
package repository

import (
	"iter"
	"slices"

	"github.com/foxssake/nohub/pkg/util/merr"
)

// Option 用于配置 Repository。
type Option[K comparable] func(*options[K])

type options[K comparable] struct {
	notFound func(K) error
}

// WithNotFound 替换找不到实体时返回的错误。
func WithNotFound[K comparable](fn func(K) error) Option[K] {
	return func(o *options[K]) {
		o.notFound = fn
	}
}

// Repository 以 idOf 提取的键唯一标识每个实体，遍历顺序与插入顺序一致。
type Repository[T any, K comparable] struct {
	idOf     func(T) K
	notFound func(K) error

	items map[K]T
	keys  []K
}

// New 创建一个空仓库。
func New[T any, K comparable](idOf func(T) K, opts ...Option[K]) *Repository[T, K] {
	o := &options[K]{
		notFound: func(key K) error { return merr.WrapErrDataNotFound(key) },
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Repository[T, K]{
		idOf:     idOf,
		notFound: o.notFound,
		items:    make(map[K]T),
	}
}

// Add 插入新实体，键已存在时返回 ConflictError 且不修改仓库。
func (r *Repository[T, K]) Add(item T) (T, error) {
	key := r.idOf(item)
	if _, ok := r.items[key]; ok {
		var zero T
		return zero, merr.WrapErrConflict(key)
	}
	r.items[key] = item
	r.keys = append(r.keys, key)
	return item, nil
}

// Replace 用 item 整体替换同键的已有实体。
func (r *Repository[T, K]) Replace(item T) (T, error) {
	key := r.idOf(item)
	if _, ok := r.items[key]; !ok {
		var zero T
		return zero, r.notFound(key)
	}
	r.items[key] = item
	return item, nil
}

func (r *Repository[T, K]) Find(key K) (T, bool) {
	item, ok := r.items[key]
	return item, ok
}

// Require 与 Find 相同，但找不到时返回实体对应的 NotFound 错误。
func (r *Repository[T, K]) Require(key K) (T, error) {
	item, ok := r.items[key]
	if !ok {
		return item, r.notFound(key)
	}
	return item, nil
}

func (r *Repository[T, K]) Has(key K) bool {
	_, ok := r.items[key]
	return ok
}

// List 返回调用时刻的快照序列，遍历过程中修改仓库是安全的。
func (r *Repository[T, K]) List() iter.Seq[T] {
	snapshot := make([]T, 0, len(r.keys))
	for _, key := range r.keys {
		snapshot = append(snapshot, r.items[key])
	}
	return slices.Values(snapshot)
}

func (r *Repository[T, K]) Count() int {
	return len(r.items)
}

// Remove 删除键对应的实体，返回是否确实删除了内容。
func (r *Repository[T, K]) Remove(key K) bool {
	if _, ok := r.items[key]; !ok {
		return false
	}
	delete(r.items, key)
	r.keys = slices.DeleteFunc(r.keys, func(k K) bool { return k == key })
	return true
}

func (r *Repository[T, K]) RemoveItem(item T) bool {
	return r.Remove(r.idOf(item))
}

// Clear 清空仓库，仅用于测试与重置。
func (r *Repository[T, K]) Clear() {
	r.items = make(map[K]T)
	r.keys = nil
}

// NotFound 返回 key 对应的 NotFound 错误。
func (r *Repository[T, K]) NotFound(key K) error {
	return r.notFound(key)
}
