// Package ids 生成会话与大厅使用的随机 ID。
package ids

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/cockroachdb/errors"
)

// Generator 生成一个新的随机 ID。
type Generator func() (string, error)

// MinLength 是允许配置的最短 ID 长度。
const MinLength = 4

// maxAttempts 是与已有 ID 冲突时的最大重试次数。
const maxAttempts = 16

// NanoID 返回生成指定长度 nanoid（URL 安全字符集）的 Generator。
func NanoID(length int) Generator {
	return func() (string, error) {
		return gonanoid.New(length)
	}
}

// Fixed 依次返回给定的 ID，用完后返回错误，用于测试。
func Fixed(values ...string) Generator {
	next := 0
	return func() (string, error) {
		if next >= len(values) {
			return "", errors.New("no more ids")
		}
		id := values[next]
		next++
		return id, nil
	}
}

// Unique 生成一个 taken 判定为未占用的 ID。
func Unique(gen Generator, taken func(string) bool) (string, error) {
	for range maxAttempts {
		id, err := gen()
		if err != nil {
			return "", errors.Wrap(err, "failed to generate id")
		}
		if !taken(id) {
			return id, nil
		}
	}
	return "", errors.Newf("failed to generate a free id after %d attempts", maxAttempts)
}
