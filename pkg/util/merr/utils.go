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

package merr

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case nohubError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

// Name 返回错误在协议层使用的名称，例如 "LockedError"。
// 非 merr 错误统一返回 "Error"。
func Name(err error) string {
	if err == nil {
		return ""
	}
	var target nohubError
	if errors.As(err, &target) {
		return target.name
	}
	return NameUnknown
}

// Message 返回适合直接回复给客户端的错误描述。
// 对 merr 错误返回其业务描述，其余错误返回完整的错误链文本。
func Message(err error) string {
	if err == nil {
		return ""
	}
	var target nohubError
	if errors.As(err, &target) {
		return target.msg
	}
	return err.Error()
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// Data 相关错误封装。
func WrapErrDataNotFound[K any](id K, msg ...string) error {
	return wrapWithMessage(ErrDataNotFound, fmt.Sprintf("Data#%v not found!", id), msg...)
}

func WrapErrGameNotFound(id string, msg ...string) error {
	return wrapWithMessage(ErrGameNotFound, fmt.Sprintf("Game#%s not found!", id), msg...)
}

func WrapErrSessionNotFound(id string, msg ...string) error {
	return wrapWithMessage(ErrSessionNotFound, fmt.Sprintf("Session#%s not found!", id), msg...)
}

func WrapErrLobbyNotFound(id string, msg ...string) error {
	return wrapWithMessage(ErrLobbyNotFound, fmt.Sprintf("Lobby#%s not found!", id), msg...)
}

func WrapErrConflict[K any](id K, msg ...string) error {
	return wrapWithMessage(ErrConflict, fmt.Sprintf("Data#%v already exists!", id), msg...)
}

// Privilege 相关错误封装。
func WrapErrUnauthorized(message string, msg ...string) error {
	return wrapWithMessage(ErrUnauthorized, message, msg...)
}

func WrapErrLocked(message string, msg ...string) error {
	return wrapWithMessage(ErrLocked, message, msg...)
}

func WrapErrLimitReached(message string, msg ...string) error {
	return wrapWithMessage(ErrLimitReached, message, msg...)
}

// Command 相关错误封装。
func WrapErrInvalidCommand(message string, msg ...string) error {
	return wrapWithMessage(ErrInvalidCommand, message, msg...)
}

func WrapErrServiceInternal(reason string, msg ...string) error {
	return wrapWithMessage(ErrServiceInternal, reason, msg...)
}

// wrapWithMessage 基于叶子错误构造一个携带业务描述的副本，
// 额外的 msg 记录在 detail 中。
func wrapWithMessage(err nohubError, message string, msg ...string) error {
	err.msg = message
	err.detail = message
	for _, m := range msg {
		err.detail += " -> " + m
	}
	return err
}
