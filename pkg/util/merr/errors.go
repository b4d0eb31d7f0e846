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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// 错误名称，会原样出现在协议层的错误回复中。
const (
	NameDataNotFound   = "DataNotFoundError"
	NameConflict       = "ConflictError"
	NameUnauthorized   = "UnauthorizedError"
	NameLocked         = "LockedError"
	NameLimit          = "LimitError"
	NameInvalidCommand = "InvalidCommandError"
	NameUnknown        = "Error"
)

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Data related
	ErrDataNotFound    = newNohubError("data not found", 100, NameDataNotFound)
	ErrGameNotFound    = newNohubError("game not found", 101, NameDataNotFound, withParent(ErrDataNotFound))
	ErrSessionNotFound = newNohubError("session not found", 102, NameDataNotFound, withParent(ErrDataNotFound))
	ErrLobbyNotFound   = newNohubError("lobby not found", 103, NameDataNotFound, withParent(ErrDataNotFound))

	ErrConflict = newNohubError("data already exists", 150, NameConflict)

	// Privilege related
	ErrUnauthorized = newNohubError("unauthorized", 200, NameUnauthorized)
	// 状态约束导致的拒绝，例如大厅已锁定。
	ErrLocked = newNohubError("locked", 201, NameLocked, withParent(ErrUnauthorized))
	// 触达了配置的容量上限。
	ErrLimitReached = newNohubError("limit reached", 202, NameLimit, withParent(ErrUnauthorized))

	// Command related
	ErrInvalidCommand = newNohubError("invalid command", 300, NameInvalidCommand)

	// Service related
	ErrServiceInternal = newNohubError("service internal error", 500, NameUnknown)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to nohubError
	errUnexpected = newNohubError("unexpected error", (1<<16)-1, NameUnknown)
)

type errorOption func(*nohubError)

func withParent(parent nohubError) errorOption {
	return func(err *nohubError) {
		err.parentCode = parent.errCode
	}
}

// WithDetail 为错误附加更详细的描述，不影响 Error() 的输出。
func WithDetail(detail string) errorOption {
	return func(err *nohubError) {
		err.detail = detail
	}
}

type nohubError struct {
	msg        string
	detail     string
	name       string
	errCode    int32
	parentCode int32
}

func newNohubError(msg string, code int32, name string, options ...errorOption) nohubError {
	err := nohubError{
		msg:     msg,
		detail:  msg,
		name:    name,
		errCode: code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e nohubError) code() int32 {
	return e.errCode
}

func (e nohubError) Error() string {
	return e.msg
}

func (e nohubError) Detail() string {
	return e.detail
}

// Is 按错误码匹配；子类型错误同时匹配其父错误码，
// 例如 ErrLocked 满足 errors.Is(err, ErrUnauthorized)。
func (e nohubError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(nohubError); ok {
		return e.errCode == cause.errCode || (e.parentCode != 0 && e.parentCode == cause.errCode)
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return multiErrors{
		errs,
	}
}
