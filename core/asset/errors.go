package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReference 地址中取不到文件名
	ErrInvalidReference = errors.New("invalid asset reference")
	ErrFetchFailed      = errors.New("asset fetch failed")
	ErrInstallFailed    = errors.New("asset install failed")
	ErrInstallTimeout   = errors.New("asset install timed out")
	ErrEngineNotLoaded  = errors.New("engine module not loaded")
)

// FetchError 网络层失败，终止本次解析
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// InstallError 引擎安装回调返回了非 0 状态码
type InstallError struct {
	Identity string
	Code     int
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s failed with code %d", e.Identity, e.Code)
}

func (e *InstallError) Is(target error) bool { return target == ErrInstallFailed }
