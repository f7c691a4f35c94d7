package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrEngineUnavailable = errors.New("timeline: engine timeline unavailable")
	ErrClipNotFound      = errors.New("timeline: clip not found")
	ErrInvalidClip       = errors.New("timeline: invalid video clip")
	ErrCaptionNotFound   = errors.New("timeline: caption not found")
	ErrFrameGrabTimeout  = errors.New("timeline: frame grab timed out")
	ErrDestroyed         = errors.New("timeline: composer destroyed")
	// ErrSuperseded is returned by a build overtaken by a newer one while it
	// was waiting on assets; its results are discarded.
	ErrSuperseded = errors.New("timeline: build superseded")
)

// EssentialAssetError reports a clip source that could not be resolved.
// The build is aborted before anything on the engine is touched.
type EssentialAssetError struct {
	Clip string
	URL  string
	Err  error
}

func (e *EssentialAssetError) Error() string {
	return fmt.Sprintf("timeline: clip %s source %s: %v", e.Clip, e.URL, e.Err)
}

func (e *EssentialAssetError) Unwrap() error {
	return e.Err
}
