package server

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"ClipForge/core/asset"
	"ClipForge/core/events"
	"ClipForge/core/timeline"
	"ClipForge/logger"
	"ClipForge/model"

	"github.com/gorilla/mux"
)

// APIHandler 时间线与资源接口
type APIHandler struct {
	composer *timeline.Composer
	resolver timeline.AssetResolver
	hub      *events.Hub
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(composer *timeline.Composer, resolver timeline.AssetResolver, hub *events.Hub) *APIHandler {
	return &APIHandler{
		composer: composer,
		resolver: resolver,
		hub:      hub,
	}
}

// BuildRequest 构建请求，VideoClips 非空时代替项目中的视频素材
type BuildRequest struct {
	VideoClips []model.VideoClip `json:"videoClips,omitempty"`
}

// StateResponse 时间线状态
type StateResponse struct {
	State    string `json:"state"`
	Playing  bool   `json:"playing"`
	Position int64  `json:"position"`
	Duration int64  `json:"duration"`
}

// PlayRequest 播放区间，-1 表示当前位置 / 播放到结尾
type PlayRequest struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type SeekRequest struct {
	Position *int64 `json:"position"`
}

type ResolveRequest struct {
	URL          string `json:"url"`
	Custom       bool   `json:"custom"`
	CheckLicense bool   `json:"checkLicense"`
}

type ResolveResponse struct {
	URL    string `json:"url"`
	Result string `json:"result"`
}

// decodeBody 允许空请求体
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError 按错误类型映射状态码
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var essential *timeline.EssentialAssetError
	switch {
	case errors.Is(err, timeline.ErrClipNotFound), errors.Is(err, timeline.ErrCaptionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, timeline.ErrEngineUnavailable), errors.Is(err, asset.ErrEngineNotLoaded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, timeline.ErrDestroyed):
		status = http.StatusGone
	case errors.Is(err, timeline.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, timeline.ErrFrameGrabTimeout), errors.Is(err, asset.ErrInstallTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, asset.ErrInvalidReference), errors.Is(err, timeline.ErrInvalidClip):
		status = http.StatusBadRequest
	case errors.As(err, &essential), errors.Is(err, asset.ErrFetchFailed), errors.Is(err, asset.ErrInstallFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Error("请求处理失败", logger.ErrorField(err))
	}
	http.Error(w, err.Error(), status)
}

// BuildHandler 全量重建时间线
func (h *APIHandler) BuildHandler(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "无效的请求", http.StatusBadRequest)
		return
	}
	if err := h.composer.BuildTimeline(r.Context(), req.VideoClips); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

// AfreshClipHandler 按项目中的最新数据重建单个视频素材
func (h *APIHandler) AfreshClipHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.composer.AfreshVideoClip(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

func (h *APIHandler) DeleteClipHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := timeline.TrackKind(vars["kind"])
	if kind != timeline.TrackVideo && kind != timeline.TrackAudio {
		http.Error(w, "未知轨道类型", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		http.Error(w, "无效的索引", http.StatusBadRequest)
		return
	}
	if err := h.composer.DeleteClipByIndex(kind, index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCaptionHandler 修改已添加字幕的缩放、旋转、位移和字号
func (h *APIHandler) SetCaptionHandler(w http.ResponseWriter, r *http.Request) {
	var m model.Caption
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "无效的请求", http.StatusBadRequest)
		return
	}
	m.ID = mux.Vars(r)["id"]
	if err := h.composer.SetCaption(m); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	req := PlayRequest{Start: timeline.FromCurrent, End: timeline.ToEnd}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "无效的请求", http.StatusBadRequest)
		return
	}
	if err := h.composer.Play(req.Start, req.End); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := decodeBody(r, &req); err != nil || req.Position == nil {
		http.Error(w, "缺少 position", http.StatusBadRequest)
		return
	}
	if err := h.composer.Seek(*req.Position); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	h.composer.Stop()
	writeJSON(w, http.StatusOK, h.state())
}

func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

func (h *APIHandler) state() *StateResponse {
	return &StateResponse{
		State:    h.composer.State().String(),
		Playing:  h.composer.IsPlaying(),
		Position: h.composer.CurrentPosition(),
		Duration: h.composer.Duration(),
	}
}

// FrameHandler 截取 point（微秒）处的画面，返回 PNG
func (h *APIHandler) FrameHandler(w http.ResponseWriter, r *http.Request) {
	var point int64
	if v := r.URL.Query().Get("point"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "无效的 point", http.StatusBadRequest)
			return
		}
		point = p
	}
	img, err := h.composer.GrabFrame(r.Context(), point)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		logger.Warn("输出截图失败", logger.ErrorField(err))
	}
}

// ResolveAssetHandler 解析远程资源，结果同时推送到事件流
func (h *APIHandler) ResolveAssetHandler(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "缺少 url", http.StatusBadRequest)
		return
	}
	ref := model.AssetRef{URL: req.URL, Custom: req.Custom, CheckLicense: req.CheckLicense}
	result, err := h.resolver.Resolve(r.Context(), ref)

	data := events.ResolveData{URL: req.URL, Result: result}
	if err != nil {
		data.Error = err.Error()
	}
	if perr := h.hub.Publish(events.MsgTypeResolve, data); perr != nil {
		logger.Warn("推送解析结果失败", logger.ErrorField(perr))
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &ResolveResponse{URL: req.URL, Result: result})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !h.composer.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"timeline": h.composer.State().String(),
		"clients":  h.hub.ClientCount(),
	})
}
