package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
	"github.com/gifsmith/gifsmith/internal/domain/port"
	"github.com/gifsmith/gifsmith/internal/infra/ffmpeg"
	"github.com/gifsmith/gifsmith/internal/infra/rabbitmq"
	"github.com/gifsmith/gifsmith/internal/usecase"
)

type stubProber struct{}

func (stubProber) Probe(context.Context, string) (port.VideoInfo, error) {
	return port.VideoInfo{DurationSeconds: 12, Width: 320, Height: 240}, nil
}

type stubExtractor struct{ frames int }

func (s stubExtractor) ExtractFrames(_ context.Context, _ string, tr entity.TimeRange, rate float64) ([]entity.Frame, error) {
	out := make([]entity.Frame, s.frames)
	for i := range out {
		out[i] = entity.Frame{ID: uuid.New(), TimestampSeconds: tr.Start + float64(i)/rate, Image: []byte{0xff, 0xd8, byte(i)}}
	}
	return out, nil
}

type stubEncoder struct{}

func (stubEncoder) Encode(context.Context, [][]byte, time.Duration) ([]byte, error) {
	return []byte("GIF89a"), nil
}

type stubCaptioner struct{}

func (stubCaptioner) Describe(context.Context, [][]byte) (string, error) {
	return "stub description", nil
}

type memStore struct{ objects map[string][]byte }

func (m *memStore) PutGIF(_ context.Context, key string, data []byte) (string, error) {
	m.objects[key] = data
	return "http://store.local/" + key, nil
}

func (m *memStore) FetchGIF(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, 0, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *usecase.SegmentService) {
	t.Helper()
	svc := usecase.NewSegmentService(
		stubExtractor{frames: 5},
		stubProber{},
		stubEncoder{},
		stubCaptioner{},
		&memStore{objects: make(map[string][]byte)},
		rabbitmq.NoopPublisher{},
		zap.NewNop(),
		usecase.Config{SampleRate: 10},
	)

	mux := http.NewServeMux()
	NewHandler(svc, ffmpeg.NewFrameArchiver(), t.TempDir(), zap.NewNop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func uploadClip(t *testing.T, srv *httptest.Server, contentType string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="video"; filename="clip.mp4"`}
	hdr["Content-Type"] = []string{contentType}
	fw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/videos", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeSegment(t *testing.T, resp *http.Response) segmentResponse {
	t.Helper()
	defer resp.Body.Close()
	var seg segmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&seg))
	return seg
}

func TestUploadVideoRejectsNonVideo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := uploadClip(t, srv, "image/png")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploadVideoRegistersSource(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := uploadClip(t, srv, "video/mp4")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var video videoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&video))
	assert.Equal(t, 12.0, video.DurationSeconds)
	assert.Equal(t, 320, video.Width)
}

func TestCreateSegmentRequiresVideo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/segments", timeRangeRequest{Start: 0, End: 1})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSegmentLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	uploadClip(t, srv, "video/mp4").Body.Close()

	// create
	resp := postJSON(t, srv.URL+"/segments", timeRangeRequest{Start: 0, End: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	seg := decodeSegment(t, resp)
	assert.Equal(t, "idle", seg.Status)

	// invalid timerange update is silently ignored
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/segments/"+seg.ID+"/timerange",
		strings.NewReader(`{"start": 9, "end": 2}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	got := decodeSegment(t, resp)
	assert.Equal(t, 0.0, got.TimeRange.Start)
	assert.Equal(t, 1.0, got.TimeRange.End)

	// extract is async and answers 202 immediately
	resp = postJSON(t, srv.URL+"/segments/"+seg.ID+"/extract", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/segments/" + seg.ID)
		if err != nil {
			return false
		}
		got = decodeSegment(t, resp)
		return got.Status == "frames_ready"
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, got.Frames, 5)
	for _, f := range got.Frames {
		assert.Equal(t, "unselected", f.DisplayState)
	}

	// select a span, later frame first
	resp = postJSON(t, srv.URL+"/segments/"+seg.ID+"/select", selectFrameRequest{FrameID: got.Frames[3].ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = postJSON(t, srv.URL+"/segments/"+seg.ID+"/select", selectFrameRequest{FrameID: got.Frames[1].ID})
	got = decodeSegment(t, resp)
	states := make([]string, len(got.Frames))
	for i, f := range got.Frames {
		states[i] = f.DisplayState
	}
	assert.Equal(t, []string{"unselected", "span", "span", "span", "unselected"}, states)

	// generate and wait for done
	resp = postJSON(t, srv.URL+"/segments/"+seg.ID+"/generate", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/segments/" + seg.ID)
		if err != nil {
			return false
		}
		got = decodeSegment(t, resp)
		return got.Status == "done"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "stub description", got.GifDescription)
	assert.NotEmpty(t, got.GifURL)

	// download carries the deterministic filename
	resp, err = http.Get(srv.URL + "/segments/" + seg.ID + "/gif")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "video-to-gif-"+seg.ID+".gif")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF89a"), data)
}

func TestDownloadGifWithoutArtifact(t *testing.T) {
	srv, svc := newTestServer(t)
	uploadClip(t, srv, "video/mp4").Body.Close()
	seg, err := svc.CreateSegment(entity.TimeRange{Start: 0, End: 1})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/segments/" + seg.ID.String() + "/gif")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFramesArchiveDownload(t *testing.T) {
	srv, svc := newTestServer(t)
	uploadClip(t, srv, "video/mp4").Body.Close()
	seg, err := svc.CreateSegment(entity.TimeRange{Start: 0, End: 1})
	require.NoError(t, err)
	_, err = svc.ExtractFrames(context.Background(), seg.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s, err := svc.Segment(seg.ID)
		return err == nil && s.Status == entity.StatusFramesReady
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/segments/" + seg.ID.String() + "/frames.zip")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
}

func TestUnknownSegmentRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	id := uuid.NewString()

	resp, err := http.Get(srv.URL + "/segments/" + id)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/segments/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveSegment(t *testing.T) {
	srv, svc := newTestServer(t)
	uploadClip(t, srv, "video/mp4").Body.Close()
	seg, err := svc.CreateSegment(entity.TimeRange{Start: 0, End: 1})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/segments/"+seg.ID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = svc.Segment(seg.ID)
	assert.Error(t, err)
}
