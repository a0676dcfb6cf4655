package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/http/controller"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/media"
	"github.com/tnqbao/gau-media-service/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCollections = `
user:
  table: users
  collections:
    avatar:
      type: image
      width: 32
      height: 32
      fit: cover
      extensions: [png]
    docs:
      type: file
`

func init() {
	gin.SetMode(gin.TestMode)
}

type capturedPublisher struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
}

func (p *capturedPublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.body = append(p.body, msg.Body)
	return nil
}

type testServer struct {
	router    *gin.Engine
	fs        afero.Fs
	publisher *capturedPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	require.NoError(t, db.Exec("CREATE TABLE users (id TEXT PRIMARY KEY)").Error)
	require.NoError(t, db.Exec("INSERT INTO users (id) VALUES ('1')").Error)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	registry, err := config.ParseCollections([]byte(testCollections))
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	disks := infra.NewDiskManager(map[string]media.Disk{"public": infra.NewLocalDiskFs(fs, "http://cdn.test")})
	log := infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil))
	publisher := &capturedPublisher{}
	repo := repository.NewRepository(db)

	env := &config.EnvConfig{}
	env.Media.TempDir = t.TempDir()
	env.Media.MaxUploadSize = 10 << 20

	inf := &infra.Infra{
		Logger:  log,
		Disks:   disks,
		Images:  infra.NewImageProcessor(),
		Produce: &produce.Produce{Cleanup: produce.NewCleanupService(publisher)},
	}
	ctrl := &controller.Controller{
		Config:     &config.Config{EnvConfig: env, Collections: registry},
		Infra:      inf,
		Repository: repo,
		Media: media.NewLibrary(media.Config{
			Disks:   disks,
			Store:   repo.MediaRepo,
			Images:  inf.Images,
			Logger:  log,
			TempDir: t.TempDir(),
		}),
	}

	return &testServer{router: SetupRouter(ctrl), fs: fs, publisher: publisher}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		img.Set(x, x%48, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, url, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, url string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type attachResponse struct {
	Media []entity.Media `json:"media"`
	Error string         `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAttachUploadAndRead(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/v1/media/User/1/avatar", "me.png", pngBytes(t), map[string]string{
		"metadata": `{"alt":"me"}`,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[attachResponse](t, w)
	require.Len(t, created.Media, 1)
	rec := created.Media[0]
	assert.Equal(t, "png", rec.Extension)
	assert.Equal(t, "user", rec.OwnerType)
	assert.True(t, strings.HasPrefix(rec.Path, "user/avatar/"))
	assert.Equal(t, "http://cdn.test/"+rec.Path, rec.URL)
	assert.Equal(t, "me", rec.Metadata["alt"])

	stored, err := afero.ReadFile(s.fs, rec.Path)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 32, cfg.Height)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/media/user/1/avatar", nil))
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[struct {
		Media map[string]entity.Media `json:"media"`
	}](t, w)
	assert.Equal(t, rec.Path, listed.Media["png"].Path)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/media/user/1/avatar/url", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.URL, decode[map[string]any](t, w)["url"])
}

func TestAttachRejectsUnknownOwners(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/v1/media/comment/1/avatar", "me.png", pngBytes(t), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(multipartRequest(t, "/api/v1/media/user/2/avatar", "me.png", pngBytes(t), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachErrorMapping(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/v1/media/user/1/banner", "me.png", pngBytes(t), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[attachResponse](t, w).Error, "banner")

	w = s.do(multipartRequest(t, "/api/v1/media/user/1/docs", "", nil, map[string]string{"name": "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	w = s.do(jsonRequest(t, http.MethodPost, "/api/v1/media/user/1/docs", map[string]any{"url": missing.URL + "/report.pdf"}))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAttachFromURL(t *testing.T) {
	s := newTestServer(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4\n%test document\n"))
	}))
	defer upstream.Close()

	w := s.do(jsonRequest(t, http.MethodPost, "/api/v1/media/user/1/docs", map[string]any{
		"url":      upstream.URL + "/report.pdf",
		"metadata": map[string]any{"source": "mail"},
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[attachResponse](t, w)
	require.Len(t, created.Media, 1)
	assert.Equal(t, "pdf", created.Media[0].Extension)
	assert.Equal(t, "mail", created.Media[0].Metadata["source"])
}

func TestDeleteRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(multipartRequest(t, "/api/v1/media/user/1/avatar", "me.png", pngBytes(t), nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	path := decode[attachResponse](t, w).Media[0].Path

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/media/user/1/avatar/png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	ok, _ := afero.Exists(s.fs, path)
	assert.False(t, ok)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/media/user/1/avatar/url", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(multipartRequest(t, "/api/v1/media/user/1/docs", "notes.txt", []byte("hello"), nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/media/user/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["deleted"])

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/media/user/1?force=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["deleted"])

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/media/user/1?force=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnqueueCleanup(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/v1/maintenance/cleanup", map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.publisher.keys)

	w = s.do(jsonRequest(t, http.MethodPost, "/api/v1/maintenance/cleanup", map[string]any{"all": true, "dry_run": true}))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, []string{produce.CleanupRoutingKey}, s.publisher.keys)

	var job produce.CleanupJobMessage
	require.NoError(t, json.Unmarshal(s.publisher.body[0], &job))
	assert.True(t, job.Orphaned && job.Missing && job.Unused && job.DryRun)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, []any{"public"}, body["disks"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/media/user/1/avatar", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := s.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
