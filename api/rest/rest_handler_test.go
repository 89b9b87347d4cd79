package rest

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/whiteboard/assets"
	"github.com/zlnvch/whiteboard/ingest"
	ingestmocks "github.com/zlnvch/whiteboard/ingest/mocks"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/service"
	"github.com/zlnvch/whiteboard/store"
	storemocks "github.com/zlnvch/whiteboard/store/mocks"
)

type testEnv struct {
	handler *Handler
	store   *storemocks.MockStore
	raster  *ingestmocks.MockRasterizer
	blobs   *assets.Blobs
	token   string
}

func setup(t *testing.T) testEnv {
	t.Helper()
	mockStore := new(storemocks.MockStore)
	raster := new(ingestmocks.MockRasterizer)
	blobs := assets.NewBlobs()
	limits := ingest.DefaultLimits()
	limits.MaxImageBytes = 16 << 10

	svc := service.NewService(mockStore, nil, nil, nil, assets.UnavailableStore{}, assets.NewFetcher(blobs, http.DefaultClient), blobs,
		ingest.NewImporter(blobs, raster, limits), []byte("secret"), service.DefaultOptions())
	token, err := svc.CreateJWT("owner-1")
	require.NoError(t, err)

	return testEnv{handler: NewHandler(svc, limits), store: mockStore, raster: raster, blobs: blobs, token: token}
}

func (e testEnv) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/boards", e.handler.HandleBoards)
	mux.HandleFunc("/boards/{id}", e.handler.HandleBoard)
	mux.HandleFunc("/ingest/image", e.handler.HandleIngestImage)
	mux.HandleFunc("/ingest/pdf", e.handler.HandleIngestPDF)
	return mux
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.mux().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 960, 480))))
	return buf.Bytes()
}

func TestHandleBoards_RequiresToken(t *testing.T) {
	e := setup(t)
	rec := httptest.NewRecorder()
	e.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boards", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleBoards_List(t *testing.T) {
	e := setup(t)
	e.store.On("ListSnapshots", mock.Anything, "owner-1").Return([]models.SnapshotSummary{{Id: "b1", Name: "One"}}, nil)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/boards", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listBoardsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Boards, 1)
	assert.Equal(t, "One", resp.Boards[0].Name)
	assert.NotNil(t, resp.Drafts)
}

func TestHandleBoard(t *testing.T) {
	e := setup(t)
	snap := models.Snapshot{
		Id:       "b1",
		Kind:     models.SnapshotKind,
		Name:     "One",
		OwnerId:  "owner-1",
		Elements: models.Elements{&models.Rect{ElementMeta: models.ElementMeta{Id: "r"}, W: 5, H: 5}},
		Viewport: models.DefaultViewport(),
	}
	e.store.On("GetSnapshot", mock.Anything, "owner-1", "b1").Return(snap, nil)
	e.store.On("GetSnapshot", mock.Anything, "owner-1", "missing").Return(models.Snapshot{}, store.ErrItemNotFound)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/boards/b1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "One", got.Name)
	require.Len(t, got.Elements, 1)
	assert.Equal(t, models.KindRect, got.Elements[0].Kind())

	rec = e.do(httptest.NewRequest(http.MethodGet, "/boards/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodDelete, "/boards/b1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleIngestImage(t *testing.T) {
	e := setup(t)

	rec := e.do(upload(t, "/ingest/image", smallPNG(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var asset ingest.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	assert.True(t, assets.IsBlobURL(asset.URL))
	assert.Equal(t, 960, asset.Width)
	assert.Equal(t, 480.0, asset.W)
	assert.Equal(t, 240.0, asset.H)
	assert.Equal(t, 1, e.blobs.Len())
}

func TestHandleIngestImage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"wrong type", []byte("just some text, not an image")},
		{"oversized", bytes.Repeat([]byte{0x89}, 32<<10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			rec := e.do(upload(t, "/ingest/image", tt.data))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, 0, e.blobs.Len())
		})
	}
}

func TestHandleIngestPDF(t *testing.T) {
	e := setup(t)
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	pages := []ingest.Page{
		{Number: 1, Image: smallPNG(t), Width: 960, Height: 480},
		{Number: 2, Image: smallPNG(t), Width: 960, Height: 480},
	}
	e.raster.On("Rasterize", mock.Anything, pdf, ingest.DefaultMaxPDFPages).Return(pages, nil)

	rec := e.do(upload(t, "/ingest/pdf", pdf))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestPDFResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Pages, 2)
	assert.Equal(t, 1, resp.Pages[0].Page)
	assert.Equal(t, 2, resp.Pages[1].Page)
	assert.Equal(t, 480.0, resp.Pages[1].W)
}

func TestHandleIngestPDF_NotAPDF(t *testing.T) {
	e := setup(t)
	rec := e.do(upload(t, "/ingest/pdf", smallPNG(t)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e.raster.AssertNotCalled(t, "Rasterize", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleIngest_MethodAndAuth(t *testing.T) {
	e := setup(t)
	rec := e.do(httptest.NewRequest(http.MethodGet, "/ingest/image", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := upload(t, "/ingest/image", smallPNG(t))
	rec = httptest.NewRecorder()
	e.mux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
