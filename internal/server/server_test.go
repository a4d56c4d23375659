package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarver/docchat/internal/domain"
	"github.com/jcarver/docchat/internal/media"
)

type fakeIngestor struct {
	calls  int
	doc    domain.Document
	source []byte
	mime   string
	report *domain.IndexReport
	err    error
}

func (f *fakeIngestor) Index(_ context.Context, doc domain.Document, sourceBytes []byte, mimeHint string) (*domain.IndexReport, error) {
	f.calls++
	f.doc = doc
	f.source = sourceBytes
	f.mime = mimeHint
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &domain.IndexReport{DocumentID: doc.ID, ChunkCount: 1}, nil
}

type fakeAnswerer struct {
	calls    int
	question string
	answer   *domain.Answer
	err      error
}

func (f *fakeAnswerer) Answer(_ context.Context, question string) (*domain.Answer, error) {
	f.calls++
	f.question = question
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Health(context.Context) error { return f.err }

func newTestServer(t *testing.T, ing *fakeIngestor, ans *fakeAnswerer, health *fakeHealth) *Server {
	t.Helper()
	if ing == nil {
		ing = &fakeIngestor{}
	}
	if ans == nil {
		ans = &fakeAnswerer{answer: &domain.Answer{Text: "ok"}}
	}
	if health == nil {
		health = &fakeHealth{}
	}
	store := media.NewStore(t.TempDir())
	return New(Config{Port: 0}, store, ing, ans, health, nil)
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadIngestsDocument(t *testing.T) {
	ing := &fakeIngestor{}
	srv := newTestServer(t, ing, nil, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "notes.txt", []byte("hello world")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "File notes.txt uploaded successfully.")

	require.Equal(t, 1, ing.calls)
	assert.Equal(t, "notes.txt", ing.doc.OriginalName)
	assert.Equal(t, []byte("hello world"), ing.source)
	assert.Equal(t, int64(len("hello world")), ing.doc.ByteSize)
	assert.True(t, strings.HasPrefix(ing.doc.SourcePath, "doc/"))
	assert.Equal(t, domain.NewDocumentID(ing.doc.SourcePath), ing.doc.ID)
}

func TestUploadWithoutFileFieldIsBadRequest(t *testing.T) {
	ing := &fakeIngestor{}
	srv := newTestServer(t, ing, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ing.calls)
}

func TestUploadExtractionFailureIsBadRequest(t *testing.T) {
	ing := &fakeIngestor{err: domain.E(domain.KindExtraction, "extract", errors.New("no extractable text"))}
	srv := newTestServer(t, ing, nil, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "empty.pdf", []byte("%PDF-")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.KindExtraction), resp.Kind)
}

func TestUploadIndexOutageIsServiceUnavailable(t *testing.T) {
	ing := &fakeIngestor{err: domain.E(domain.KindIndex, "upsert", errors.New("qdrant down"))}
	srv := newTestServer(t, ing, nil, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "doc.txt", []byte("text")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAskReturnsAnswerWithChunks(t *testing.T) {
	ans := &fakeAnswerer{answer: &domain.Answer{
		Text: "The capital of France is Paris.",
		SupportingChunks: []domain.RetrievedChunk{
			{Text: "Paris is the capital of France.", Score: 0.93},
			{Text: "France is in Europe.", Score: 0.71},
		},
	}}
	srv := newTestServer(t, nil, ans, nil)

	body := strings.NewReader(`{"question":"What is the capital of France?"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/ask", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What is the capital of France?", ans.question)

	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The capital of France is Paris.", resp.Answer)
	require.Len(t, resp.DocumentChunks, 2)
	assert.Equal(t, "Paris is the capital of France.", resp.DocumentChunks[0].Text)
	assert.InDelta(t, 0.93, resp.DocumentChunks[0].Confidence, 1e-9)
}

func TestAskInvalidQuestionIsBadRequest(t *testing.T) {
	ans := &fakeAnswerer{err: domain.E(domain.KindInvalidQuestion, "validate", errors.New("question is empty"))}
	srv := newTestServer(t, nil, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/ask", strings.NewReader(`{"question":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.KindInvalidQuestion), resp.Kind)
}

func TestAskMalformedBodyIsBadRequest(t *testing.T) {
	ans := &fakeAnswerer{}
	srv := newTestServer(t, nil, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/ask", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ans.calls)
}

func TestAskLLMOutageIsServiceUnavailable(t *testing.T) {
	ans := &fakeAnswerer{err: domain.E(domain.KindLanguageModel, "complete", errors.New("rate limited"))}
	srv := newTestServer(t, nil, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, &fakeHealth{})
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"healthy"`)
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := newTestServer(t, nil, nil, &fakeHealth{err: errors.New("dial refused")})
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unhealthy"`)
	})
}

func TestMediaStaticServing(t *testing.T) {
	ing := &fakeIngestor{}
	srv := newTestServer(t, ing, nil, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "readme.txt", []byte("stored bytes")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+ing.doc.SourcePath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stored bytes", rec.Body.String())
}
