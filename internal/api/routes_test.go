package api

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

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
)

type fakeConversation struct {
	messages   []entities.ReplyMessage
	err        error
	gotMessage string
	gotUpload  []byte
}

func (f *fakeConversation) Chat(ctx context.Context, message string) ([]entities.ReplyMessage, error) {
	f.gotMessage = message
	return f.messages, f.err
}

func (f *fakeConversation) ProcessAudio(ctx context.Context, upload []byte) (*entities.ReplyMessage, error) {
	f.gotUpload = upload
	if f.err != nil {
		return nil, f.err
	}
	return &f.messages[0], nil
}

func (f *fakeConversation) Configured() bool { return true }

type fakeKnowledge struct {
	result *entities.KnowledgeResult
	err    error
	got    string
}

func (f *fakeKnowledge) Query(ctx context.Context, text string) (*entities.KnowledgeResult, error) {
	f.got = text
	return f.result, f.err
}

type fakeVoices struct{}

func (fakeVoices) GetAvailableVoices(ctx context.Context) ([]map[string]interface{}, error) {
	return []map[string]interface{}{{"voice_id": "Vpv1YgvVd6CHIzOTiTt8", "name": "Valentina"}}, nil
}

func newTestServer(t *testing.T, deps Dependencies) *echo.Echo {
	e := echo.New()
	InitRoutes(e, deps, zaptest.NewLogger(t))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Configured)
}

func TestChat(t *testing.T) {
	conversation := &fakeConversation{messages: []entities.ReplyMessage{{
		Text:             "Hola",
		Audio:            "SGVsbG8=",
		LipSync:          entities.LipSync(`{"mouthCues":[]}`),
		FacialExpression: entities.ExpressionSmile,
		Animation:        entities.AnimationTalking1,
	}}}
	e := newTestServer(t, Dependencies{Conversation: conversation})

	rec := serve(e, jsonRequest(http.MethodPost, "/chat", `{"message":"Que es el chancado?"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "Hola", body.Messages[0].Text)
	assert.Equal(t, "Que es el chancado?", conversation.gotMessage)
}

func TestChat_EmptyBodyAsksForGreeting(t *testing.T) {
	conversation := &fakeConversation{}
	e := newTestServer(t, Dependencies{Conversation: conversation})

	rec := serve(e, jsonRequest(http.MethodPost, "/chat", `{}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, conversation.gotMessage)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", &domain.UpstreamError{Provider: "gemini", Err: errors.New("503")}, http.StatusBadGateway, domain.CodeUpstream},
		{"malformed", domain.ErrMalformedReply, http.StatusBadGateway, domain.CodeMalformedReply},
		{"process", &domain.ProcessError{Tool: "ffmpeg", Reason: "exited with code 1"}, http.StatusInternalServerError, domain.CodeProcess},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, domain.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, Dependencies{Conversation: &fakeConversation{err: tt.err}})

			rec := serve(e, jsonRequest(http.MethodPost, "/chat", `{"message":"hola"}`))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestChat_RejectsInvalidBody(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}})

	rec := serve(e, jsonRequest(http.MethodPost, "/chat", `{"message":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeInvalidRequest, decodeError(t, rec).Error)

	rec = serve(e, jsonRequest(http.MethodPost, "/chat", `{"message":"`+strings.Repeat("a", 4001)+`"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decodeError(t, rec).Error)
}

func TestProcessAudio(t *testing.T) {
	conversation := &fakeConversation{messages: []entities.ReplyMessage{{Text: "Here is your response..."}}}
	e := newTestServer(t, Dependencies{Conversation: conversation})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "recording.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF....WAVE"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/process-audio", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body MessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "Here is your response...", body.Messages[0].Text)
	assert.Equal(t, []byte("RIFF....WAVE"), conversation.gotUpload)
}

func TestProcessAudio_MissingField(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "no audio here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/process-audio", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := serve(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessAudio_UnsupportedMedia(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{err: domain.ErrUnsupportedMedia}})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/process-audio", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := serve(e, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, domain.CodeUnsupportedMedia, decodeError(t, rec).Error)
}

func TestGetKnowledgeBase(t *testing.T) {
	knowledge := &fakeKnowledge{result: &entities.KnowledgeResult{
		Namespace: "2600-Chancado-Primario",
		Matches:   []entities.KnowledgeChunk{{ID: "manual-p12", Score: 0.91}},
	}}
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}, Knowledge: knowledge})

	rec := serve(e, jsonRequest(http.MethodPost, "/getKnowledgeBase", `{"query":"chancador"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body KnowledgeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "chancador", knowledge.got)
	assert.True(t, body.QueryResponse.Contains("manual-p12"))
}

func TestGetKnowledgeBase_Errors(t *testing.T) {
	knowledge := &fakeKnowledge{err: domain.ErrNotConfigured}
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}, Knowledge: knowledge})

	rec := serve(e, jsonRequest(http.MethodPost, "/getKnowledgeBase", `{"query":"chancador"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, domain.CodeNotConfigured, decodeError(t, rec).Error)

	rec = serve(e, jsonRequest(http.MethodPost, "/getKnowledgeBase", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decodeError(t, rec).Error)
}

func TestVoices(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}, Voices: fakeVoices{}})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/voices", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body VoicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Voices, 1)
	assert.Equal(t, "Vpv1YgvVd6CHIzOTiTt8", body.Voices[0]["voice_id"])

	e = newTestServer(t, Dependencies{Conversation: &fakeConversation{}})
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/voices", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	e := newTestServer(t, Dependencies{Conversation: &fakeConversation{}})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/children", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Error)
}
