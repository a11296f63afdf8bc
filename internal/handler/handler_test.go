package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/model"
	"github.com/xxxsen/groundqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

type fakeEngine struct {
	lastReq *model.AskRequest
	askErr  error
}

func (f *fakeEngine) Ask(ctx context.Context, req *model.AskRequest) (*model.AskResponse, error) {
	f.lastReq = req
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &model.AskResponse{Answer: "ok", ConversationID: "c1", Citations: []model.Citation{}}, nil
}

func (f *fakeEngine) CreateConversation(ctx context.Context) (*model.Conversation, error) {
	return &model.Conversation{ID: "c2", Messages: []model.Message{}}, nil
}

func (f *fakeEngine) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if id != "c1" {
		return nil, appErr.ErrConversationNotFound
	}
	return &model.Conversation{ID: id}, nil
}

type fakeIndex struct{}

func (fakeIndex) Len() int        { return 3 }
func (fakeIndex) Version() string { return "b1" }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestEngine(engine Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), RouterDeps{
		Chat:   NewChatHandler(engine),
		Health: NewHealthHandler(fakeIndex{}, fakeQuoteStats{extracted: 4, matched: 3}, []string{"openai"}),
	})
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) envelope {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestChat(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestEngine(engine)

	env := do(t, r, "POST", "/api/v1/chat", `{"query":"what is gamma?","provider":"openai","num_results":3}`)
	require.Equal(t, 0, env.Code)
	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Equal(t, "c1", resp.ConversationID)
	require.Equal(t, "what is gamma?", engine.lastReq.Query)
	require.Equal(t, 3, engine.lastReq.NumResults)

	env = do(t, r, "POST", "/api/v1/chat", `{not json`)
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestChat_ErrorMapping(t *testing.T) {
	engine := &fakeEngine{askErr: appErr.ErrGenerationTimeout}
	r := newTestEngine(engine)
	env := do(t, r, "POST", "/api/v1/chat", `{"query":"q"}`)
	require.Equal(t, errcode.ErrGenerationTimeout, env.Code)
}

func TestConversations(t *testing.T) {
	r := newTestEngine(&fakeEngine{})
	env := do(t, r, "POST", "/api/v1/conversations", ``)
	require.Equal(t, 0, env.Code)
	require.Contains(t, string(env.Data), `"conversation_id":"c2"`)

	env = do(t, r, "GET", "/api/v1/conversations/c1", ``)
	require.Equal(t, 0, env.Code)

	env = do(t, r, "GET", "/api/v1/conversations/zzz", ``)
	require.Equal(t, errcode.ErrConversationNotFound, env.Code)
}

func TestHealth(t *testing.T) {
	r := newTestEngine(&fakeEngine{})
	env := do(t, r, "GET", "/api/v1/health", ``)
	require.Equal(t, 0, env.Code)
	require.Contains(t, string(env.Data), `"index_version":"b1"`)

	var data struct {
		Extracted int64   `json:"quotes_extracted"`
		Matched   int64   `json:"quotes_matched"`
		Rate      float64 `json:"quote_match_rate"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, int64(4), data.Extracted)
	require.Equal(t, int64(3), data.Matched)
	require.InDelta(t, 0.75, data.Rate, 1e-9)
}

type fakeQuoteStats struct {
	extracted int64
	matched   int64
}

func (f fakeQuoteStats) Stats() (int64, int64) {
	return f.extracted, f.matched
}
