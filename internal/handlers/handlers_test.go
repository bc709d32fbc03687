package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quill/internal/db"
	"quill/internal/handlers"
	"quill/internal/middleware"
	"quill/internal/router"
	"quill/internal/services"
	"quill/internal/slug"
	"quill/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn))

	log := logrus.New()
	log.SetOutput(io.Discard)

	slugs := slug.NewGenerator(0, log)
	profiles := services.NewProfileService(conn, slugs)
	auth := services.NewAuthService(conn, profiles, log)
	cache, err := utils.NewCache(100, time.Minute)
	require.NoError(t, err)

	deps := &handlers.Deps{
		Auth:       auth,
		Posts:      services.NewPostService(conn, slugs, log),
		Categories: services.NewCategoryService(conn, slugs),
		Profiles:   profiles,
		Comments:   services.NewCommentService(conn, log),
		Ratings:    services.NewRatingService(conn),
		Cache:      cache,
		Log:        log,
		PageSize:   10,
	}

	r := gin.New()
	r.Use(sessions.Sessions("quill_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(middleware.LoadUser(auth))
	router.RegisterRoutes(r, deps)
	return r
}

// client 保存会话 cookie 的简易客户端
type client struct {
	t       *testing.T
	r       *gin.Engine
	cookies []*http.Cookie
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func signup(t *testing.T, r *gin.Engine, name string) *client {
	c := &client{t: t, r: r}
	w := c.do(http.MethodPost, "/signup", gin.H{
		"username": name,
		"email":    name + "@example.com",
		"password": "long-password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return c
}

func TestAuthorizedRoutesRequireLogin(t *testing.T) {
	r := setupRouter(t)
	anon := &client{t: t, r: r}

	w := anon.do(http.MethodPost, "/posts", gin.H{"title": "x", "text": "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = anon.do(http.MethodGet, "/posts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignupLoginConflict(t *testing.T) {
	r := setupRouter(t)
	signup(t, r, "alice")

	dup := &client{t: t, r: r}
	w := dup.do(http.MethodPost, "/signup", gin.H{
		"username": "alice", "email": "alice2@example.com", "password": "long-password",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = dup.do(http.MethodPost, "/login", gin.H{"login": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = dup.do(http.MethodPost, "/login", gin.H{"login": "alice", "password": "long-password"})
	require.Equal(t, http.StatusOK, w.Code)
	w = dup.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])

	w = dup.do(http.MethodGet, "/profiles/alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostCommentFlow(t *testing.T) {
	r := setupRouter(t)
	author := signup(t, r, "author")
	reader := signup(t, r, "reader")

	w := author.do(http.MethodPost, "/posts", gin.H{"title": "Тестовый Заголовок Поста", "text": "**Привет**"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	postSlug := decode(t, w)["slug"].(string)
	assert.Equal(t, "testovyij-zagolovok-posta", postSlug)

	w = reader.do(http.MethodPost, "/posts/"+postSlug+"/comments", gin.H{"content": "root"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rootID := uint(decode(t, w)["id"].(float64))

	w = author.do(http.MethodPost, "/posts/"+postSlug+"/comments", gin.H{"content": "reply", "parent_id": rootID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reply := decode(t, w)
	assert.EqualValues(t, 1, reply["depth"])

	w = reader.do(http.MethodPost, "/posts/"+postSlug+"/comments", gin.H{"content": "x", "parent_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = reader.do(http.MethodGet, "/posts/"+postSlug+"/comments?view=tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode(t, w)["comments"].([]interface{})
	require.Len(t, tree, 1)
	replies := tree[0].(map[string]interface{})["replies"].([]interface{})
	assert.Len(t, replies, 1)

	w = reader.do(http.MethodGet, fmt.Sprintf("/comments/%d/subtree", rootID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["comments"], 2)

	w = reader.do(http.MethodGet, "/posts/"+postSlug, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Contains(t, detail["content_html"], "<strong>Привет</strong>")
	assert.EqualValues(t, 2, detail["post"].(map[string]interface{})["comment_count"])

	// reply 的作者不是 reader，但 reader 可以删自己的根评论，回复一起删除
	w = reader.do(http.MethodDelete, fmt.Sprintf("/comments/%d", uint(reply["id"].(float64))), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = reader.do(http.MethodDelete, fmt.Sprintf("/comments/%d", rootID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["removed"])

	// 缓存已失效
	w = reader.do(http.MethodGet, "/posts/"+postSlug, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["comments"])

	w = reader.do(http.MethodGet, "/comments/abc/subtree", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRatingEndpoint(t *testing.T) {
	r := setupRouter(t)
	author := signup(t, r, "author")
	voter := signup(t, r, "voter")

	w := author.do(http.MethodPost, "/posts", gin.H{"title": "Оценки", "text": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	postSlug := decode(t, w)["slug"].(string)

	w = voter.do(http.MethodPost, "/posts/"+postSlug+"/rating", gin.H{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["rating_sum"])

	w = voter.do(http.MethodPost, "/posts/"+postSlug+"/rating", gin.H{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["rating_sum"])

	w = voter.do(http.MethodPost, "/posts/"+postSlug+"/rating", gin.H{"value": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostUpdateAndDeletePermissions(t *testing.T) {
	r := setupRouter(t)
	author := signup(t, r, "author")
	other := signup(t, r, "other")

	w := author.do(http.MethodPost, "/posts", gin.H{"title": "Черновик", "text": "x", "status": "draft"})
	require.Equal(t, http.StatusCreated, w.Code)
	postSlug := decode(t, w)["slug"].(string)

	w = other.do(http.MethodGet, "/posts/"+postSlug, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = other.do(http.MethodPut, "/posts/"+postSlug, gin.H{"title": "Чужое", "text": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = author.do(http.MethodPut, "/posts/"+postSlug, gin.H{"title": "Опубликовано", "text": "x", "regenerate_slug": true})
	require.Equal(t, http.StatusOK, w.Code)
	newSlug := decode(t, w)["slug"].(string)
	assert.Equal(t, "opublikovano", newSlug)

	w = other.do(http.MethodPut, "/posts/"+newSlug, gin.H{"title": "Чужое", "text": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = other.do(http.MethodDelete, "/posts/"+newSlug, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = author.do(http.MethodDelete, "/posts/"+newSlug, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = other.do(http.MethodGet, "/posts/"+newSlug, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryEndpoints(t *testing.T) {
	r := setupRouter(t)
	author := signup(t, r, "author")

	w := author.do(http.MethodPost, "/categories", gin.H{"title": "Новости"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.Equal(t, "novosti", created["slug"])

	w = author.do(http.MethodPost, "/posts", gin.H{"title": "Свежее", "text": "x", "category_id": created["id"]})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = author.do(http.MethodGet, "/categories/novosti", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)["posts"].(map[string]interface{})
	assert.EqualValues(t, 1, page["total"])

	w = author.do(http.MethodGet, "/categories/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftCommentsHiddenFromOthers(t *testing.T) {
	r := setupRouter(t)
	author := signup(t, r, "alice")
	anon := &client{t: t, r: r}

	w := author.do(http.MethodPost, "/posts", gin.H{"title": "Черновик", "text": "x", "status": "draft"})
	require.Equal(t, http.StatusCreated, w.Code)
	postSlug := decode(t, w)["slug"].(string)

	w = author.do(http.MethodPost, "/posts/"+postSlug+"/comments", gin.H{"content": "private note"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	subtree := fmt.Sprintf("/comments/%d/subtree", uint(decode(t, w)["id"].(float64)))

	w = anon.do(http.MethodGet, "/posts/"+postSlug+"/comments", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = anon.do(http.MethodGet, subtree, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "private note")

	w = author.do(http.MethodGet, subtree, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "private note")

	w = anon.do(http.MethodGet, "/comments/9999/subtree", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmailOnlyVisibleToOwner(t *testing.T) {
	r := setupRouter(t)
	author := signup(t, r, "alice")
	anon := &client{t: t, r: r}

	w := author.do(http.MethodPost, "/posts", gin.H{"title": "Публичный", "text": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	postSlug := decode(t, w)["slug"].(string)
	w = author.do(http.MethodPost, "/posts/"+postSlug+"/comments", gin.H{"content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "alice@example.com")
	subtree := fmt.Sprintf("/comments/%d/subtree", uint(decode(t, w)["id"].(float64)))

	for _, path := range []string{
		"/posts",
		"/posts/" + postSlug,
		"/posts/" + postSlug + "/comments",
		"/posts/" + postSlug + "/comments?view=tree",
		subtree,
		"/profiles/alice",
	} {
		w = anon.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.False(t, strings.Contains(w.Body.String(), "@example.com"), "%s leaks an email: %s", path, w.Body.String())
	}

	w = author.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", decode(t, w)["email"])
}

func TestSignupValidation(t *testing.T) {
	r := setupRouter(t)
	anon := &client{t: t, r: r}

	cases := map[string]gin.H{
		"space in username": {"username": "bad name", "email": "b@example.com", "password": "long-password"},
		"short username":    {"username": "ab", "email": "b@example.com", "password": "long-password"},
		"malformed email":   {"username": "bob", "email": "not-an-email", "password": "long-password"},
		"short password":    {"username": "bob", "email": "b@example.com", "password": "short"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := anon.do(http.MethodPost, "/signup", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
