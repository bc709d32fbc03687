package services

import (
	"fmt"
	"io"
	"testing"
	"time"

	"quill/internal/db"
	"quill/internal/models"
	"quill/internal/slug"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// 每个连接都是独立的内存库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(conn))
	return conn
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testSlugs() *slug.Generator {
	return slug.NewGenerator(0, quietLogger())
}

func createUser(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x", IsActive: true}
	require.NoError(t, conn.Create(u).Error)
	return u
}

func createPost(t *testing.T, conn *gorm.DB, author *models.User, title string) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:    title,
		Slug:     fmt.Sprintf("%s-%d", slug.Slugify(title), time.Now().UnixNano()),
		Text:     "body",
		Status:   models.StatusPublished,
		AuthorID: author.ID,
	}
	require.NoError(t, conn.Omit("Author", "Category", "Updater").Create(p).Error)
	return p
}

// stepClock 每次调用前进一分钟
func stepClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}
