// Package slug 负责为文章、分类和用户资料生成唯一的 URL 标识。
//
// 唯一性先由查询检查保证，最终由数据表上的唯一索引兜底：
// 并发保存撞上唯一索引时会换一个随机后缀重试一次。
package slug

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMaxAttempts 单次生成中最多检查的候选数量
const DefaultMaxAttempts = 16

const suffixLen = 8

// ErrUniquenessConflict 重试用尽后仍然无法得到唯一 slug
var ErrUniquenessConflict = errors.New("slug uniqueness conflict")

// Sluggable 拥有 slug 字段的实体
type Sluggable interface {
	PrimaryKey() uint
	CurrentSlug() string
	SlugSource() string
	SetSlug(string)
}

type Generator struct {
	MaxAttempts int
	// Suffix 返回 8 位小写十六进制后缀，测试中可替换
	Suffix func() string
	Log    logrus.FieldLogger
}

func NewGenerator(maxAttempts int, log logrus.FieldLogger) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{
		MaxAttempts: maxAttempts,
		Suffix:      RandomSuffix,
		Log:         log,
	}
}

// RandomSuffix 取 UUIDv4 的前 8 位十六进制字符
func RandomSuffix() string {
	return uuid.New().String()[:suffixLen]
}

// Base 计算实体的基础 slug：已有 slug 时沿用，否则由源文本转写
func Base(e Sluggable) string {
	if current := e.CurrentSlug(); current != "" {
		return Slugify(current)
	}
	return Slugify(e.SlugSource())
}

// Generate 返回在实体所在表中唯一的 slug（排除实体自身）。
// 不会无限重试：连续 MaxAttempts 个候选都被占用时返回 ErrUniquenessConflict。
func (g *Generator) Generate(ctx context.Context, tx *gorm.DB, e Sluggable) (string, error) {
	return g.generate(ctx, tx, e, false)
}

func (g *Generator) generate(ctx context.Context, tx *gorm.DB, e Sluggable, forceSuffix bool) (string, error) {
	table, err := tableOf(tx, e)
	if err != nil {
		return "", err
	}

	base := Base(e)
	candidate := base
	if forceSuffix {
		candidate = g.suffixed(base)
	}

	for attempt := 0; attempt < g.MaxAttempts; attempt++ {
		taken, err := exists(ctx, tx, table, candidate, e.PrimaryKey())
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		g.Log.WithFields(logrus.Fields{"table": table, "slug": candidate}).Debug("slug taken, drawing new suffix")
		candidate = g.suffixed(base)
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrUniquenessConflict, base, g.MaxAttempts)
}

// Save 分配 slug 并保存实体。撞上 slug 唯一索引时换新后缀重试一次，
// 其他错误原样返回。
func (g *Generator) Save(ctx context.Context, db *gorm.DB, e Sluggable) error {
	original := e.CurrentSlug()
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		// 失败的语句会使 postgres 事务失效，所以每次尝试单独一个事务
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			s, err := g.generate(ctx, tx, e, attempt > 0)
			if err != nil {
				return err
			}
			e.SetSlug(s)
			return tx.Omit(clause.Associations).Save(e).Error
		})
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			e.SetSlug(original)
			return err
		}
		g.Log.WithFields(logrus.Fields{"slug": e.CurrentSlug(), "attempt": attempt + 1}).
			Warn("slug unique constraint violated on save")
		e.SetSlug(original)
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrUniquenessConflict, lastErr)
}

func (g *Generator) suffixed(base string) string {
	return base + "-" + g.Suffix()
}

// IsConflict 判断错误是否为 slug 列上的唯一约束冲突
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "slug")
	}
	// sqlite: "UNIQUE constraint failed: posts.slug"
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, ".slug")
}

func tableOf(tx *gorm.DB, e Sluggable) (string, error) {
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(e); err != nil {
		return "", fmt.Errorf("resolve table for %T: %w", e, err)
	}
	return stmt.Schema.Table, nil
}

func exists(ctx context.Context, tx *gorm.DB, table, candidate string, pk uint) (bool, error) {
	q := tx.WithContext(ctx).Table(table).Where("slug = ?", candidate)
	if pk != 0 {
		q = q.Where("id <> ?", pk)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
