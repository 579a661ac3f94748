package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pkg/logging"
)

const (
	selectBannersByIDs = `SELECT id, title, description, link, max_price
FROM banner
WHERE id = ANY($1) AND NOT deleted AND status = 1`

	selectPlatformByID = `SELECT id, username, description, role
FROM auth_user
WHERE id = $1 AND NOT deleted`
)

// Options 是连接池参数
type Options struct {
	DSN             string
	MaxConns        int           // 最大并发连接数，超出的调用方阻塞等待
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最长存活时间
}

// Postgres 实现 core.BannerRepository 与 core.PlatformRepository。
//
// 连接池由 database/sql 管理：并发访问数达到 MaxConns 后，
// 新的调用会阻塞直到有连接归还或 ctx 结束，不会额外返回“池已满”错误。
type Postgres struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open 打开连接池并 Ping 一次。
func Open(ctx context.Context, opts Options, logger *zap.SugaredLogger) (*Postgres, error) {
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	idle := opts.MaxIdleConns
	if idle <= 0 || idle > maxConns {
		idle = maxConns
	}
	db.SetMaxIdleConns(idle)
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB 使用已有的 *sql.DB（测试时传入 sqlmock）。
func NewWithDB(db *sql.DB, logger *zap.SugaredLogger) *Postgres {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Postgres{db: db, logger: logger}
}

// GetBannersByIDs 读取有效 banner：未删除且 status = 1。
func (r *Postgres) GetBannersByIDs(ctx context.Context, ids []int64) (map[int64]core.Banner, error) {
	banners := make(map[int64]core.Banner, len(ids))
	if len(ids) == 0 {
		return banners, nil
	}
	log := logging.For(ctx, r.logger)
	startTime := time.Now()

	rows, err := r.db.QueryContext(ctx, selectBannersByIDs, pq.Array(ids))
	if err != nil {
		log.Debugw("SQL Error", "query", "banners_by_ids", "duration", time.Since(startTime), "error", err)
		return nil, fmt.Errorf("query banners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id          int64
			title       string
			description sql.NullString
			link        sql.NullString
			price       decimal.Decimal
		)
		if err := rows.Scan(&id, &title, &description, &link, &price); err != nil {
			return nil, fmt.Errorf("scan banner: %w", err)
		}
		b, err := core.NewBanner(id, title, description.String, link.String, price)
		if err != nil {
			log.Warnw("skip invalid banner row", "banner_id", id, "error", err)
			continue
		}
		banners[id] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate banners: %w", err)
	}

	log.Debugw("loaded banners from postgres", "requested", len(ids), "loaded", len(banners), "duration", time.Since(startTime))
	return banners, nil
}

// GetPlatform 读取未删除的用户，不存在时返回 core.ErrPlatformNotFound。
func (r *Postgres) GetPlatform(ctx context.Context, id int64) (core.Platform, error) {
	var (
		p           core.Platform
		description sql.NullString
		role        int
	)
	err := r.db.QueryRowContext(ctx, selectPlatformByID, id).Scan(&p.ID, &p.Username, &description, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Platform{}, core.ErrPlatformNotFound
	}
	if err != nil {
		logging.For(ctx, r.logger).Debugw("SQL Error", "query", "platform_by_id", "platform_id", id, "error", err)
		return core.Platform{}, fmt.Errorf("query platform %d: %w", id, err)
	}
	p.Description = description.String
	p.Role = core.Role(role)
	return p, nil
}

// Ping 健康检查
func (r *Postgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close 关闭连接池
func (r *Postgres) Close() error {
	return r.db.Close()
}

var (
	_ core.BannerRepository   = (*Postgres)(nil)
	_ core.PlatformRepository = (*Postgres)(nil)
)
