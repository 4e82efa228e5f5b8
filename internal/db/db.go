package custdb

import (
	"context"

	"github.com/polycast/relay/internal/configs"
	custerror "github.com/polycast/relay/internal/error"
	"github.com/polycast/relay/internal/logger"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var layered *LayeredDb

// LayeredDb pairs gorm (migrations and writes) with sqlx (squirrel-built reads)
// over one sqlite file.
type LayeredDb struct {
	gormDb *gorm.DB
	sqlxDb *sqlx.DB
}

type Options struct {
	configs *configs.SqliteConfigs
}

type Optioner func(o *Options)

func WithGlobalConfigs(c *configs.SqliteConfigs) Optioner {
	return func(o *Options) {
		o.configs = c
	}
}

func Init(ctx context.Context, options ...Optioner) {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}

	db, err := open(ctx, opts.configs)
	if err != nil {
		logger.SFatal("custdb.Init: err", zap.Error(err))
		return
	}
	layered = db
}

func open(ctx context.Context, c *configs.SqliteConfigs) (*LayeredDb, error) {
	path := c.Path
	if path == "" {
		path = "relay.db"
	}

	gormDb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, custerror.FormatInternalError("custdb.open: gorm err = %s", err)
	}

	sqlxDb, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, custerror.FormatInternalError("custdb.open: sqlx err = %s", err)
	}

	return &LayeredDb{
		gormDb: gormDb,
		sqlxDb: sqlxDb,
	}, nil
}

func Layered() *LayeredDb {
	return layered
}

func Migrate(models ...interface{}) {
	if err := layered.gormDb.AutoMigrate(models...); err != nil {
		logger.SFatal("custdb.Migrate: err", zap.Error(err))
	}
}

func Stop(ctx context.Context) {
	if layered == nil {
		return
	}
	if err := layered.sqlxDb.Close(); err != nil {
		logger.SError("custdb.Stop: sqlx close err", zap.Error(err))
	}
	sqlDb, err := layered.gormDb.DB()
	if err == nil {
		if err := sqlDb.Close(); err != nil {
			logger.SError("custdb.Stop: gorm close err", zap.Error(err))
		}
	}
}

func (db *LayeredDb) Insert(ctx context.Context, value interface{}) error {
	if err := db.gormDb.WithContext(ctx).Create(value).Error; err != nil {
		return custerror.FormatInternalError("LayeredDb.Insert: err = %s", err)
	}
	return nil
}

func (db *LayeredDb) Select(ctx context.Context, builder sq.SelectBuilder, dest interface{}) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return custerror.FormatInternalError("LayeredDb.Select: build err = %s", err)
	}
	logger.SDebug("LayeredDb.Select", zap.String("query", query))
	if err := db.sqlxDb.SelectContext(ctx, dest, query, args...); err != nil {
		return custerror.FormatInternalError("LayeredDb.Select: err = %s", err)
	}
	return nil
}
