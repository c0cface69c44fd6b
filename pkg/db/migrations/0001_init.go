package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// WebSession is a browser session of the web front end. Token is the remote API bearer token;
// it never leaves the server.
type WebSession struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Token      string            `gorm:"type:text;not null;default:''"`
	UserID     string            `gorm:"type:text;not null;default:''"`
	Attrs      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	LastSeenAt time.Time         `gorm:"type:timestamptz;not null;default:now()"`
	ExpiresAt  time.Time         `gorm:"type:timestamptz;not null;index"`
}

func (WebSession) TableName() string { return "web_sessions" }

func openGorm(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(&WebSession{})
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&WebSession{})
}
