package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"mutaengine_back_end/internal/config"
	"mutaengine_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQL ouvre la base relationnelle (mysql en prod, sqlite en dev/tests)
func OpenSQL(cfg config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("driver SQL inconnu: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connexion SQL impossible: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// une seule connexion : sqlite sérialise les écritures et :memory: est propre à la connexion
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// Migrate crée ou met à jour les tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.InvoiceJob{},
		&models.WebhookEvent{},
	)
}

func ConnectRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("impossible de se connecter à Redis: %w", err)
	}
	log.Println("✅ Redis connecté avec succès")
	return client, nil
}

// ConnectMinIO se connecte et crée le bucket des factures s'il n'existe pas
func ConnectMinIO(ctx context.Context, cfg config.MinIO) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIO non configuré: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("MinIO injoignable: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("création bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("✅ Bucket MinIO %s créé", cfg.Bucket)
	}
	log.Println("✅ Connecté à MinIO :", cfg.Endpoint)
	return client, nil
}

const createAuditTable = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id timeuuid PRIMARY KEY,
		user_id text,
		user_email text,
		action text,
		resource text,
		resource_id text,
		old_value text,
		new_value text,
		ip_address text,
		success boolean,
		error_msg text,
		timestamp timestamp
	)`

// ConnectScylla ouvre la session du keyspace d'audit. Retourne nil sans hôtes configurés.
func ConnectScylla(cfg config.Scylla) (*gocql.Session, error) {
	if len(cfg.Hosts) == 0 {
		return nil, nil
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.NumConns = 2
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{NumRetries: 3, Min: 100 * time.Millisecond, Max: 2 * time.Second}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connexion ScyllaDB impossible: %w", err)
	}
	if err := session.Query(createAuditTable).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("création table audit_logs: %w", err)
	}
	log.Printf("✅ ScyllaDB connecté (keyspace %s)", cfg.Keyspace)
	return session, nil
}
