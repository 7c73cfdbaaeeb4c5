package utils

import (
	"fmt"
	"os"
	"strconv"
)

const DEFAULT_DB_FILE = "data/catalog.db"
const DEFAULT_REDIS_ADDR = "localhost:6379"
const DEFAULT_MONGO_PROTOCOL = "mongodb"

// SQLiteConfig is the sqlite catalog store environment.
type SQLiteConfig struct {
	DBFile string
}

// BuildSQLiteConfig constructs the sqlite config using the CATALOG_DB_FILE
// env variable or defaults to DEFAULT_DB_FILE.
func BuildSQLiteConfig() SQLiteConfig {
	dbFile := os.Getenv("CATALOG_DB_FILE")
	if dbFile == "" {
		dbFile = DEFAULT_DB_FILE
	}
	return SQLiteConfig{DBFile: dbFile}
}

// MongoConfig is the mongo catalog store environment.
type MongoConfig struct {
	Protocol string
	Host     string
	User     string
	Pwd      string
	Params   string
	DBName   string
}

// BuildMongoConfig constructs the mongo config from MONGO_* env variables.
func BuildMongoConfig() MongoConfig {
	protocol := os.Getenv("MONGO_PROTOCOL")
	if protocol == "" {
		protocol = DEFAULT_MONGO_PROTOCOL
	}
	return MongoConfig{
		Protocol: protocol,
		Host:     os.Getenv("MONGO_HOST"),
		User:     os.Getenv("MONGO_USER"),
		Pwd:      os.Getenv("MONGO_PWD"),
		Params:   os.Getenv("MONGO_PARAMS"),
		DBName:   os.Getenv("MONGO_DB_NAME"),
	}
}

// RedisConfig is the run registry environment.
type RedisConfig struct {
	Addr string
	Pwd  string
	DB   int
}

// BuildRedisConfig constructs the redis config using REDIS_* env variables
// or defaults to DEFAULT_REDIS_ADDR.
func BuildRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = DEFAULT_REDIS_ADDR
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	return RedisConfig{
		Addr: addr,
		Pwd:  os.Getenv("REDIS_PWD"),
		DB:   db,
	}
}

// BucketConfig locates a feed object in cloud storage.
type BucketConfig struct {
	Bucket string
	Path   string
}

// BuildBucketConfig constructs the cloud feed config from the BUCKET and
// FEED_PATH env variables; BUCKET is required.
func BuildBucketConfig() (BucketConfig, error) {
	bucket := os.Getenv("BUCKET")
	if bucket == "" {
		return BucketConfig{}, fmt.Errorf("BUCKET environment variable is not set")
	}
	return BucketConfig{
		Bucket: bucket,
		Path:   os.Getenv("FEED_PATH"),
	}, nil
}
