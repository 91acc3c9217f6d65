package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/connectpro-relay/internal/database"
)

// setupTestDB points the package database singletons at sqlmock and
// miniredis for the duration of one test.
func setupTestDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	prevPG := database.PostgresDB
	prevRedis := database.RedisClient
	database.PostgresDB = db
	database.RedisClient = rdb

	return mock, func() {
		database.PostgresDB = prevPG
		database.RedisClient = prevRedis
		rdb.Close()
		mr.Close()
		db.Close()
	}
}
