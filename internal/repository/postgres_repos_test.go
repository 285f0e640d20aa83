package repository

import (
	"testing"
)

// 各Postgresリポジトリが対応するインターフェースを満たすことを検証
func TestPostgresSiteRepo_ImplementsInterface(t *testing.T) {
	var _ SiteRepository = (*PostgresSiteRepo)(nil)
}

func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func TestPostgresAuctionRepo_ImplementsInterface(t *testing.T) {
	var _ AuctionRepository = (*PostgresAuctionRepo)(nil)
}

func TestNewPostgresSiteRepo_Initializes(t *testing.T) {
	repo := NewPostgresSiteRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresAuctionRepo_Initializes(t *testing.T) {
	repo := NewPostgresAuctionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
