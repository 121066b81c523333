// Package database はスキーマのマイグレーションを管理する。
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema は前回のマイグレーションが途中で失敗し、手動での修復が必要な状態を表す。
var ErrDirtySchema = errors.New("schema is dirty")

// MigrationStatus はマイグレーション実行前後のスキーマバージョン。
// Versionが0の場合は未適用を表す。
type MigrationStatus struct {
	Before uint
	After  uint
	Dirty  bool
}

// Applied は今回の実行で1件以上適用されたかどうかを返す。
func (s MigrationStatus) Applied() bool {
	return s.After != s.Before
}

// NewMigrator は埋め込みのmigrations/をソースとするmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソースの読み込みに失敗しました: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("マイグレーターの生成に失敗しました: %w", err)
	}
	return m, nil
}

type versioner interface {
	Version() (uint, bool, error)
}

// currentVersion は適用済みバージョンとdirty状態を返す。未適用の場合は0を返す。
func currentVersion(m versioner) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("スキーマバージョンの取得に失敗しました: %w", err)
	}
	return version, dirty, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用し、前後のバージョンを返す。
// すでに最新の場合はBeforeとAfterが等しい結果を返す。
// dirty状態のスキーマには何も適用せずErrDirtySchemaを返す。
// ctxがキャンセルされると実行中のマイグレーションを終えた時点で停止する。
func RunMigrations(ctx context.Context, databaseURL string) (MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()

	var status MigrationStatus
	status.Before, status.Dirty, err = currentVersion(m)
	if err != nil {
		return status, err
	}
	if status.Dirty {
		status.After = status.Before
		return status, fmt.Errorf("バージョン%dで停止しています: %w", status.Before, ErrDirtySchema)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		status.After, status.Dirty, _ = currentVersion(m)
		return status, fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}

	status.After, status.Dirty, err = currentVersion(m)
	if err != nil {
		return status, err
	}
	if err := ctx.Err(); err != nil {
		return status, fmt.Errorf("マイグレーションを中断しました: %w", err)
	}
	return status, nil
}
