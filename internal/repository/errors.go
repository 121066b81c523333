package repository

import (
	"errors"

	"github.com/lib/pq"
)

// リポジトリが返す判別可能なエラー。
var (
	// ErrExposureExists はカードに既に公開IDが存在する場合に返る（card_exposures_card_id_key違反）。
	ErrExposureExists = errors.New("exposure already exists for card")
	// ErrPublicIDTaken は公開IDが他のカードで使用済みの場合に返る（card_exposures_public_id_key違反）。
	ErrPublicIDTaken = errors.New("public id already taken")
	// ErrCardNotFound は参照先のカードが存在しない場合に返る。
	ErrCardNotFound = errors.New("card not found")
	// ErrDuplicateMembership は同一チーム・同一ユーザーの所属が既に存在する場合に返る。
	ErrDuplicateMembership = errors.New("membership already exists")
	// ErrEmailTaken はメールアドレスが登録済みの場合に返る。
	ErrEmailTaken = errors.New("email already registered")
	// ErrIdentityLinked は外部ログインのアカウントが既に別のユーザーに紐付いている場合に返る。
	ErrIdentityLinked = errors.New("identity already linked")
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

func pqCode(err error) (string, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, c := pqCode(err)
	return code == pqUniqueViolation && (constraint == "" || c == constraint)
}

func isForeignKeyViolation(err error) bool {
	code, _ := pqCode(err)
	return code == pqForeignKeyViolation
}

// isInvalidUUID はUUID列に不正な文字列を渡した場合のエラーかどうかを判定する。
// 外部から渡されたIDは存在しないものとして扱う。
func isInvalidUUID(err error) bool {
	code, _ := pqCode(err)
	return code == pqInvalidText
}
