package db

import (
	"errors"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// mysqlDupEntry is the MySQL error number for a duplicate key.
const mysqlDupEntry = 1062

// IsUniqueViolation reports whether err is a unique-constraint violation.
// Callers use this to recover from concurrent get-or-create races by
// re-reading the winning row; any other storage error is fatal to the
// operation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDupEntry
	}
	// The sqlite driver surfaces constraint failures as plain errors.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
