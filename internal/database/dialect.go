package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// DistinctExpr returns a SQL condition that is true when column differs from
// the bound value, treating NULL as an ordinary value.
func DistinctExpr(conn *gorm.DB, column string) string {
	switch DialectName(conn) {
	case DialectMySQL:
		return fmt.Sprintf("NOT (%s <=> ?)", column)
	case DialectSQLite:
		return fmt.Sprintf("%s IS NOT ?", column)
	default:
		return fmt.Sprintf("%s IS DISTINCT FROM ?", column)
	}
}
