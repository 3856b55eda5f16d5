package database

import (
	"database/sql"
)

type PgDechatRepository struct {
	conn *sql.DB
}

func NewPgDechatRepository(dsn string) (*PgDechatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgDechatRepository{conn: db}, nil
}

func (db *PgDechatRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgDechatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
