package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"

	"github.com/tphakala/imageclassifier/internal/conf"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open connects to the MySQL server and migrates the schema.
func (store *MySQLStore) Open() error {
	db, err := openGorm(mysql.Open(mysqlDSN(&store.Settings.History.MySQL)), "MySQL",
		mysqlTarget(&store.Settings.History.MySQL), store.Settings.Debug)
	if err != nil {
		return err
	}
	store.DB = db
	return nil
}

func mysqlDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// mysqlTarget describes the connection for logs without credentials.
func mysqlTarget(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%d/%s", s.Host, s.Port, s.Database)
}
