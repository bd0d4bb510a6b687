package db

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	var err error

	dsn := os.Getenv("DB")

	tempDB, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = tempDB.Exec("CREATE DATABASE IF NOT EXISTS hotspot CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;").Error
	if err != nil {
		panic(err)
	}

	sqlDB, _ := tempDB.DB()
	sqlDB.Close()

	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(err)
	}
}

func Sync() {
	err := DB.AutoMigrate(
		&Customer{},
		&Device{},
		&VoucherBatch{},
		&Voucher{},
		&Payment{},
		&VerificationAttempt{},
	)
	if err != nil {
		panic(fmt.Errorf("migrate: %w", err))
	}
}
