package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The full model set must migrate cleanly on sqlite, which every DB-backed
// test package depends on. Column defaults that only Postgres understands
// belong in the SQL migrations, not in the gorm tags.
func TestAllModelsMigrateOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&User{}, &Product{}, &Variant{}, &CartItem{},
		&Coupon{}, &Order{}, &OrderItem{}, &OrderStatusHistory{},
		&ReturnRequest{}, &SavedCard{}, &GatewayCustomer{}, &Setting{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &User{Email: "priya@example.com", Name: "Priya"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == uuid.Nil {
		t.Fatal("expected BeforeCreate to assign an id")
	}
}
