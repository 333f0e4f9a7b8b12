package repository

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ilker/timetable-server/internal/models"
	"github.com/ilker/timetable-server/internal/testutil"
	"gorm.io/gorm"
)

func setupDatabase(t *testing.T) *Database {
	t.Helper()
	db := testutil.OpenTestDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return &Database{DB: db}
}

// failingSource never hands out a connection.
type failingSource struct {
	err error
}

func (f failingSource) WithConnection(context.Context, func(*gorm.DB) error) error {
	return f.err
}

// captureLogs redirects the default logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{AddSource: true})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func countDevices(t *testing.T, db *Database) int64 {
	t.Helper()
	var n int64
	if err := db.DB.Model(&models.DeviceRow{}).Count(&n).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func TestDeviceSave(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)
	repo := NewDeviceRepository(db)

	d := models.NewDevice(models.PlatformTelegram, 1, "chat-100")
	saved, err := repo.Save(ctx, d)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !saved {
		t.Fatal("Expected fresh identifier to be saved")
	}
	if d.ID == 0 {
		t.Error("Expected ID to be assigned")
	}
	if d.TimeAdded == "" {
		t.Error("Expected TimeAdded to be set")
	}
	if n := countDevices(t, db); n != 1 {
		t.Errorf("Expected 1 row, got %d", n)
	}
}

func TestDeviceSaveDuplicate(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)
	repo := NewDeviceRepository(db)

	if _, err := repo.Save(ctx, models.NewDevice(models.PlatformAPNS, 1, "apns-token")); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	// Same identifier from another user and platform is still a duplicate.
	dup := models.NewDevice(models.PlatformFirebase, 2, "apns-token")
	saved, err := repo.Save(ctx, dup)
	if err != nil {
		t.Fatalf("Duplicate save returned error: %v", err)
	}
	if saved {
		t.Error("Expected duplicate save to return false")
	}
	if dup.ID != 0 {
		t.Errorf("Duplicate should not get an id, got %d", dup.ID)
	}
	if n := countDevices(t, db); n != 1 {
		t.Errorf("Expected row count to stay 1, got %d", n)
	}
}

func TestDeviceUniqueIndex(t *testing.T) {
	db := setupDatabase(t)

	identifier := "webpush-endpoint"
	first := models.DeviceRow{UserID: 1, DeviceIdentifier: &identifier, Platform: 3}
	if err := db.DB.Create(&first).Error; err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := models.DeviceRow{UserID: 2, DeviceIdentifier: &identifier, Platform: 3}
	err := db.DB.Create(&second).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Expected ErrDuplicatedKey, got %v", err)
	}
}

func TestDeviceGetByUID(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)
	repo := NewDeviceRepository(db)

	for _, d := range []*models.Device{
		models.NewDevice(models.PlatformTelegram, 1, "a"),
		models.NewDevice(models.PlatformMail, 1, "b"),
		models.NewDevice(models.PlatformMail, 2, "c"),
	} {
		if _, err := repo.Save(ctx, d); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	// Legacy row without identifier.
	if err := db.DB.Create(&models.DeviceRow{UserID: 1, Platform: 0}).Error; err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	devices, err := repo.GetByUID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d: %+v", len(devices), devices)
	}
	if devices[0].DeviceIdentifier != "a" || devices[1].DeviceIdentifier != "b" {
		t.Errorf("Unexpected devices: %+v", devices)
	}

	none, err := repo.GetByUID(ctx, 99)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", none)
	}
}

func TestDeviceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(setupDatabase(t))

	d := models.NewDevice(models.PlatformWebPush, 5, "https://push.example/abc")
	if _, err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	devices, err := repo.GetByUID(ctx, 5)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	if devices[0] != *d {
		t.Errorf("Round trip mismatch:\n got  %+v\n want %+v", devices[0], *d)
	}
}

func TestDeviceRemove(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(setupDatabase(t))

	for _, d := range []*models.Device{
		models.NewDevice(models.PlatformTelegram, 1, "keep"),
		models.NewDevice(models.PlatformTelegram, 1, "drop"),
	} {
		if _, err := repo.Save(ctx, d); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if err := repo.RemoveDevice(ctx, "drop"); err != nil {
		t.Fatalf("RemoveDevice failed: %v", err)
	}

	devices, err := repo.GetByUID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	for _, d := range devices {
		if d.DeviceIdentifier == "drop" {
			t.Error("Removed device still listed")
		}
	}
	if len(devices) != 1 {
		t.Errorf("Expected 1 remaining device, got %d", len(devices))
	}

	if err := repo.RemoveDevice(ctx, "never-registered"); err != nil {
		t.Errorf("Removing unknown identifier should succeed, got %v", err)
	}
}

func TestDeviceDelete(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)
	repo := NewDeviceRepository(db)

	d := models.NewDevice(models.PlatformFirebase, 1, "fcm")
	if _, err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ok, err := repo.Delete(ctx, d.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v; want true, nil", ok, err)
	}
	if n := countDevices(t, db); n != 0 {
		t.Errorf("Expected no rows, got %d", n)
	}

	ok, err = repo.Delete(ctx, 12345)
	if err != nil || !ok {
		t.Errorf("Delete of missing id = %v, %v; want true, nil", ok, err)
	}
}

func TestDeviceDeleteByUser(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)
	repo := NewDeviceRepository(db)

	_, _ = repo.Save(ctx, models.NewDevice(models.PlatformMail, 1, "x"))
	_, _ = repo.Save(ctx, models.NewDevice(models.PlatformMail, 2, "y"))

	if err := repo.DeleteByUser(ctx, 1); err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}
	if n := countDevices(t, db); n != 1 {
		t.Errorf("Expected 1 row left, got %d", n)
	}
}

func TestDeviceErrorsAreLoggedAndReturned(t *testing.T) {
	ctx := context.Background()
	logs := captureLogs(t)
	boom := errors.New("connection refused")
	repo := NewDeviceRepository(failingSource{err: boom})

	if _, err := repo.Save(ctx, models.NewDevice(models.PlatformMail, 1, "z")); !errors.Is(err, boom) {
		t.Errorf("Save: expected wrapped error, got %v", err)
	}
	if _, err := repo.GetByUID(ctx, 1); !errors.Is(err, boom) {
		t.Errorf("GetByUID: expected wrapped error, got %v", err)
	}
	if _, err := repo.Delete(ctx, 1); !errors.Is(err, boom) {
		t.Errorf("Delete: expected wrapped error, got %v", err)
	}
	if err := repo.RemoveDevice(ctx, "z"); !errors.Is(err, boom) {
		t.Errorf("RemoveDevice: expected wrapped error, got %v", err)
	}

	out := logs.String()
	for _, fn := range []string{"Save", "GetByUID", "Delete", "RemoveDevice"} {
		if !strings.Contains(out, "function="+fn) {
			t.Errorf("Expected log entry for %s in %q", fn, out)
		}
	}
	if !strings.Contains(out, "label=Device") || !strings.Contains(out, "device.go") {
		t.Errorf("Expected label and source file in logs, got %q", out)
	}
}
