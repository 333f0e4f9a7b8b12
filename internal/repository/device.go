package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilker/timetable-server/internal/models"
	"gorm.io/gorm"
)

const deviceLabel = "Device"

type DeviceRepository struct {
	conns ConnectionSource
}

func NewDeviceRepository(conns ConnectionSource) *DeviceRepository {
	return &DeviceRepository{conns: conns}
}

// RemoveDevice deletes every device registered under identifier.
// Removing an unknown identifier is not an error.
func (r *DeviceRepository) RemoveDevice(ctx context.Context, identifier string) error {
	err := r.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Where(map[string]any{"deviceIdentifier": identifier}).Delete(&models.DeviceRow{}).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove device",
			"label", deviceLabel, "function", "RemoveDevice", "identifier", identifier, "error", err)
		return fmt.Errorf("remove device: %w", err)
	}
	return nil
}

// GetByUID returns the devices of a user. Rows without an identifier are skipped.
func (r *DeviceRepository) GetByUID(ctx context.Context, userID uint) ([]models.Device, error) {
	var rows []models.DeviceRow
	err := r.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Where(map[string]any{"userId": userID}).Order("id_devices").Find(&rows).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch devices",
			"label", deviceLabel, "function", "GetByUID", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get devices of user %d: %w", userID, err)
	}

	devices := make([]models.Device, 0, len(rows))
	for _, row := range rows {
		if row.DeviceIdentifier == nil {
			continue
		}
		devices = append(devices, models.DeviceFromRow(row))
	}
	return devices, nil
}

// Save inserts d unless its identifier is already registered, in which case
// it returns false and writes nothing. On insert d.ID and d.TimeAdded are set.
func (r *DeviceRepository) Save(ctx context.Context, d *models.Device) (bool, error) {
	saved := false
	err := r.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		var count int64
		err := conn.Model(&models.DeviceRow{}).
			Where(map[string]any{"deviceIdentifier": d.DeviceIdentifier}).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count != 0 {
			return nil
		}

		row := d.Row()
		row.Added = time.Now().UTC().Truncate(time.Second)
		if err := conn.Create(&row).Error; err != nil {
			// Lost the race against a concurrent insert of the same identifier.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		stored := models.DeviceFromRow(row)
		d.ID = stored.ID
		d.TimeAdded = stored.TimeAdded
		saved = true
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to add device",
			"label", deviceLabel, "function", "Save", "user_id", d.UserID, "error", err)
		return false, fmt.Errorf("save device: %w", err)
	}
	return saved, nil
}

// Delete removes the device with the given id. It reports true whether or not
// a row existed.
func (r *DeviceRepository) Delete(ctx context.Context, id uint) (bool, error) {
	err := r.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Where("id_devices = ?", id).Delete(&models.DeviceRow{}).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete device",
			"label", deviceLabel, "function", "Delete", "id", id, "error", err)
		return false, fmt.Errorf("delete device %d: %w", id, err)
	}
	return true, nil
}

// DeleteByUser removes every device of a user.
func (r *DeviceRepository) DeleteByUser(ctx context.Context, userID uint) error {
	err := r.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Where(map[string]any{"userId": userID}).Delete(&models.DeviceRow{}).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete user devices",
			"label", deviceLabel, "function", "DeleteByUser", "user_id", userID, "error", err)
		return fmt.Errorf("delete devices of user %d: %w", userID, err)
	}
	return nil
}
