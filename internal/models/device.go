package models

import (
	"time"
)

// Platform is the push channel of a device. The numeric values are stored in
// the devices table and must not be renumbered.
type Platform int

const (
	PlatformTelegram Platform = 0
	PlatformAPNS     Platform = 1
	PlatformFirebase Platform = 2
	PlatformWebPush  Platform = 3
	PlatformMail     Platform = 4
)

var platformNames = map[Platform]string{
	PlatformTelegram: "TELEGRAM",
	PlatformAPNS:     "APNS",
	PlatformFirebase: "FIREBASE",
	PlatformWebPush:  "WEBPUSH",
	PlatformMail:     "MAIL",
}

func (p Platform) Valid() bool {
	_, ok := platformNames[p]
	return ok
}

func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// DeviceRow is the persisted shape of a device.
type DeviceRow struct {
	ID               uint      `gorm:"column:id_devices;primaryKey"`
	UserID           uint      `gorm:"column:userId;index;not null"`
	DeviceIdentifier *string   `gorm:"column:deviceIdentifier;size:255;uniqueIndex"`
	Platform         int       `gorm:"column:platform;not null"`
	Added            time.Time `gorm:"column:added;autoCreateTime"`
}

func (DeviceRow) TableName() string {
	return "devices"
}

// Device is a notification endpoint owned by one user.
type Device struct {
	ID               uint     `json:"id"`
	UserID           uint     `json:"userId"`
	Platform         Platform `json:"platform"`
	DeviceIdentifier string   `json:"deviceIdentifier"`
	TimeAdded        string   `json:"timeAdded"`
	Verified         bool     `json:"verified"`
}

func NewDevice(platform Platform, userID uint, deviceIdentifier string) *Device {
	return &Device{
		UserID:           userID,
		Platform:         platform,
		DeviceIdentifier: deviceIdentifier,
		Verified:         true,
	}
}

// DeviceFromRow maps a stored row to a Device. The platform is taken as stored.
func DeviceFromRow(row DeviceRow) Device {
	d := Device{
		ID:        row.ID,
		UserID:    row.UserID,
		Platform:  Platform(row.Platform),
		TimeAdded: row.Added.Format("2006-01-02 15:04:05"),
		Verified:  true,
	}
	if row.DeviceIdentifier != nil {
		d.DeviceIdentifier = *row.DeviceIdentifier
	}
	return d
}

// Row returns the insertable row for d. ID and Added are left to the store.
func (d *Device) Row() DeviceRow {
	identifier := d.DeviceIdentifier
	return DeviceRow{
		UserID:           d.UserID,
		DeviceIdentifier: &identifier,
		Platform:         int(d.Platform),
	}
}
