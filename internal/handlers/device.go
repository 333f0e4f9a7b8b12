package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ilker/timetable-server/internal/middleware"
	"github.com/ilker/timetable-server/internal/models"
	"github.com/ilker/timetable-server/internal/repository"
)

type DeviceHandler struct {
	devices *repository.DeviceRepository
}

func NewDeviceHandler(devices *repository.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type CreateDeviceRequest struct {
	Platform         *int   `json:"platform" binding:"required"`
	DeviceIdentifier string `json:"device_identifier" binding:"required,max=255"`
}

// @Summary List devices
// @Description Devices registered by the calling user
// @Tags devices
// @Produce json
// @Success 200 {object} Response{data=[]models.Device}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.devices.GetByUID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		InternalError(c, "Failed to fetch devices")
		return
	}
	Success(c, devices)
}

// @Summary Register device
// @Description Registers a notification target. An identifier can only be registered once.
// @Tags devices
// @Accept json
// @Produce json
// @Param body body CreateDeviceRequest true "platform (0 Telegram, 1 APNS, 2 Firebase, 3 WebPush, 4 Mail) and identifier"
// @Success 201 {object} Response{data=models.Device}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Security BearerAuth
// @Router /devices [post]
func (h *DeviceHandler) Create(c *gin.Context) {
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	platform := models.Platform(*req.Platform)
	if !platform.Valid() {
		BadRequest(c, "Unknown platform")
		return
	}

	device := models.NewDevice(platform, middleware.GetUserID(c), req.DeviceIdentifier)
	saved, err := h.devices.Save(c.Request.Context(), device)
	if err != nil {
		InternalError(c, "Failed to create device")
		return
	}
	if !saved {
		Conflict(c, "Device already registered")
		return
	}

	Created(c, device)
}

// @Summary Delete device
// @Tags devices
// @Param id path int true "device id"
// @Success 204
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /devices/{id} [delete]
func (h *DeviceHandler) Delete(c *gin.Context) {
	deviceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid device ID")
		return
	}

	device, ok := h.owned(c, func(d models.Device) bool { return d.ID == uint(deviceID) })
	if !ok {
		return
	}

	if _, err := h.devices.Delete(c.Request.Context(), device.ID); err != nil {
		InternalError(c, "Failed to delete device")
		return
	}
	NoContent(c)
}

// @Summary Delete device by identifier
// @Tags devices
// @Param identifier path string true "device identifier"
// @Success 204
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /devices/identifier/{identifier} [delete]
func (h *DeviceHandler) Remove(c *gin.Context) {
	identifier := c.Param("identifier")

	device, ok := h.owned(c, func(d models.Device) bool { return d.DeviceIdentifier == identifier })
	if !ok {
		return
	}

	if err := h.devices.RemoveDevice(c.Request.Context(), device.DeviceIdentifier); err != nil {
		InternalError(c, "Failed to delete device")
		return
	}
	NoContent(c)
}

// owned finds the caller's device matching fn. It writes the error response
// itself when there is none.
func (h *DeviceHandler) owned(c *gin.Context, fn func(models.Device) bool) (models.Device, bool) {
	devices, err := h.devices.GetByUID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		InternalError(c, "Failed to fetch devices")
		return models.Device{}, false
	}
	for _, d := range devices {
		if fn(d) {
			return d, true
		}
	}
	NotFound(c, "Device not found")
	return models.Device{}, false
}
